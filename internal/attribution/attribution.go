// Package attribution records link clicks and attributes sales to them.
package attribution

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultCommissionRate applies when neither the offer nor the coach set one.
	DefaultCommissionRate = 10.0

	// ClickWindow is how far back a sale looks for a matching click.
	ClickWindow = 7 * 24 * time.Hour
)

// Values of the source columns on clicks and sales.
const (
	SourceChannelLink = "link"
	SourceWebhook     = "webhook"
)

const defaultCurrency = "USD"

var (
	// ErrOfferNotFound is returned when no offer has the tracking slug.
	ErrOfferNotFound = errors.New("attribution: offer not found")
	// ErrInvalidSale is returned for sale reports missing required data.
	ErrInvalidSale = errors.New("attribution: invalid sale")
)

// Offer is the slice of an offer needed for redirects and commissions.
type Offer struct {
	ID                     string
	CoachID                string
	TargetURL              string
	CommissionRate         float64
	CoachDefaultCommission float64
}

// Rate returns the commission percentage for the offer.
func (o *Offer) Rate() float64 {
	switch {
	case o.CommissionRate > 0:
		return o.CommissionRate
	case o.CoachDefaultCommission > 0:
		return o.CoachDefaultCommission
	default:
		return DefaultCommissionRate
	}
}

// Commission is amount * rate / 100.
func Commission(amount, rate float64) float64 {
	return amount * rate / 100
}

// Click is one visit to a tracking link.
type Click struct {
	OfferID       string
	CoachID       string
	SessionID     string
	SourceChannel string
	UserAgent     string
	IPHash        *string
	ContactEmail  string
}

// Sale is an attributed purchase.
type Sale struct {
	OfferID        string
	CoachID        string
	ClickID        *string
	ExternalSaleID string
	ContactEmail   string
	Amount         float64
	Currency       string
	CommissionRate float64
	CommissionDue  float64
	Source         string
	PurchasedAt    time.Time
}

// ClientIP returns the first X-Forwarded-For entry, else X-Real-IP.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}

// HashIP returns the hex sha256 of ip, or nil when ip is empty.
func HashIP(ip string) *string {
	if ip == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(ip))
	hashed := hex.EncodeToString(sum[:])
	return &hashed
}
