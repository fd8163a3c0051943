package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// ClickMeta is what the redirect endpoint knows about a visitor.
type ClickMeta struct {
	UserAgent string
	IP        string
	Email     string
}

// SaleReport is the body of the sales webhook.
type SaleReport struct {
	OfferSlug      string      `json:"offer_slug"`
	ContactEmail   string      `json:"contact_email"`
	Amount         json.Number `json:"amount"`
	Currency       string      `json:"currency"`
	ExternalSaleID string      `json:"external_sale_id"`
	PurchasedAt    string      `json:"purchased_at"`
}

// SaleResult is returned after a sale is stored.
type SaleResult struct {
	SaleID        string  `json:"sale_id"`
	CommissionDue float64 `json:"commission_due"`
}

// Service records clicks and attributes sales.
type Service struct {
	store        Store
	logger       *logging.Logger
	now          func() time.Time
	newSessionID func() string
}

func NewService(store Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("attribution: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:        store,
		logger:       logger,
		now:          time.Now,
		newSessionID: uuid.NewString,
	}
}

// RecordClick stores a click on the offer behind slug and returns the URL to
// redirect to. A failed insert is logged and does not block the redirect.
func (s *Service) RecordClick(ctx context.Context, slug string, meta ClickMeta) (string, error) {
	offer, err := s.store.OfferBySlug(ctx, slug)
	if err != nil {
		return "", err
	}

	click := Click{
		OfferID:       offer.ID,
		CoachID:       offer.CoachID,
		SessionID:     s.newSessionID(),
		SourceChannel: SourceChannelLink,
		UserAgent:     meta.UserAgent,
		IPHash:        HashIP(meta.IP),
		ContactEmail:  strings.TrimSpace(meta.Email),
	}
	if err := s.store.InsertClick(ctx, click); err != nil {
		s.logger.Error("failed to record click", "offer_id", offer.ID, "error", err)
	} else {
		s.logger.Info("click recorded", "offer_id", offer.ID, "coach_id", offer.CoachID, "session_id", click.SessionID)
	}
	return offer.TargetURL, nil
}

// RecordSale attributes a reported sale to the newest matching click within
// ClickWindow and stores it with its commission.
func (s *Service) RecordSale(ctx context.Context, report SaleReport) (SaleResult, error) {
	amount, err := report.Amount.Float64()
	if err != nil {
		return SaleResult{}, fmt.Errorf("%w: amount is required", ErrInvalidSale)
	}
	purchasedAt := s.now().UTC()
	if raw := strings.TrimSpace(report.PurchasedAt); raw != "" {
		if purchasedAt, err = time.Parse(time.RFC3339, raw); err != nil {
			return SaleResult{}, fmt.Errorf("%w: purchased_at must be RFC 3339", ErrInvalidSale)
		}
	}
	currency := strings.TrimSpace(report.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	offer, err := s.store.OfferBySlug(ctx, report.OfferSlug)
	if err != nil {
		return SaleResult{}, err
	}
	log := s.logger.With("offer_id", offer.ID, "coach_id", offer.CoachID)

	var clickID *string
	if email := strings.TrimSpace(report.ContactEmail); email != "" {
		id, err := s.store.RecentClickID(ctx, offer.ID, email, s.now().Add(-ClickWindow))
		if err != nil {
			log.Warn("click lookup failed", "error", err)
		} else if id != "" {
			clickID = &id
		}
	}

	rate := offer.Rate()
	sale := Sale{
		OfferID:        offer.ID,
		CoachID:        offer.CoachID,
		ClickID:        clickID,
		ExternalSaleID: report.ExternalSaleID,
		ContactEmail:   report.ContactEmail,
		Amount:         amount,
		Currency:       currency,
		CommissionRate: rate,
		CommissionDue:  Commission(amount, rate),
		Source:         SourceWebhook,
		PurchasedAt:    purchasedAt,
	}
	saleID, err := s.store.InsertSale(ctx, sale)
	if err != nil {
		return SaleResult{}, err
	}

	log.Info("sale recorded", "sale_id", saleID, "attributed", clickID != nil, "commission_due", sale.CommissionDue)
	return SaleResult{SaleID: saleID, CommissionDue: sale.CommissionDue}, nil
}

// publicError is the message exposed in the webhook's error field.
func publicError(err error) string {
	switch {
	case errors.Is(err, ErrOfferNotFound):
		return "Offer not found"
	case errors.Is(err, ErrInvalidSale):
		return strings.TrimPrefix(err.Error(), ErrInvalidSale.Error()+": ")
	default:
		return "Failed to record sale"
	}
}
