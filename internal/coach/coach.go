package coach

import (
	"errors"
	"strings"
)

// Plan is a coach's feature tier.
type Plan string

const (
	PlanBasic    Plan = "basic"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// DefaultCTAThreshold is used when a coach has no max_questions_before_cta.
const DefaultCTAThreshold = 3

var (
	// ErrNotFound is returned when no coach matches the id.
	ErrNotFound = errors.New("coach: not found")
	// ErrOfferNotFound is returned when no offer matches.
	ErrOfferNotFound = errors.New("coach: offer not found")
)

// ParsePlan normalizes a stored plan value, defaulting to basic.
func ParsePlan(v string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(v))) {
	case PlanPremium:
		return PlanPremium
	case PlanStandard:
		return PlanStandard
	default:
		return PlanBasic
	}
}

func (p Plan) IsPremium() bool {
	return p == PlanPremium
}

func (p Plan) IsStandardOrHigher() bool {
	return p == PlanStandard || p == PlanPremium
}

// Coach is a tenant of the platform.
type Coach struct {
	ID                    string
	UserID                string
	Name                  string
	Email                 string
	BrandName             string
	Plan                  Plan
	SystemPrompt          string
	Tone                  string
	ResponseStyle         string
	BrandVoice            string
	EscalationEmail       string
	MaxQuestionsBeforeCTA int
	MainCheckoutURL       string
	DefaultCommissionRate float64
}

// DisplayName is the brand name when set, else the coach's name.
func (c *Coach) DisplayName() string {
	if strings.TrimSpace(c.BrandName) != "" {
		return c.BrandName
	}
	return c.Name
}

// CTAThreshold is the question count at which a call to action is added.
func (c *Coach) CTAThreshold() int {
	if c.MaxQuestionsBeforeCTA <= 0 {
		return DefaultCTAThreshold
	}
	return c.MaxQuestionsBeforeCTA
}

// Offer is a trackable product a coach promotes.
type Offer struct {
	ID           string
	CoachID      string
	Name         string
	TrackingSlug string
	TargetURL    string
}

// NewCoach holds the fields written when provisioning a coach.
type NewCoach struct {
	UserID    string
	Name      string
	Email     string
	BrandName string
	Plan      Plan
}
