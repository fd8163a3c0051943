package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/agentx-dm-platform/internal/coach"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

var ctaTemplates = [...]string{
	"From what you've shared, sounds like this could be a good fit. Here's where you can take the next step: %s",
	"Based on what you're telling me, I think you'd get a lot out of this. Check it out here: %s",
	"Honestly, this sounds like exactly what you need. Here's the link if you want to move forward: %s",
}

// OfferLookup resolves the offer used for tracking links.
type OfferLookup interface {
	FirstActiveOffer(ctx context.Context, coachID string) (*coach.Offer, error)
}

// CTAInjector appends a call to action once a conversation reaches the
// coach's threshold.
type CTAInjector struct {
	offers  OfferLookup
	baseURL string
	logger  *logging.Logger
}

func NewCTAInjector(offers OfferLookup, publicBaseURL string, logger *logging.Logger) *CTAInjector {
	if logger == nil {
		logger = logging.Default()
	}
	return &CTAInjector{
		offers:  offers,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger,
	}
}

// Inject returns the reply with a CTA appended and the link used, or the
// reply unchanged and nil when below threshold or no link resolves.
func (i *CTAInjector) Inject(ctx context.Context, c *coach.Coach, count int, reply string) (string, *string) {
	if c == nil || count < c.CTAThreshold() {
		return reply, nil
	}
	link := i.resolveLink(ctx, c)
	if link == "" {
		i.logger.Info("no cta link available", "coach_id", c.ID, "question_count", count)
		return reply, nil
	}
	phrase := fmt.Sprintf(ctaTemplates[count%len(ctaTemplates)], link)
	return reply + "\n\n" + phrase, &link
}

func (i *CTAInjector) resolveLink(ctx context.Context, c *coach.Coach) string {
	if url := strings.TrimSpace(c.MainCheckoutURL); url != "" {
		return url
	}
	if i.offers == nil {
		return ""
	}
	offer, err := i.offers.FirstActiveOffer(ctx, c.ID)
	if err != nil {
		if !errors.Is(err, coach.ErrOfferNotFound) {
			i.logger.Warn("offer lookup failed", "coach_id", c.ID, "error", err)
		}
		return ""
	}
	if offer == nil || offer.TrackingSlug == "" {
		return ""
	}
	return i.baseURL + "/track/" + offer.TrackingSlug
}
