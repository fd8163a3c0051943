package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/wolfman30/agentx-dm-platform/internal/llm"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// Intent is a coarse label for an inbound message.
type Intent string

const (
	SalesIntent Intent = "SALES_INTENT"
	Question    Intent = "QUESTION"
	Personal    Intent = "PERSONAL"
	LowEffort   Intent = "LOW_EFFORT"
)

// Valid reports whether i is one of the four known labels.
func (i Intent) Valid() bool {
	switch i {
	case SalesIntent, Question, Personal, LowEffort:
		return true
	}
	return false
}

// Neutral reports whether the intent is eligible for a canned reply.
func (i Intent) Neutral() bool {
	return i == Personal || i == LowEffort
}

// Affirmative replies are engagement, not low effort.
var affirmativePattern = regexp.MustCompile(`(?i)^(yes|yea|yeah|yep|yup|sure|ok|okay|definitely|absolutely|please|yes please|yea please|tell me|tell me more|show me|i'm interested|interested|sounds good|let's do it|let's go|go ahead|for sure|100%|bet|down|i'm down)\.?!?$`)

const classificationPrompt = `Classify this Instagram DM message into exactly one category. Reply with ONLY the category name, nothing else.

Categories:
- SALES_INTENT: User is asking about purchasing, pricing, enrollment, or showing buying intent
- QUESTION: User is asking a genuine question, seeking information, OR responding affirmatively to continue conversation (like "yes", "tell me more", "interested")
- PERSONAL: Casual/personal message like "hey bro", "what's up", friendship chat, not business related
- LOW_EFFORT: ONLY emoji-only messages or meaningless reactions like "🔥", "lol", "😂😂". NOT affirmative responses.

Message: "%s"

Category:`

const classificationMaxTokens = 20

// IsAffirmative reports whether message is a clear engagement reply.
func IsAffirmative(message string) bool {
	return affirmativePattern.MatchString(strings.TrimSpace(message))
}

// Classifier labels messages with the LLM, defaulting to Question on any failure.
type Classifier struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

// NewClassifier creates a classifier backed by client.
func NewClassifier(client llm.Client, model string, logger *logging.Logger) *Classifier {
	if client == nil {
		panic("intent: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{client: client, model: model, logger: logger}
}

// Classify returns the message intent. It never returns an error.
func (c *Classifier) Classify(ctx context.Context, message string) Intent {
	if IsAffirmative(message) {
		c.logger.Debug("message matched affirmative pattern")
		return Question
	}

	prompt := strings.Replace(classificationPrompt, "%s", message, 1)
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:       c.model,
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   classificationMaxTokens,
		Temperature: -1,
	})
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to QUESTION", "error", err)
		return Question
	}

	label := Intent(strings.ToUpper(strings.TrimSpace(resp.Text)))
	if !label.Valid() {
		c.logger.Warn("unrecognized intent label, defaulting to QUESTION", "label", resp.Text)
		return Question
	}
	return label
}
