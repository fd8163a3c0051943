package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/agentx-dm-platform/internal/coach"
	"github.com/wolfman30/agentx-dm-platform/internal/contacts"
	"github.com/wolfman30/agentx-dm-platform/internal/intent"
	"github.com/wolfman30/agentx-dm-platform/internal/knowledge"
	"github.com/wolfman30/agentx-dm-platform/internal/llm"
	"github.com/wolfman30/agentx-dm-platform/internal/observability/metrics"
	"github.com/wolfman30/agentx-dm-platform/internal/payload"
	"github.com/wolfman30/agentx-dm-platform/internal/session"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// User-facing replies for failed exchanges.
const (
	replyMissingMessage = "Sorry, I couldn't process your message."
	replyBusy           = "Sorry, I'm a bit busy right now. Please try again in a moment."
	replyCredits        = "Sorry, something went wrong. Please try again later."
	replyGeneric        = "Sorry, something went wrong. Please try again."
	replyEmptyModel     = "Sorry, I couldn't generate a response. Please try again."
)

// Values of the envelope's error field.
const (
	errorMissingMessage   = "Missing required field: message is required"
	errorSessionUpdate    = "Failed to update DM session"
	errorCoachNotFound    = "Coach not found"
	errorCoachLoad        = "Failed to load coach"
	errorGateway          = "AI gateway error"
	errorRateLimited      = "Rate limit exceeded. Please try again later."
	errorCreditsExhausted = "AI service credits exhausted."
)

// Response is the envelope returned to the chat-automation vendor. Error
// responses keep the same shape so the vendor can always relay Reply.
type Response struct {
	Reply         string  `json:"reply"`
	Message       string  `json:"message"`
	QuestionCount int     `json:"question_count"`
	TrackingLink  *string `json:"tracking_link"`
	ShouldReply   bool    `json:"should_reply"`
	Intent        string  `json:"intent,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Result pairs the envelope with its HTTP status.
type Result struct {
	Status   int
	Response Response
}

// Classifier labels an inbound message.
type Classifier interface {
	Classify(ctx context.Context, message string) intent.Intent
}

// CoachReader loads tenant settings and offers.
type CoachReader interface {
	Get(ctx context.Context, id string) (*coach.Coach, error)
	OfferLookup
}

// Escalation describes a buyer-intent message worth a human follow-up.
type Escalation struct {
	Coach       *coach.Coach
	UserHandle  string
	ContactName string
	Source      string
	Message     string
	Reply       string
}

// EscalationNotifier alerts a coach about buyer intent.
type EscalationNotifier interface {
	NotifySalesIntent(ctx context.Context, e Escalation) error
}

// EngineOption configures optional engine behaviour.
type EngineOption func(*Engine)

func WithModel(model string) EngineOption {
	return func(e *Engine) { e.model = model }
}

func WithContacts(store contacts.Upserter) EngineOption {
	return func(e *Engine) { e.contacts = store }
}

func WithNotifier(n EscalationNotifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithPublicBaseURL sets the host used for offer tracking links.
func WithPublicBaseURL(url string) EngineOption {
	return func(e *Engine) { e.publicBaseURL = url }
}

// WithMaxTokens caps the reply length. Zero leaves the provider default.
func WithMaxTokens(n int32) EngineOption {
	return func(e *Engine) { e.maxTokens = n }
}

// Engine runs one inbound DM through classification, the model and CTA
// injection.
type Engine struct {
	sessions      session.Store
	classifier    Classifier
	coaches       CoachReader
	knowledge     knowledge.Reader
	llm           llm.Client
	contacts      contacts.Upserter
	notifier      EscalationNotifier
	metrics       *metrics.ConversationMetrics
	cta           *CTAInjector
	model         string
	maxTokens     int32
	publicBaseURL string
	logger        *logging.Logger
	pick          func(n int) int
	now           func() time.Time
}

func NewEngine(sessions session.Store, classifier Classifier, coaches CoachReader, chunks knowledge.Reader, client llm.Client, logger *logging.Logger, opts ...EngineOption) *Engine {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if classifier == nil {
		panic("conversation: classifier cannot be nil")
	}
	if coaches == nil {
		panic("conversation: coach reader cannot be nil")
	}
	if chunks == nil {
		panic("conversation: knowledge reader cannot be nil")
	}
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		sessions:   sessions,
		classifier: classifier,
		coaches:    coaches,
		knowledge:  chunks,
		llm:        client,
		logger:     logger,
		pick:       rand.IntN,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cta = NewCTAInjector(coaches, e.publicBaseURL, logger)
	return e
}

// Handle processes one canonical request. The returned Result is always a
// complete envelope; err is non-nil when the exchange failed.
func (e *Engine) Handle(ctx context.Context, req payload.Request) (Result, error) {
	res, err := e.handle(ctx, req)
	e.metrics.ObserveWebhook(res.Status, res.Response.Intent)
	return res, err
}

func (e *Engine) handle(ctx context.Context, req payload.Request) (Result, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return failure(http.StatusBadRequest, errorMissingMessage, replyMissingMessage, 0), payload.ErrMissingMessage
	}
	log := e.logger.With("coach_id", req.CoachID, "user_handle", req.UserHandle)

	existing, err := e.sessions.Get(ctx, req.CoachID, req.UserHandle)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		log.Warn("session lookup failed", "error", err)
	}
	momentum := err == nil && existing != nil && existing.QuestionCount > 0

	label := intent.Question
	if !momentum {
		label = e.classifier.Classify(ctx, message)
	}
	log = log.With("intent", string(label))

	if !momentum && label.Neutral() {
		return e.neutral(ctx, req, label, log), nil
	}

	e.upsertContact(ctx, req, log)

	sess, err := e.sessions.Increment(ctx, req.CoachID, req.UserHandle)
	if err != nil {
		log.Error("session increment failed", "error", err)
		return failure(http.StatusInternalServerError, errorSessionUpdate, replyGeneric, 0), fmt.Errorf("conversation: increment session: %w", err)
	}
	count := sess.QuestionCount

	c, err := e.coaches.Get(ctx, req.CoachID)
	if err != nil {
		log.Error("coach lookup failed", "error", err)
		reason := errorCoachLoad
		if errors.Is(err, coach.ErrNotFound) {
			reason = errorCoachNotFound
		}
		return failure(http.StatusInternalServerError, reason, replyGeneric, 0), fmt.Errorf("conversation: load coach: %w", err)
	}

	chunks, err := e.knowledge.ListChunks(ctx, req.CoachID)
	if err != nil {
		log.Warn("knowledge lookup failed", "error", err)
		chunks = nil
	}

	history := sess.Recent(session.PromptHistory)
	system := BuildSystemPrompt(PromptInput{
		Coach:         c,
		Chunks:        chunks,
		QuestionCount: count,
		ContactName:   req.ContactName,
		Intent:        label,
		HasHistory:    len(sess.Messages) > 0,
	})

	reply, err := e.complete(ctx, system, history, message)
	if err != nil {
		log.Error("reply generation failed", "status", llm.StatusCode(err), "error", err)
		return llmFailure(err, count), fmt.Errorf("conversation: generate reply: %w", err)
	}

	if _, err := e.sessions.AppendHistory(ctx, req.CoachID, req.UserHandle,
		session.Entry{Role: llm.RoleUser, Content: message},
		session.Entry{Role: llm.RoleAssistant, Content: reply},
	); err != nil {
		log.Warn("history append failed", "error", err)
	}

	if label == intent.SalesIntent {
		e.escalate(ctx, c, req, reply, log)
	}

	reply, link := e.cta.Inject(ctx, c, count, reply)
	if link != nil {
		e.metrics.ObserveCTA()
	}

	log.Info("dm answered", "question_count", count, "cta", link != nil, "chunks", len(chunks))
	return Result{
		Status: http.StatusOK,
		Response: Response{
			Reply:         reply,
			Message:       reply,
			QuestionCount: count,
			TrackingLink:  link,
			ShouldReply:   true,
			Intent:        string(label),
		},
	}, nil
}

func (e *Engine) neutral(ctx context.Context, req payload.Request, label intent.Intent, log *logging.Logger) Result {
	reply := neutralReply(label, req.ContactName, e.pick)

	count := 1
	if sess, err := e.sessions.Increment(ctx, req.CoachID, req.UserHandle); err != nil {
		log.Warn("session increment failed on neutral reply", "error", err)
	} else {
		count = sess.QuestionCount
	}
	e.metrics.ObserveNeutral(string(label))

	return Result{
		Status: http.StatusOK,
		Response: Response{
			Reply:         reply,
			Message:       reply,
			QuestionCount: count,
			ShouldReply:   true,
			Intent:        string(label),
		},
	}
}

func (e *Engine) upsertContact(ctx context.Context, req payload.Request, log *logging.Logger) {
	if e.contacts == nil || req.ContactID == "" || req.UserHandle == "" {
		return
	}
	first, last := contacts.SplitName(req.ContactName)
	err := e.contacts.Upsert(ctx, contacts.Contact{
		CoachID:   req.CoachID,
		Platform:  contacts.PlatformForSource(req.SourceChannel),
		ContactID: req.ContactID,
		Handle:    req.UserHandle,
		FirstName: first,
		LastName:  last,
		Email:     req.ContactEmail,
	})
	if err != nil {
		log.Warn("contact upsert failed", "contact_id", req.ContactID, "error", err)
	}
}

func (e *Engine) complete(ctx context.Context, system string, history []session.Entry, message string) (string, error) {
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	for _, entry := range history {
		role := llm.RoleUser
		if entry.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: entry.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: message})

	start := e.now()
	resp, err := e.llm.Complete(ctx, llm.Request{
		Model:       e.model,
		System:      []string{system},
		Messages:    messages,
		MaxTokens:   e.maxTokens,
		Temperature: -1,
	})
	e.metrics.ObserveLLM("reply", e.now().Sub(start).Seconds(), err)
	if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
		return "", err
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return replyEmptyModel, nil
	}
	return reply, nil
}

func (e *Engine) escalate(ctx context.Context, c *coach.Coach, req payload.Request, reply string, log *logging.Logger) {
	if e.notifier == nil || strings.TrimSpace(c.EscalationEmail) == "" {
		return
	}
	err := e.notifier.NotifySalesIntent(ctx, Escalation{
		Coach:       c,
		UserHandle:  req.UserHandle,
		ContactName: req.ContactName,
		Source:      req.SourceChannel,
		Message:     req.Message,
		Reply:       reply,
	})
	if err != nil {
		log.Warn("escalation notification failed", "error", err)
	}
}

func llmFailure(err error, count int) Result {
	switch llm.StatusCode(err) {
	case http.StatusTooManyRequests:
		return failure(http.StatusTooManyRequests, errorRateLimited, replyBusy, count)
	case http.StatusPaymentRequired:
		return failure(http.StatusPaymentRequired, errorCreditsExhausted, replyCredits, count)
	default:
		return failure(http.StatusInternalServerError, errorGateway, replyGeneric, 0)
	}
}

func failure(status int, reason, reply string, count int) Result {
	return Result{
		Status: status,
		Response: Response{
			Reply:         reply,
			Message:       reply,
			QuestionCount: count,
			ShouldReply:   false,
			Error:         reason,
		},
	}
}
