package instagram

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/agentx-dm-platform/internal/conversation"
	"github.com/wolfman30/agentx-dm-platform/internal/payload"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const (
	sourceInstagram   = "instagram"
	processingTimeout = 60 * time.Second
)

// ReplySender delivers outbound DMs.
type ReplySender interface {
	SendText(ctx context.Context, recipientID, text string) (*SendResponse, error)
}

// AdapterConfig holds the Meta app settings and page routing.
type AdapterConfig struct {
	VerifyToken string
	AppSecret   string
	// CoachByPage maps an Instagram page id to the coach answering its DMs.
	CoachByPage map[string]string
}

// Adapter connects Instagram DMs to the conversation engine. Webhook
// requests are acknowledged immediately and processed in the background.
type Adapter struct {
	sender     ReplySender
	engine     conversation.Responder
	normalizer *payload.Normalizer
	dedupe     Deduper
	coachMap   map[string]string
	webhook    *WebhookHandler
	logger     *logging.Logger
	wg         sync.WaitGroup
}

// NewAdapter creates an Instagram adapter. dedupe may be nil.
func NewAdapter(sender ReplySender, engine conversation.Responder, normalizer *payload.Normalizer, dedupe Deduper, cfg AdapterConfig, logger *logging.Logger) *Adapter {
	if sender == nil {
		panic("instagram: sender cannot be nil")
	}
	if engine == nil {
		panic("instagram: engine cannot be nil")
	}
	if normalizer == nil {
		panic("instagram: normalizer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &Adapter{
		sender:     sender,
		engine:     engine,
		normalizer: normalizer,
		dedupe:     dedupe,
		coachMap:   cfg.CoachByPage,
		logger:     logger,
	}
	a.webhook = NewWebhookHandler(cfg.VerifyToken, cfg.AppSecret, a.dispatch)
	return a
}

// HandleVerification handles GET /webhooks/instagram.
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/instagram.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleInbound(w, r)
}

// Wait blocks until in-flight messages finish processing.
func (a *Adapter) Wait() {
	a.wg.Wait()
}

func (a *Adapter) dispatch(msgs []InboundMessage) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
		defer cancel()
		for _, msg := range msgs {
			a.process(ctx, msg)
		}
	}()
}

func (a *Adapter) process(ctx context.Context, msg InboundMessage) {
	logger := a.logger.With("sender_id", msg.SenderID, "page_id", msg.PageID, "mid", msg.MessageID)

	if msg.MessageID != "" && a.dedupe != nil {
		first, err := a.dedupe.FirstSeen(ctx, msg.MessageID)
		if err != nil {
			logger.Warn("instagram: dedupe check failed, processing anyway", "error", err)
		} else if !first {
			logger.Info("instagram: duplicate delivery skipped")
			return
		}
	}

	req := a.normalizer.NormalizeMap(map[string]any{
		"coach_id":    a.coachMap[msg.PageID],
		"user_handle": msg.SenderID,
		"contact_id":  msg.SenderID,
		"message":     msg.Text,
		"source":      sourceInstagram,
	})

	res, err := a.engine.Handle(ctx, req)
	if err != nil {
		logger.Error("instagram: conversation failed", "status", res.Status, "error", err)
		return
	}
	if !res.Response.ShouldReply || res.Response.Reply == "" {
		return
	}

	if _, err := a.sender.SendText(ctx, msg.SenderID, res.Response.Reply); err != nil {
		logger.Error("instagram: failed to send reply", "error", err)
		return
	}
	logger.Info("instagram: reply sent", "question_count", res.Response.QuestionCount)
}
