package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/agentx-dm-platform/internal/payload"
	"github.com/wolfman30/agentx-dm-platform/internal/session"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const maxWebhookBody = 1 << 20

// Responder answers a canonical inbound message.
type Responder interface {
	Handle(ctx context.Context, req payload.Request) (Result, error)
}

// Handler wires HTTP requests to the conversation engine.
type Handler struct {
	engine     Responder
	normalizer *payload.Normalizer
	sessions   session.Store
	logger     *logging.Logger
}

// NewHandler creates a conversation handler. sessions backs the admin
// session endpoints and may be nil.
func NewHandler(engine Responder, normalizer *payload.Normalizer, sessions session.Store, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if normalizer == nil {
		panic("conversation: normalizer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:     engine,
		normalizer: normalizer,
		sessions:   sessions,
		logger:     logger,
	}
}

// Webhook handles POST /functions/ai-assistant.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		h.writeJSON(w, http.StatusBadRequest, failure(http.StatusBadRequest, errorMissingMessage, replyMissingMessage, 0).Response)
		return
	}

	req, err := h.normalizer.Normalize(body)
	if err != nil && !errors.Is(err, payload.ErrMissingMessage) {
		h.logger.Warn("payload normalization failed", "error", err)
	}

	res, err := h.engine.Handle(r.Context(), req)
	if err != nil {
		h.logger.Warn("webhook exchange failed", "status", res.Status, "coach_id", req.CoachID, "error", err)
	}
	h.writeJSON(w, res.Status, res.Response)
}

// RateLimited answers a throttled webhook with the standard error envelope.
func (h *Handler) RateLimited(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusTooManyRequests, failure(http.StatusTooManyRequests, errorRateLimited, replyBusy, 0).Response)
}

// DeleteSession handles DELETE /admin/coaches/{coachID}/sessions/{handle}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		http.Error(w, "Session store unavailable", http.StatusServiceUnavailable)
		return
	}
	coachID := chi.URLParam(r, "coachID")
	handle := chi.URLParam(r, "handle")
	if coachID == "" || handle == "" {
		http.Error(w, "coachID and handle are required", http.StatusBadRequest)
		return
	}

	if err := h.sessions.Delete(r.Context(), coachID, handle); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete session", "coach_id", coachID, "user_handle", handle, "error", err)
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}
	h.logger.Info("session deleted", "coach_id", coachID, "user_handle", handle)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
