package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agentx-dm-platform/internal/llm"
	"github.com/wolfman30/agentx-dm-platform/internal/payload"
)

func newTestHandler(h *harness) *Handler {
	return NewHandler(h.engine(), payload.NewNormalizer(testCoachID, "manychat", nil), h.sessions, nil)
}

func postWebhook(t *testing.T, handler *Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/functions/ai-assistant", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Webhook(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestWebhookNonUUIDCoachUsesDefault(t *testing.T) {
	h := newHarness()
	rec, out := postWebhook(t, newTestHandler(h), `{"coach_id":"not-a-uuid","message":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(1), out["question_count"])
	assert.Equal(t, "QUESTION", out["intent"])
	assert.Equal(t, out["reply"], out["message"])
	assert.Equal(t, true, out["should_reply"])
	assert.Contains(t, out, "tracking_link")
	assert.Nil(t, out["tracking_link"])
	assert.NotContains(t, out, "error")
}

func TestWebhookNestedPayload(t *testing.T) {
	h := newHarness()
	body := `{"customData":{"coach_id":"` + testCoachID + `","user_handle":"@fit_jane","contact_name":"Jane"},"message":{"text":"what's included?"}}`
	rec, _ := postWebhook(t, newTestHandler(h), body)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := h.sessions.Get(context.Background(), testCoachID, "@fit_jane")
	require.NoError(t, err)
	assert.Equal(t, "what's included?", stored.Messages[0].Content)
}

func TestWebhookMissingMessage(t *testing.T) {
	h := newHarness()
	rec, out := postWebhook(t, newTestHandler(h), `{"message":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["error"])
	assert.NotEmpty(t, out["reply"])
	assert.Equal(t, false, out["should_reply"])
	assert.Equal(t, float64(0), out["question_count"])
}

func TestWebhookMalformedBodyIsMissingMessage(t *testing.T) {
	h := newHarness()
	rec, _ := postWebhook(t, newTestHandler(h), `[1,2,3]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookPassesThroughRateLimit(t *testing.T) {
	h := newHarness()
	h.llm.err = &llm.StatusError{StatusCode: http.StatusTooManyRequests}
	rec, out := postWebhook(t, newTestHandler(h), `{"message":"price?","user_handle":"x"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", out["error"])
	assert.Equal(t, false, out["should_reply"])
}

func TestRateLimitedKeepsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(newHarness()).RateLimited(rec, httptest.NewRequest(http.MethodPost, "/functions/ai-assistant", nil))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Sorry, I'm a bit busy right now. Please try again in a moment.", out["reply"])
	assert.Equal(t, out["reply"], out["message"])
	assert.Equal(t, "Rate limit exceeded. Please try again later.", out["error"])
	assert.Equal(t, false, out["should_reply"])
	assert.Equal(t, float64(0), out["question_count"])
	assert.Contains(t, out, "tracking_link")
}

func TestDeleteSession(t *testing.T) {
	h := newHarness()
	_, err := h.sessions.Increment(context.Background(), testCoachID, "jane_doe")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Delete("/admin/coaches/{coachID}/sessions/{handle}", newTestHandler(h).DeleteSession)

	req := httptest.NewRequest(http.MethodDelete, "/admin/coaches/"+testCoachID+"/sessions/jane_doe", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/coaches/"+testCoachID+"/sessions/jane_doe", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
