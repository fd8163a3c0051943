package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agentx-dm-platform/internal/attribution"
	"github.com/wolfman30/agentx-dm-platform/internal/conversation"
	httpmiddleware "github.com/wolfman30/agentx-dm-platform/internal/http/middleware"
	"github.com/wolfman30/agentx-dm-platform/internal/payload"
	"github.com/wolfman30/agentx-dm-platform/internal/session"
)

const adminSecret = "router-secret"

type echoResponder struct{}

func (echoResponder) Handle(_ context.Context, req payload.Request) (conversation.Result, error) {
	return conversation.Result{
		Status:   http.StatusOK,
		Response: conversation.Response{Reply: "echo: " + req.Message, Message: "echo: " + req.Message, QuestionCount: 1, ShouldReply: true},
	}, nil
}

type noOffers struct{}

func (noOffers) OfferBySlug(context.Context, string) (*attribution.Offer, error) {
	return nil, attribution.ErrOfferNotFound
}
func (noOffers) InsertClick(context.Context, attribution.Click) error { return nil }
func (noOffers) RecentClickID(context.Context, string, string, time.Time) (string, error) {
	return "", nil
}
func (noOffers) InsertSale(context.Context, attribution.Sale) (string, error) { return "", nil }

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	sessions := session.NewMemoryStore()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ConversationHandler = conversation.NewHandler(echoResponder{}, payload.NewNormalizer("", "manychat", nil), sessions, nil)
	cfg.AttributionHandler = attribution.NewHandler(attribution.NewService(noOffers{}, nil), nil)
	cfg.AdminAuthSecret = adminSecret
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterHealthReportsFailure(t *testing.T) {
	router := newTestRouter(t, &Config{HealthCheck: func(context.Context) error { return errors.New("db down") }})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "db down")
}

func TestRouterConversationWebhook(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/functions/ai-assistant", strings.NewReader(`{"message":"hi","user_handle":"@jane"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "echo: hi", resp["reply"])
}

func TestRouterConversationPreflight(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/functions/ai-assistant", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rr.Header().Get("Access-Control-Allow-Headers"))
}

func TestRouterTrackUnknownSlug(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/track/missing", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterUnregisteredRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/functions/process-content", "/functions/create-coach"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestRouterAdminRequiresJWT(t *testing.T) {
	router := newTestRouter(t, nil)
	path := "/admin/coaches/5b1c1c5e-0a57-4f5e-9d55-6f4b8f6f9d01/sessions/jane"

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.AdminClaims{
		Role: httpmiddleware.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(adminSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterRateLimitsFunctions(t *testing.T) {
	limiter := httpmiddleware.NewRateLimiter(0.001, 1)
	t.Cleanup(limiter.Close)
	router := newTestRouter(t, &Config{RateLimiter: limiter})

	send := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("X-Forwarded-For", "198.51.100.20")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}
	assert.Equal(t, http.StatusOK, send("/functions/ai-assistant", `{"message":"hi"}`).Code)

	rr := send("/functions/ai-assistant", `{"message":"hi"}`)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.NotEmpty(t, out["reply"])
	assert.Equal(t, out["reply"], out["message"])
	assert.Equal(t, false, out["should_reply"])
	assert.Equal(t, float64(0), out["question_count"])
	assert.Contains(t, out, "tracking_link")
	assert.Equal(t, "Rate limit exceeded. Please try again later.", out["error"])

	rr = send("/functions/sales-webhook", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded. Please try again later."}`, rr.Body.String())
}
