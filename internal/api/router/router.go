package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/agentx-dm-platform/internal/attribution"
	"github.com/wolfman30/agentx-dm-platform/internal/channels/instagram"
	"github.com/wolfman30/agentx-dm-platform/internal/coach"
	"github.com/wolfman30/agentx-dm-platform/internal/conversation"
	httpmiddleware "github.com/wolfman30/agentx-dm-platform/internal/http/middleware"
	"github.com/wolfman30/agentx-dm-platform/internal/ingestion"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const healthTimeout = 2 * time.Second

// Config holds router configuration. Nil handlers leave their routes
// unregistered.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	IngestionHandler    *ingestion.Handler
	CoachHandler        *coach.Handler
	AttributionHandler  *attribution.Handler
	Instagram           *instagram.Adapter
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
	RateLimiter         *httpmiddleware.RateLimiter

	// HealthCheck reports dependency health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/functions", func(fn chi.Router) {
		if cfg.ConversationHandler != nil {
			fn.With(httpmiddleware.RateLimitWith(cfg.RateLimiter, cfg.ConversationHandler.RateLimited)).
				Post("/ai-assistant", cfg.ConversationHandler.Webhook)
		}
		fn.Group(func(g chi.Router) {
			g.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			if cfg.IngestionHandler != nil {
				g.Post("/process-content", cfg.IngestionHandler.ProcessContent)
				g.Post("/process-content/async", cfg.IngestionHandler.ProcessContentAsync)
				g.Get("/process-content/jobs/{jobID}", cfg.IngestionHandler.JobStatus)
			}
			if cfg.CoachHandler != nil {
				g.Post("/create-coach", cfg.CoachHandler.CreateCoach)
			}
			if cfg.AttributionHandler != nil {
				g.Post("/sales-webhook", cfg.AttributionHandler.SalesWebhook)
			}
		})
	})

	if cfg.AttributionHandler != nil {
		r.Get("/track/{slug}", cfg.AttributionHandler.Track)
	}

	if cfg.Instagram != nil {
		r.Get("/webhooks/instagram", cfg.Instagram.HandleVerification)
		r.Post("/webhooks/instagram", cfg.Instagram.HandleWebhook)
	}

	if cfg.ConversationHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Delete("/coaches/{coachID}/sessions/{handle}", cfg.ConversationHandler.DeleteSession)
		})
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
