package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agentx-dm-platform/internal/api/router"
	"github.com/wolfman30/agentx-dm-platform/internal/attribution"
	"github.com/wolfman30/agentx-dm-platform/internal/channels/instagram"
	"github.com/wolfman30/agentx-dm-platform/internal/coach"
	appconfig "github.com/wolfman30/agentx-dm-platform/internal/config"
	"github.com/wolfman30/agentx-dm-platform/internal/contacts"
	"github.com/wolfman30/agentx-dm-platform/internal/conversation"
	httpmiddleware "github.com/wolfman30/agentx-dm-platform/internal/http/middleware"
	"github.com/wolfman30/agentx-dm-platform/internal/ingestion"
	"github.com/wolfman30/agentx-dm-platform/internal/intent"
	"github.com/wolfman30/agentx-dm-platform/internal/knowledge"
	"github.com/wolfman30/agentx-dm-platform/internal/notify"
	"github.com/wolfman30/agentx-dm-platform/internal/observability/metrics"
	"github.com/wolfman30/agentx-dm-platform/internal/payload"
	"github.com/wolfman30/agentx-dm-platform/internal/session"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// API is the fully wired HTTP surface plus the background pieces that share
// its lifetime.
type API struct {
	Handler   http.Handler
	Ingestion *Ingestion

	instagram *instagram.Adapter
	closers   []func()
}

// StartBackground runs the in-process ingestion worker when the memory queue
// is in use. SQS-backed deployments run cmd/ingestion-worker instead.
func (a *API) StartBackground(ctx context.Context, cfg *appconfig.Config) {
	if cfg.UseMemoryQueue && a.Ingestion != nil && a.Ingestion.Worker != nil {
		a.Ingestion.Worker.Start(ctx)
	}
}

// Drain waits for in-flight Instagram replies.
func (a *API) Drain() {
	if a.instagram != nil {
		a.instagram.Wait()
	}
}

// Close waits for in-flight background work and releases clients.
func (a *API) Close() {
	a.Drain()
	if a.Ingestion != nil && a.Ingestion.Worker != nil {
		a.Ingestion.Worker.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type coachGetter interface {
	Get(ctx context.Context, id string) (*coach.Coach, error)
}

// checkDefaultCoach reports whether the fallback coach exists. Webhooks
// without a valid coach id cannot create sessions until it does.
func checkDefaultCoach(ctx context.Context, coaches coachGetter, id string, logger *logging.Logger) bool {
	_, err := coaches.Get(ctx, id)
	switch {
	case err == nil:
		return true
	case errors.Is(err, coach.ErrNotFound):
		logger.Warn("default coach is missing; seed it or set DEFAULT_COACH_ID", "coach_id", id)
	default:
		logger.Warn("default coach lookup failed", "coach_id", id, "error", err)
	}
	return false
}

// BuildAPI wires every store, client and handler from cfg.
func BuildAPI(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*API, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	api := &API{}

	pool, err := BuildPgxPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	api.closers = append(api.closers, pool.Close)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		api.closers = append(api.closers, func() { _ = redisClient.Close() })
	}

	llmClients, err := BuildLLMClients(ctx, cfg, awsCfg, logger)
	if err != nil {
		api.Close()
		return nil, err
	}
	api.closers = append(api.closers, func() { _ = llmClients.Close() })

	convMetrics := metrics.NewConversationMetrics(prometheus.DefaultRegisterer)
	ingestMetrics := metrics.NewIngestionMetrics(prometheus.DefaultRegisterer)

	sessions := session.NewPostgresStore(pool)
	chunkStore := knowledge.NewPostgresStore(pool)
	var chunks knowledge.Reader = chunkStore
	var cache ingestion.CacheInvalidator
	if redisClient != nil {
		cached := knowledge.NewCachedReader(chunkStore, redisClient, cfg.KnowledgeCacheTTL, logger)
		chunks, cache = cached, cached
	}
	coaches := coach.NewPostgresRepository(pool)
	checkDefaultCoach(ctx, coaches, cfg.DefaultCoachID, logger)

	notifier := notify.NewEscalationNotifier(BuildEmailSender(cfg, awsCfg, logger), logger)
	engine := conversation.NewEngine(
		sessions,
		intent.NewClassifier(llmClients.Client, cfg.ClassifierModel, logger),
		coaches,
		chunks,
		llmClients.Client,
		logger,
		conversation.WithModel(cfg.LLMModel),
		conversation.WithContacts(contacts.NewPostgresStore(pool)),
		conversation.WithNotifier(notifier),
		conversation.WithMetrics(convMetrics),
		conversation.WithPublicBaseURL(cfg.PublicBaseURL),
	)
	normalizer := payload.NewNormalizer(cfg.DefaultCoachID, cfg.DefaultSource, logger)

	ing, err := BuildIngestion(cfg, IngestionDeps{
		Pool:        pool,
		AWS:         awsCfg,
		Cache:       cache,
		Transcriber: llmClients.Transcriber,
		Metrics:     ingestMetrics,
	}, logger)
	if err != nil {
		api.Close()
		return nil, err
	}
	api.Ingestion = ing

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(engine, normalizer, sessions, logger),
		IngestionHandler:    ingestion.NewHandler(ing.Pipeline, ing.Publisher, ing.JobRecorder(), logger),
		AttributionHandler:  attribution.NewHandler(attribution.NewService(attribution.NewPostgresStore(pool), logger), logger),
		MetricsHandler:      promhttp.Handler(),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		HealthCheck:         pool.Ping,
	}

	if strings.TrimSpace(cfg.IdentityURL) != "" {
		identity := coach.NewIdentityClient(cfg.IdentityURL, cfg.IdentityAnonKey, cfg.IdentityServiceKey, nil)
		routerCfg.CoachHandler = coach.NewHandler(coach.NewService(identity, coaches, logger), logger)
	} else {
		logger.Warn("IDENTITY_URL not set; coach provisioning disabled")
	}

	if cfg.RateLimitRPS > 0 {
		limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		routerCfg.RateLimiter = limiter
		api.closers = append(api.closers, limiter.Close)
	}

	if strings.TrimSpace(cfg.InstagramPageAccessToken) != "" {
		api.instagram = buildInstagram(cfg, engine, normalizer, redisClient, logger)
		routerCfg.Instagram = api.instagram
	}

	api.Handler = router.New(routerCfg)
	return api, nil
}

func buildInstagram(cfg *appconfig.Config, engine conversation.Responder, normalizer *payload.Normalizer, redisClient *redis.Client, logger *logging.Logger) *instagram.Adapter {
	var dedupe instagram.Deduper
	if redisClient != nil {
		dedupe = instagram.NewRedisDeduper(redisClient)
	} else {
		logger.Warn("redis not configured; instagram redeliveries will not be deduplicated")
	}
	coachMap := cfg.InstagramCoachMap()
	logger.Info("instagram channel enabled", "pages", len(coachMap))
	return instagram.NewAdapter(
		instagram.NewClient(cfg.InstagramPageAccessToken),
		engine,
		normalizer,
		dedupe,
		instagram.AdapterConfig{
			VerifyToken: cfg.InstagramVerifyToken,
			AppSecret:   cfg.InstagramAppSecret,
			CoachByPage: coachMap,
		},
		logger,
	)
}
