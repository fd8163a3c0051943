package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/agentx-dm-platform/cmd/mainconfig"
	"github.com/wolfman30/agentx-dm-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agentx-dm-platform/internal/config"
	"github.com/wolfman30/agentx-dm-platform/internal/ingestion"
	"github.com/wolfman30/agentx-dm-platform/internal/knowledge"
	"github.com/wolfman30/agentx-dm-platform/internal/observability/metrics"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.UseMemoryQueue || cfg.IngestionQueueURL == "" {
		logger.Error("ingestion worker requires INGESTION_QUEUE_URL and USE_MEMORY_QUEUE=false")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPgxPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	llmClients, err := bootstrap.BuildLLMClients(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Warn("llm unavailable; scanned documents will not be transcribed", "error", err)
		llmClients = &bootstrap.LLMClients{}
	}
	defer llmClients.Close()

	var cache ingestion.CacheInvalidator
	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		defer redisClient.Close()
		cache = knowledge.NewCachedReader(knowledge.NewPostgresStore(pool), redisClient, cfg.KnowledgeCacheTTL, logger)
	}

	ing, err := bootstrap.BuildIngestion(cfg, bootstrap.IngestionDeps{
		Pool:        pool,
		AWS:         awsCfg,
		Cache:       cache,
		Transcriber: llmClients.Transcriber,
		Metrics:     metrics.NewIngestionMetrics(prometheus.DefaultRegisterer),
	}, logger)
	if err != nil {
		logger.Error("failed to build ingestion pipeline", "error", err)
		os.Exit(1)
	}

	ing.Worker.Start(ctx)
	logger.Info("ingestion worker started", "workers", cfg.WorkerCount, "queue_url", cfg.IngestionQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down ingestion worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		ing.Worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("ingestion worker stopped")
	case <-doneCtx.Done():
		logger.Error("ingestion worker shutdown timed out", "error", doneCtx.Err())
	}
}
