package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/agentx-dm-platform/internal/config"
	"github.com/wolfman30/agentx-dm-platform/internal/ingestion"
	"github.com/wolfman30/agentx-dm-platform/internal/knowledge"
	"github.com/wolfman30/agentx-dm-platform/internal/llm"
	"github.com/wolfman30/agentx-dm-platform/internal/observability/metrics"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const memoryQueueBuffer = 100

// Ingestion holds the content pipeline and its optional async plumbing.
// Publisher and Worker are nil when no queue is configured; Jobs is nil
// when job status is not tracked.
type Ingestion struct {
	Pipeline  *ingestion.Pipeline
	Publisher *ingestion.Publisher
	Worker    *ingestion.Worker
	Jobs      ingestion.JobTracker
}

// IngestionDeps are the shared clients the pipeline is built on.
type IngestionDeps struct {
	Pool        *pgxpool.Pool
	AWS         aws.Config
	Cache       ingestion.CacheInvalidator
	Transcriber llm.DocumentTranscriber
	Metrics     *metrics.IngestionMetrics
}

// BuildIngestion wires the pipeline and, when USE_MEMORY_QUEUE or
// INGESTION_QUEUE_URL is set, the queue publisher and worker.
func BuildIngestion(cfg *appconfig.Config, deps IngestionDeps, logger *logging.Logger) (*Ingestion, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("bootstrap: postgres pool is required for ingestion")
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := []ingestion.PipelineOption{
		ingestion.WithBatchSize(cfg.IngestionBatchSize),
		ingestion.WithFileMarker(ingestion.NewFileStore(deps.Pool)),
		ingestion.WithMetrics(deps.Metrics),
	}
	if deps.Cache != nil {
		opts = append(opts, ingestion.WithCacheInvalidator(deps.Cache))
	}
	pipeline := ingestion.NewPipeline(
		ingestion.NewURLFetcher(cfg.FetchTimeout, s3.NewFromConfig(deps.AWS)),
		ingestion.NewDefaultChain(deps.Transcriber, logger),
		knowledge.NewPostgresStore(deps.Pool),
		logger,
		opts...,
	)
	out := &Ingestion{Pipeline: pipeline}

	workerOpts := []ingestion.WorkerOption{ingestion.WithWorkerCount(cfg.WorkerCount)}
	switch {
	case cfg.UseMemoryQueue:
		queue := ingestion.NewMemoryQueue(memoryQueueBuffer)
		out.Publisher = ingestion.NewPublisher(queue, nil, logger)
		out.Worker = ingestion.NewWorker(pipeline, queue, nil, logger, workerOpts...)
		logger.Info("ingestion using in-memory queue")
	case strings.TrimSpace(cfg.IngestionQueueURL) != "":
		queue := ingestion.NewSQSQueue(sqs.NewFromConfig(deps.AWS), cfg.IngestionQueueURL)
		if strings.TrimSpace(cfg.IngestionJobsTable) != "" {
			out.Jobs = ingestion.NewJobStore(dynamodb.NewFromConfig(deps.AWS), cfg.IngestionJobsTable, logger)
		}
		out.Publisher = ingestion.NewPublisher(queue, out.Jobs, logger)
		out.Worker = ingestion.NewWorker(pipeline, queue, out.Jobs, logger, workerOpts...)
		logger.Info("ingestion using sqs queue", "queue_url", cfg.IngestionQueueURL, "jobs_table", cfg.IngestionJobsTable)
	default:
		logger.Info("no ingestion queue configured; async ingestion disabled")
	}
	return out, nil
}

// JobRecorder returns Jobs as a recorder, or nil when untracked.
func (i *Ingestion) JobRecorder() ingestion.JobRecorder {
	if i.Jobs == nil {
		return nil
	}
	return i.Jobs
}
