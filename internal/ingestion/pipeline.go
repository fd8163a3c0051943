package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/agentx-dm-platform/internal/knowledge"
	"github.com/wolfman30/agentx-dm-platform/internal/observability/metrics"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// DefaultBatchSize is the number of chunks written per insert.
const DefaultBatchSize = 20

// ErrMissingFields is returned when a job lacks file_url, coach_id or filename.
var ErrMissingFields = errors.New("ingestion: missing required fields")

// Job describes one file to ingest.
type Job struct {
	FileID   string `json:"file_id,omitempty"`
	CoachID  string `json:"coach_id"`
	FileURL  string `json:"file_url"`
	Filename string `json:"filename"`
}

func (j Job) validate() error {
	if strings.TrimSpace(j.FileURL) == "" || strings.TrimSpace(j.CoachID) == "" || strings.TrimSpace(j.Filename) == "" {
		return ErrMissingFields
	}
	return nil
}

// Result summarizes a successful ingestion run.
type Result struct {
	IngestionID   string `json:"ingestion_id" dynamodbav:"ingestionId"`
	ChunksCreated int    `json:"chunks_created" dynamodbav:"chunksCreated"`
	TotalChars    int    `json:"total_chars" dynamodbav:"totalChars"`
}

// CacheInvalidator drops cached knowledge for a coach.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, coachID string) error
}

// Pipeline fetches a file, extracts its text, chunks it and stores the
// chunks as the coach's knowledge.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	chunks    knowledge.Writer
	files     FileMarker
	cache     CacheInvalidator
	metrics   *metrics.IngestionMetrics
	logger    *logging.Logger

	batchSize    int
	chunkSize    int
	chunkOverlap int
	now          func() time.Time
	newID        func() string
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithChunking(size, overlap int) PipelineOption {
	return func(p *Pipeline) {
		if size > 0 {
			p.chunkSize = size
		}
		if overlap >= 0 && overlap < p.chunkSize {
			p.chunkOverlap = overlap
		}
	}
}

func WithFileMarker(files FileMarker) PipelineOption {
	return func(p *Pipeline) {
		p.files = files
	}
}

func WithCacheInvalidator(cache CacheInvalidator) PipelineOption {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

func WithMetrics(m *metrics.IngestionMetrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func NewPipeline(fetcher Fetcher, extractor Extractor, chunks knowledge.Writer, logger *logging.Logger, opts ...PipelineOption) *Pipeline {
	if fetcher == nil {
		panic("ingestion: fetcher cannot be nil")
	}
	if extractor == nil {
		panic("ingestion: extractor cannot be nil")
	}
	if chunks == nil {
		panic("ingestion: chunk writer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pipeline{
		fetcher:      fetcher,
		extractor:    extractor,
		chunks:       chunks,
		logger:       logger,
		batchSize:    DefaultBatchSize,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs the pipeline for job. Chunks from a failed run are removed;
// a successful run for a file replaces the file's earlier chunks.
func (p *Pipeline) Ingest(ctx context.Context, job Job) (Result, error) {
	started := p.now()
	res, err := p.ingest(ctx, job)
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	p.metrics.ObserveRun(outcome, res.ChunksCreated, p.now().Sub(started).Seconds())
	return res, err
}

func (p *Pipeline) ingest(ctx context.Context, job Job) (Result, error) {
	if err := job.validate(); err != nil {
		return Result{}, err
	}
	log := p.logger.With("coach_id", job.CoachID, "filename", job.Filename, "file_id", job.FileID)

	data, contentType, err := p.fetcher.Fetch(ctx, job.FileURL)
	if err != nil {
		return Result{}, err
	}
	log.Info("file fetched", "bytes", len(data), "content_type", contentType)

	text, err := p.extractor.Extract(ctx, Document{Filename: job.Filename, ContentType: contentType, Data: data})
	if err != nil {
		return Result{}, err
	}

	chunks := ChunkText(text, p.chunkSize, p.chunkOverlap)
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("%w: %s produced no chunks", ErrNoContent, job.Filename)
	}

	ingestionID := p.newID()
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		err := p.chunks.InsertChunks(ctx, knowledge.Batch{
			CoachID:     job.CoachID,
			FileID:      job.FileID,
			IngestionID: ingestionID,
			Chunks:      chunks[start:end],
		})
		if err != nil {
			p.rollback(log, job.CoachID, ingestionID)
			return Result{}, fmt.Errorf("ingestion: store batch %d: %w", start/p.batchSize+1, err)
		}
	}

	if job.FileID != "" {
		if removed, err := p.chunks.DeleteStaleFileChunks(ctx, job.CoachID, job.FileID, ingestionID); err != nil {
			log.Error("failed to remove earlier chunks for file", "error", err)
		} else if removed > 0 {
			log.Info("replaced earlier chunks for file", "removed", removed)
		}
		if p.files != nil {
			if err := p.files.MarkProcessed(ctx, job.FileID); err != nil {
				log.Error("failed to mark file processed", "error", err)
			}
		}
	}

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, job.CoachID); err != nil {
			log.Warn("failed to invalidate knowledge cache", "error", err)
		}
	}

	log.Info("file ingested", "chunks", len(chunks), "total_chars", len([]rune(text)), "ingestion_id", ingestionID)
	return Result{IngestionID: ingestionID, ChunksCreated: len(chunks), TotalChars: len([]rune(text))}, nil
}

// rollback removes the partial chunks of a failed run and drops any corpus
// cached while they were visible. It runs on its own context so a cancelled
// request still cleans up.
func (p *Pipeline) rollback(log *logging.Logger, coachID, ingestionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	removed, err := p.chunks.DeleteByIngestion(ctx, ingestionID)
	if err != nil {
		log.Error("failed to roll back partial ingestion", "ingestion_id", ingestionID, "error", err)
	} else {
		log.Warn("rolled back partial ingestion", "ingestion_id", ingestionID, "removed", removed)
	}
	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, coachID); err != nil {
			log.Warn("failed to invalidate knowledge cache", "error", err)
		}
	}
}
