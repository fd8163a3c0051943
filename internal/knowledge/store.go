package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reader returns a coach's knowledge chunks in creation order.
type Reader interface {
	ListChunks(ctx context.Context, coachID string) ([]string, error)
}

// Writer persists and removes knowledge chunks.
type Writer interface {
	InsertChunks(ctx context.Context, batch Batch) error
	DeleteStaleFileChunks(ctx context.Context, coachID, fileID, keepIngestionID string) (int64, error)
	DeleteByIngestion(ctx context.Context, ingestionID string) (int64, error)
}

// Batch is a group of chunks written in one statement.
type Batch struct {
	CoachID     string
	FileID      string
	IngestionID string
	Chunks      []string
}

// PgxPool is the subset of pgxpool.Pool used by the store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads and writes the embeddings table. The vector column is
// never populated; retrieval is the whole corpus for the coach.
type PostgresStore struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("knowledge: pgx pool cannot be nil")
	}
	return &PostgresStore{pool: pool, tracer: otel.Tracer("agentx.internal.knowledge")}
}

func (s *PostgresStore) ListChunks(ctx context.Context, coachID string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.list_chunks", trace.WithAttributes(attribute.String("coach_id", coachID)))
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT content_chunk
		FROM embeddings
		WHERE coach_id = $1
		ORDER BY created_at ASC`, coachID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("knowledge: list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var chunk string
		if err := rows.Scan(&chunk); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("knowledge: scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("knowledge: iterate chunks: %w", err)
	}
	return chunks, nil
}

// InsertChunks writes a batch in one statement. clock_timestamp keeps the
// creation order of the batch stable for ListChunks.
func (s *PostgresStore) InsertChunks(ctx context.Context, batch Batch) error {
	if len(batch.Chunks) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "knowledge.insert_chunks", trace.WithAttributes(
		attribute.String("coach_id", batch.CoachID),
		attribute.Int("chunks", len(batch.Chunks)),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO embeddings (coach_id, file_id, ingestion_id, content_chunk, embedding_vector, created_at)
		SELECT $1, NULLIF($2, '')::uuid, NULLIF($3, '')::uuid, c.chunk, NULL, clock_timestamp()
		FROM unnest($4::text[]) WITH ORDINALITY AS c(chunk, ord)
		ORDER BY c.ord`,
		batch.CoachID, batch.FileID, batch.IngestionID, batch.Chunks)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("knowledge: insert chunks: %w", err)
	}
	return nil
}

// DeleteStaleFileChunks removes chunks of fileID written by any ingestion run
// other than keepIngestionID.
func (s *PostgresStore) DeleteStaleFileChunks(ctx context.Context, coachID, fileID, keepIngestionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM embeddings
		WHERE coach_id = $1 AND file_id = $2
			AND (ingestion_id IS NULL OR ingestion_id::text <> $3)`,
		coachID, fileID, keepIngestionID)
	if err != nil {
		return 0, fmt.Errorf("knowledge: delete stale file chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteByIngestion(ctx context.Context, ingestionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM embeddings WHERE ingestion_id = $1`, ingestionID)
	if err != nil {
		return 0, fmt.Errorf("knowledge: delete by ingestion: %w", err)
	}
	return tag.RowsAffected(), nil
}
