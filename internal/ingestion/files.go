package ingestion

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// FileMarker flags an uploaded file as processed.
type FileMarker interface {
	MarkProcessed(ctx context.Context, fileID string) error
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// FileStore updates the course_files table.
type FileStore struct {
	db execer
}

func NewFileStore(db execer) *FileStore {
	if db == nil {
		panic("ingestion: db cannot be nil")
	}
	return &FileStore{db: db}
}

func (s *FileStore) MarkProcessed(ctx context.Context, fileID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE course_files SET processed = true WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ingestion: mark file processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingestion: file %s not found", fileID)
	}
	return nil
}
