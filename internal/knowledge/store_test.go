package knowledge

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresStoreListChunksOrdered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery(`SELECT content_chunk FROM embeddings WHERE coach_id = \$1 ORDER BY created_at ASC`).
		WithArgs("coach-1").
		WillReturnRows(pgxmock.NewRows([]string{"content_chunk"}).AddRow("first").AddRow("second"))

	chunks, err := store.ListChunks(context.Background(), "coach-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "first" || chunks[1] != "second" {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreListChunksError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT content_chunk").WithArgs("coach-1").WillReturnError(errors.New("boom"))
	if _, err := store.ListChunks(context.Background(), "coach-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPostgresStoreInsertChunks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	chunks := []string{"chunk one", "chunk two"}
	mock.ExpectExec("INSERT INTO embeddings").
		WithArgs("coach-1", "file-1", "ing-1", chunks).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	if err := store.InsertChunks(context.Background(), Batch{CoachID: "coach-1", FileID: "file-1", IngestionID: "ing-1", Chunks: chunks}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertChunks(context.Background(), Batch{CoachID: "coach-1"}); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreDeletes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("DELETE FROM embeddings WHERE coach_id = \\$1 AND file_id = \\$2").
		WithArgs("coach-1", "file-1", "ing-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec("DELETE FROM embeddings WHERE ingestion_id").
		WithArgs("ing-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := store.DeleteStaleFileChunks(context.Background(), "coach-1", "file-1", "ing-2")
	if err != nil || n != 4 {
		t.Fatalf("delete by file: n=%d err=%v", n, err)
	}
	n, err = store.DeleteByIngestion(context.Background(), "ing-1")
	if err != nil || n != 2 {
		t.Fatalf("delete by ingestion: n=%d err=%v", n, err)
	}
}
