package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PgxPool is the subset of pgxpool.Pool used by the store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionColumns = `id::text, coach_id::text, user_handle, question_count,
		COALESCE(last_question_at, created_at), COALESCE(messages, '[]'::jsonb), created_at`

// PostgresStore keeps sessions in the dm_sessions table.
type PostgresStore struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("session: pgx pool cannot be nil")
	}
	return &PostgresStore{
		pool:   pool,
		tracer: otel.Tracer("agentx.internal.session"),
	}
}

func (s *PostgresStore) Get(ctx context.Context, coachID, handle string) (*Session, error) {
	ctx, span := s.start(ctx, "session.get", coachID, handle)
	defer span.End()

	query := `SELECT ` + sessionColumns + `
		FROM dm_sessions
		WHERE coach_id = $1 AND user_handle = $2`
	sess, err := scanSession(s.pool.QueryRow(ctx, query, coachID, handle))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: get: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, coachID, handle string) (*Session, error) {
	ctx, span := s.start(ctx, "session.get_or_create", coachID, handle)
	defer span.End()

	query := `INSERT INTO dm_sessions (coach_id, user_handle, question_count, messages)
		VALUES ($1, $2, 0, '[]'::jsonb)
		ON CONFLICT (coach_id, user_handle) DO UPDATE SET user_handle = EXCLUDED.user_handle
		RETURNING ` + sessionColumns
	sess, err := scanSession(s.pool.QueryRow(ctx, query, coachID, handle))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: get or create: %w", err)
	}
	return sess, nil
}

// Increment bumps question_count by one, creating the session with a count
// of one when it does not exist yet.
func (s *PostgresStore) Increment(ctx context.Context, coachID, handle string) (*Session, error) {
	ctx, span := s.start(ctx, "session.increment", coachID, handle)
	defer span.End()

	query := `INSERT INTO dm_sessions (coach_id, user_handle, question_count, last_question_at, messages)
		VALUES ($1, $2, 1, now(), '[]'::jsonb)
		ON CONFLICT (coach_id, user_handle) DO UPDATE
		SET question_count = dm_sessions.question_count + 1,
			last_question_at = now()
		RETURNING ` + sessionColumns
	sess, err := scanSession(s.pool.QueryRow(ctx, query, coachID, handle))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: increment: %w", err)
	}
	return sess, nil
}

// AppendHistory appends entries and keeps the most recent MaxHistory in a
// single statement.
func (s *PostgresStore) AppendHistory(ctx context.Context, coachID, handle string, entries ...Entry) (*Session, error) {
	ctx, span := s.start(ctx, "session.append_history", coachID, handle)
	defer span.End()

	if entries == nil {
		entries = []Entry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: marshal history: %w", err)
	}

	query := `UPDATE dm_sessions
		SET messages = (
			SELECT COALESCE(jsonb_agg(recent.elem ORDER BY recent.ord), '[]'::jsonb)
			FROM (
				SELECT elem, ord
				FROM jsonb_array_elements(COALESCE(dm_sessions.messages, '[]'::jsonb) || $3::jsonb)
					WITH ORDINALITY AS t(elem, ord)
				ORDER BY ord DESC
				LIMIT $4
			) AS recent
		)
		WHERE coach_id = $1 AND user_handle = $2
		RETURNING ` + sessionColumns
	sess, err := scanSession(s.pool.QueryRow(ctx, query, coachID, handle, string(payload), MaxHistory))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: append history: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Delete(ctx context.Context, coachID, handle string) error {
	ctx, span := s.start(ctx, "session.delete", coachID, handle)
	defer span.End()

	tag, err := s.pool.Exec(ctx, `DELETE FROM dm_sessions WHERE coach_id = $1 AND user_handle = $2`, coachID, handle)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) start(ctx context.Context, name, coachID, handle string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("coach_id", coachID),
		attribute.String("user_handle", handle),
	))
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess Session
		raw  []byte
	)
	if err := row.Scan(&sess.ID, &sess.CoachID, &sess.UserHandle, &sess.QuestionCount, &sess.LastQuestionAt, &raw, &sess.CreatedAt); err != nil {
		return nil, err
	}
	sess.Messages = []Entry{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sess.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	return &sess, nil
}
