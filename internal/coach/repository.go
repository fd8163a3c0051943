package coach

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository reads and writes coach records.
type Repository interface {
	Get(ctx context.Context, id string) (*Coach, error)
	FirstActiveOffer(ctx context.Context, coachID string) (*Offer, error)
	Insert(ctx context.Context, c NewCoach) (string, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	AddRole(ctx context.Context, userID, role string) error
}

// PgxPool is the subset of pgxpool.Pool used by the repository.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	pool PgxPool
}

func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("coach: pgx pool cannot be nil")
	}
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Coach, error) {
	query := `
		SELECT id::text, COALESCE(user_id::text, ''), COALESCE(name, ''), COALESCE(email, ''),
			COALESCE(brand_name, ''), COALESCE(plan, 'basic'), COALESCE(system_prompt, ''),
			COALESCE(tone, ''), COALESCE(response_style, ''), COALESCE(brand_voice, ''),
			COALESCE(escalation_email, ''), COALESCE(max_questions_before_cta, 3),
			COALESCE(main_checkout_url, ''), COALESCE(default_commission_rate, 0)::float8
		FROM coaches
		WHERE id = $1`

	var (
		c    Coach
		plan string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Email,
		&c.BrandName, &plan, &c.SystemPrompt,
		&c.Tone, &c.ResponseStyle, &c.BrandVoice,
		&c.EscalationEmail, &c.MaxQuestionsBeforeCTA,
		&c.MainCheckoutURL, &c.DefaultCommissionRate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("coach: get: %w", err)
	}
	c.Plan = ParsePlan(plan)
	return &c, nil
}

func (r *PostgresRepository) FirstActiveOffer(ctx context.Context, coachID string) (*Offer, error) {
	query := `
		SELECT id::text, coach_id::text, COALESCE(name, ''), tracking_slug, COALESCE(target_url, '')
		FROM offers
		WHERE coach_id = $1 AND is_active = true
		ORDER BY created_at ASC
		LIMIT 1`

	var o Offer
	err := r.pool.QueryRow(ctx, query, coachID).Scan(&o.ID, &o.CoachID, &o.Name, &o.TrackingSlug, &o.TargetURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("coach: first active offer: %w", err)
	}
	return &o, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, c NewCoach) (string, error) {
	if c.Plan == "" {
		c.Plan = PlanBasic
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO coaches (user_id, name, email, brand_name, plan)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id::text`,
		c.UserID, c.Name, c.Email, c.BrandName, string(c.Plan),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("coach: insert: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`,
		userID, role,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("coach: has role: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) AddRole(ctx context.Context, userID, role string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING`, userID, role)
	if err != nil {
		return fmt.Errorf("coach: add role: %w", err)
	}
	return nil
}
