package attribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store persists clicks and sales.
type Store interface {
	OfferBySlug(ctx context.Context, slug string) (*Offer, error)
	InsertClick(ctx context.Context, click Click) error
	RecentClickID(ctx context.Context, offerID, email string, since time.Time) (string, error)
	InsertSale(ctx context.Context, sale Sale) (string, error)
}

// PgxPool is the subset of pgxpool.Pool used by the store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("attribution: pgx pool cannot be nil")
	}
	return &PostgresStore{
		pool:   pool,
		tracer: otel.Tracer("agentx.internal.attribution"),
	}
}

func (s *PostgresStore) OfferBySlug(ctx context.Context, slug string) (*Offer, error) {
	ctx, span := s.tracer.Start(ctx, "attribution.offer_by_slug", trace.WithAttributes(attribute.String("tracking_slug", slug)))
	defer span.End()

	query := `
		SELECT o.id::text, o.coach_id::text, COALESCE(o.target_url, ''),
			COALESCE(o.commission_rate, 0)::float8, COALESCE(c.default_commission_rate, 0)::float8
		FROM offers o
		JOIN coaches c ON c.id = o.coach_id
		WHERE o.tracking_slug = $1`

	var o Offer
	err := s.pool.QueryRow(ctx, query, slug).Scan(&o.ID, &o.CoachID, &o.TargetURL, &o.CommissionRate, &o.CoachDefaultCommission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("attribution: offer by slug: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) InsertClick(ctx context.Context, click Click) error {
	ctx, span := s.tracer.Start(ctx, "attribution.insert_click", trace.WithAttributes(attribute.String("offer_id", click.OfferID)))
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO clicks (offer_id, coach_id, session_id, source_channel, user_agent, ip_hash, contact_email)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		click.OfferID, click.CoachID, click.SessionID, click.SourceChannel, click.UserAgent, click.IPHash, click.ContactEmail,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("attribution: insert click: %w", err)
	}
	return nil
}

// RecentClickID returns the newest click for offerID and email created at or
// after since, or "" when there is none.
func (s *PostgresStore) RecentClickID(ctx context.Context, offerID, email string, since time.Time) (string, error) {
	ctx, span := s.tracer.Start(ctx, "attribution.recent_click", trace.WithAttributes(attribute.String("offer_id", offerID)))
	defer span.End()

	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text
		FROM clicks
		WHERE offer_id = $1 AND contact_email = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1`,
		offerID, email, since,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		span.RecordError(err)
		return "", fmt.Errorf("attribution: recent click: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) InsertSale(ctx context.Context, sale Sale) (string, error) {
	ctx, span := s.tracer.Start(ctx, "attribution.insert_sale", trace.WithAttributes(attribute.String("offer_id", sale.OfferID)))
	defer span.End()

	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sales (offer_id, coach_id, click_id, external_sale_id, contact_email, amount, currency,
			commission_rate_used, commission_due, source, purchased_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11)
		RETURNING id::text`,
		sale.OfferID, sale.CoachID, sale.ClickID, sale.ExternalSaleID, sale.ContactEmail, sale.Amount, sale.Currency,
		sale.CommissionRate, sale.CommissionDue, sale.Source, sale.PurchasedAt,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("attribution: insert sale: %w", err)
	}
	return id, nil
}
