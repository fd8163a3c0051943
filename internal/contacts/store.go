package contacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Contact is the identity of an end user on a platform.
type Contact struct {
	CoachID   string
	Platform  string
	ContactID string
	Handle    string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Upserter records contacts seen by the webhook.
type Upserter interface {
	Upsert(ctx context.Context, c Contact) error
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore upserts into the contacts table.
type PostgresStore struct {
	db execer
}

func NewPostgresStore(db execer) *PostgresStore {
	if db == nil {
		panic("contacts: db cannot be nil")
	}
	return &PostgresStore{db: db}
}

// Upsert inserts or refreshes a contact keyed by (coach_id, platform,
// contact_id). Empty optional fields never overwrite stored values.
func (s *PostgresStore) Upsert(ctx context.Context, c Contact) error {
	if c.CoachID == "" || c.ContactID == "" {
		return fmt.Errorf("contacts: coach id and contact id are required")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO contacts (coach_id, platform, contact_id, handle, first_name, last_name, email, phone, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), now())
		ON CONFLICT (coach_id, platform, contact_id) DO UPDATE
		SET handle = COALESCE(EXCLUDED.handle, contacts.handle),
			first_name = COALESCE(EXCLUDED.first_name, contacts.first_name),
			last_name = COALESCE(EXCLUDED.last_name, contacts.last_name),
			email = COALESCE(EXCLUDED.email, contacts.email),
			phone = COALESCE(EXCLUDED.phone, contacts.phone),
			updated_at = now()`,
		c.CoachID, c.Platform, c.ContactID, c.Handle, c.FirstName, c.LastName, c.Email, c.Phone)
	if err != nil {
		return fmt.Errorf("contacts: upsert: %w", err)
	}
	return nil
}

// PlatformForSource maps a webhook source to the stored platform name.
func PlatformForSource(source string) string {
	if strings.Contains(strings.ToLower(source), "instagram") {
		return "instagram"
	}
	return source
}

// SplitName splits a display name into first and last name.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
