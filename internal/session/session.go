package session

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxHistory is the number of entries kept per session.
	MaxHistory = 20
	// PromptHistory is the number of entries replayed to the model.
	PromptHistory = 10
)

// ErrNotFound is returned when no session exists for (coach, handle).
var ErrNotFound = errors.New("session: not found")

// Entry is one turn of a DM conversation.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session tracks one end user's conversation with one coach.
type Session struct {
	ID             string
	CoachID        string
	UserHandle     string
	QuestionCount  int
	LastQuestionAt time.Time
	Messages       []Entry
	CreatedAt      time.Time
}

// Recent returns up to n of the most recent history entries.
func (s *Session) Recent(n int) []Entry {
	if s == nil || n <= 0 {
		return nil
	}
	return TrimHistory(s.Messages, n)
}

// TrimHistory keeps the last max entries of history.
func TrimHistory(history []Entry, max int) []Entry {
	if max <= 0 {
		return []Entry{}
	}
	if len(history) <= max {
		out := make([]Entry, len(history))
		copy(out, history)
		return out
	}
	out := make([]Entry, max)
	copy(out, history[len(history)-max:])
	return out
}

// Store persists DM sessions.
type Store interface {
	// Get returns ErrNotFound when the session does not exist.
	Get(ctx context.Context, coachID, handle string) (*Session, error)
	// GetOrCreate returns the session, creating it with a zero count. The
	// message path does not need it: Increment creates the row itself in the
	// same statement that bumps the counter.
	GetOrCreate(ctx context.Context, coachID, handle string) (*Session, error)
	// Increment atomically bumps question_count, creating the session at 1.
	Increment(ctx context.Context, coachID, handle string) (*Session, error)
	// AppendHistory appends entries and keeps the most recent MaxHistory.
	AppendHistory(ctx context.Context, coachID, handle string, entries ...Entry) (*Session, error)
	Delete(ctx context.Context, coachID, handle string) error
}
