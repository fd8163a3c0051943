package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, coachID, handle string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[memoryKey(coachID, handle)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, coachID, handle string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSession(m.ensure(coachID, handle)), nil
}

func (m *MemoryStore) Increment(ctx context.Context, coachID, handle string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.ensure(coachID, handle)
	sess.QuestionCount++
	sess.LastQuestionAt = m.now()
	return cloneSession(sess), nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, coachID, handle string, entries ...Entry) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[memoryKey(coachID, handle)]
	if !ok {
		return nil, ErrNotFound
	}
	sess.Messages = TrimHistory(append(sess.Messages, entries...), MaxHistory)
	return cloneSession(sess), nil
}

func (m *MemoryStore) Delete(ctx context.Context, coachID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(coachID, handle)
	if _, ok := m.sessions[key]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, key)
	return nil
}

func (m *MemoryStore) ensure(coachID, handle string) *Session {
	key := memoryKey(coachID, handle)
	sess, ok := m.sessions[key]
	if !ok {
		now := m.now()
		sess = &Session{
			ID:             uuid.NewString(),
			CoachID:        coachID,
			UserHandle:     handle,
			LastQuestionAt: now,
			Messages:       []Entry{},
			CreatedAt:      now,
		}
		m.sessions[key] = sess
	}
	return sess
}

func memoryKey(coachID, handle string) string {
	return coachID + "\x00" + handle
}

func cloneSession(s *Session) *Session {
	out := *s
	out.Messages = make([]Entry, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}
