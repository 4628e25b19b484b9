package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMissingUser is returned when a session has no user id.
var ErrMissingUser = errors.New("conversation: session user id required")

// Store keeps per-user sessions. Load never fails for an unknown user: it
// returns an idle session instead.
type Store interface {
	Load(ctx context.Context, userID string) (Session, error)
	Save(ctx context.Context, session Session) error
	Clear(ctx context.Context, userID string) error
}

// MemoryStore keeps sessions in process memory. Sessions untouched for longer
// than the TTL expire; expired entries are ignored on read and removed by Sweep.
// A restart drops every in-flight dialog.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

// NewMemoryStore creates an in-memory store. ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Load returns the user's session or an idle one.
func (m *MemoryStore) Load(_ context.Context, userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || m.expired(s) {
		return NewSession(userID), nil
	}
	return s, nil
}

// Save stores the session, stamping UpdatedAt. Saving an idle session clears it.
func (m *MemoryStore) Save(_ context.Context, session Session) error {
	if session.UserID == "" {
		return ErrMissingUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.State.IsIdle() {
		delete(m.sessions, session.UserID)
		return nil
	}
	session.UpdatedAt = m.now()
	m.sessions[session.UserID] = session
	return nil
}

// Clear drops the user's session.
func (m *MemoryStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired sessions and reports how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RunJanitor sweeps every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 && onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

func (m *MemoryStore) expired(s Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
