package repofakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsteele09/go-login-server/auth/sessions"
	"github.com/jrsteele09/go-login-server/internal/errors"
)

const (
	DefaultCapacity = 100_000
	DefaultTTL      = 30 * time.Minute
)

// FakeSessionRepo is an in-memory session store. Records are held in an
// expiring LRU so abandoned sessions are reclaimed even without a sweep.
type FakeSessionRepo struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *sessions.Session]
}

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// NewFakeSessionRepo creates a store holding at most capacity sessions, each
// evicted ttl after its last write. Non-positive values select the defaults.
func NewFakeSessionRepo(capacity int, ttl time.Duration) *FakeSessionRepo {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FakeSessionRepo{
		sessions: expirable.NewLRU[string, *sessions.Session](capacity, nil, ttl),
	}
}

func (r *FakeSessionRepo) Create(_ context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("[FakeSessionRepo.Create] session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions.Contains(session.ID) {
		return fmt.Errorf("[FakeSessionRepo.Create] %w", errors.ErrSessionExists)
	}
	r.sessions.Add(session.ID, session.Clone())
	return nil
}

func (r *FakeSessionRepo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Peek(sessionID)
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *FakeSessionRepo) SetCSRFToken(_ context.Context, sessionID, csrfToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Peek(sessionID)
	if !ok {
		return errors.ErrSessionNotFound
	}
	updated := s.Clone()
	updated.CSRFToken = csrfToken
	r.sessions.Add(sessionID, updated)
	return nil
}

func (r *FakeSessionRepo) Touch(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Peek(sessionID)
	if !ok {
		return errors.ErrSessionNotFound
	}
	updated := s.Clone()
	updated.LastSeenAt = at
	r.sessions.Add(sessionID, updated)
	return nil
}

func (r *FakeSessionRepo) Rotate(_ context.Context, oldID, expectedToken string, next *sessions.Session) error {
	if next == nil || next.ID == "" {
		return fmt.Errorf("[FakeSessionRepo.Rotate] next session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions.Peek(oldID)
	if !ok {
		return errors.ErrSessionNotFound
	}
	if !current.Valid || current.CSRFToken != expectedToken {
		return errors.ErrRotationConflict
	}
	if next.ID != oldID && r.sessions.Contains(next.ID) {
		return fmt.Errorf("[FakeSessionRepo.Rotate] %w", errors.ErrSessionExists)
	}
	r.sessions.Remove(oldID)
	r.sessions.Add(next.ID, next.Clone())
	return nil
}

func (r *FakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions.Remove(sessionID)
	return nil
}

func (r *FakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, id := range r.sessions.Keys() {
		s, ok := r.sessions.Peek(id)
		if ok && (s.Expired(now) || !s.Valid) {
			r.sessions.Remove(id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored sessions.
func (r *FakeSessionRepo) Len() int {
	return r.sessions.Len()
}
