// Package sessionrepotest holds behaviour every sessions.Repo must share.
package sessionrepotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-login-server/auth/sessions"
	"github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/jrsteele09/go-login-server/users"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository for a single test.
type Factory func(t *testing.T) sessions.Repo

func newSession(t *testing.T, csrf string) *sessions.Session {
	t.Helper()
	id, err := sessions.GenerateID()
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &sessions.Session{
		ID:         id,
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
		LastSeenAt: now,
		CSRFToken:  csrf,
		Valid:      true,
	}
}

// Run exercises repo behaviour shared by all implementations.
func Run(t *testing.T, factory Factory) {
	t.Run("CreateAndGet", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		s := newSession(t, "token-1")
		s.Principal = &users.Principal{UUID: "u-1", LoginName: "admin", Roles: []users.RoleType{users.RoleAdmin}}

		require.NoError(t, repo.Create(ctx, s))

		found, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s.ID, found.ID)
		require.Equal(t, "token-1", found.CSRFToken)
		require.True(t, found.Valid)
		require.True(t, s.ExpiresAt.Equal(found.ExpiresAt))
		require.True(t, s.LastSeenAt.Equal(found.LastSeenAt))
		require.NotNil(t, found.Principal)
		require.Equal(t, "admin", found.Principal.LoginName)
		require.Equal(t, []users.RoleType{users.RoleAdmin}, found.Principal.Roles)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		s := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, s))
		require.ErrorIs(t, repo.Create(ctx, s), errors.ErrSessionExists)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		s := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, s))

		found, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		found.CSRFToken = "mutated"
		s.CSRFToken = "mutated"

		again, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, "token-1", again.CSRFToken)
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := factory(t)
		_, err := repo.Get(context.Background(), "missing")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("SetCSRFToken", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		s := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, s))

		require.NoError(t, repo.SetCSRFToken(ctx, s.ID, "token-2"))
		found, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, "token-2", found.CSRFToken)

		require.ErrorIs(t, repo.SetCSRFToken(ctx, "missing", "token"), errors.ErrSessionNotFound)
	})

	t.Run("Touch", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		s := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, s))

		at := s.LastSeenAt.Add(time.Minute)
		require.NoError(t, repo.Touch(ctx, s.ID, at))
		found, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, at.Equal(found.LastSeenAt))

		require.ErrorIs(t, repo.Touch(ctx, "missing", at), errors.ErrSessionNotFound)
	})

	t.Run("Rotate", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		old := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, old))

		next := newSession(t, "token-2")
		next.Principal = &users.Principal{UUID: "u-1", LoginName: "admin"}
		require.NoError(t, repo.Rotate(ctx, old.ID, "token-1", next))

		_, err := repo.Get(ctx, old.ID)
		require.ErrorIs(t, err, errors.ErrSessionNotFound)

		found, err := repo.Get(ctx, next.ID)
		require.NoError(t, err)
		require.Equal(t, "token-2", found.CSRFToken)
		require.Equal(t, "admin", found.Principal.LoginName)
	})

	t.Run("RotateTokenMismatch", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		old := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, old))

		next := newSession(t, "token-2")
		require.ErrorIs(t, repo.Rotate(ctx, old.ID, "stale", next), errors.ErrRotationConflict)

		found, err := repo.Get(ctx, old.ID)
		require.NoError(t, err)
		require.Equal(t, "token-1", found.CSRFToken)
		_, err = repo.Get(ctx, next.ID)
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("RotateMissing", func(t *testing.T) {
		repo := factory(t)
		next := newSession(t, "token-2")
		require.ErrorIs(t, repo.Rotate(context.Background(), "missing", "token-1", next), errors.ErrSessionNotFound)
	})

	t.Run("RotateConcurrentSingleWinner", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		old := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, old))

		const contenders = 16
		var wg sync.WaitGroup
		results := make(chan error, contenders)
		for i := 0; i < contenders; i++ {
			next := newSession(t, "token-next")
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- repo.Rotate(ctx, old.ID, "token-1", next)
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			require.True(t, errors.Is(err, errors.ErrSessionNotFound) || errors.Is(err, errors.ErrRotationConflict), err.Error())
		}
		require.Equal(t, 1, wins)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		s := newSession(t, "token-1")
		require.NoError(t, repo.Create(ctx, s))

		require.NoError(t, repo.Delete(ctx, s.ID))
		_, err := repo.Get(ctx, s.ID)
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
		require.NoError(t, repo.Delete(ctx, s.ID))
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		live := newSession(t, "token-1")
		ending := newSession(t, "token-2")
		ending.ExpiresAt = ending.CreatedAt.Add(time.Minute)
		require.NoError(t, repo.Create(ctx, live))
		require.NoError(t, repo.Create(ctx, ending))

		removed, err := repo.DeleteExpired(ctx, ending.ExpiresAt.Add(time.Second))
		require.NoError(t, err)
		require.Equal(t, 1, removed)

		_, err = repo.Get(ctx, ending.ID)
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
		_, err = repo.Get(ctx, live.ID)
		require.NoError(t, err)
	})
}
