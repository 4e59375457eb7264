package reporedis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-login-server/auth/sessions"
	"github.com/jrsteele09/go-login-server/auth/sessions/reporedis"
	"github.com/jrsteele09/go-login-server/auth/sessions/sessionrepotest"
	"github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*reporedis.RedisSessionRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return reporedis.New(client, reporedis.WithKeyPrefix("test:session:")), mr
}

func TestRedisSessionRepo(t *testing.T) {
	sessionrepotest.Run(t, func(t *testing.T) sessions.Repo {
		repo, _ := newRepo(t)
		return repo
	})
}

func TestRedisSessionRepo_KeyExpiresWithSession(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	s := &sessions.Session{ID: "abc", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute), CSRFToken: "t", Valid: true}
	require.NoError(t, repo.Create(ctx, s))
	require.True(t, mr.Exists("test:session:abc"))

	ttl := mr.TTL("test:session:abc")
	require.Greater(t, ttl, 9*time.Minute)
	require.LessOrEqual(t, ttl, 10*time.Minute)

	mr.FastForward(11 * time.Minute)
	_, err := repo.Get(ctx, "abc")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestRedisSessionRepo_RejectsPastExpiry(t *testing.T) {
	repo, _ := newRepo(t)
	now := time.Now()

	err := repo.Create(context.Background(), &sessions.Session{ID: "old", ExpiresAt: now.Add(-time.Second), Valid: true})
	require.ErrorIs(t, err, errors.ErrSessionExpired)
}

func TestRedisSessionRepo_TokenStoredOutsideRecord(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &sessions.Session{ID: "abc", ExpiresAt: now.Add(time.Minute), CSRFToken: "secret", Valid: true}))

	require.Equal(t, "secret", mr.HGet("test:session:abc", "csrf"))
	require.NotContains(t, mr.HGet("test:session:abc", "data"), "secret")
}
