package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-login-server/auth"
	fakesessionrepo "github.com/jrsteele09/go-login-server/auth/sessions/repofakes"
	"github.com/jrsteele09/go-login-server/auth/sessions/reporedis"
	"github.com/jrsteele09/go-login-server/internal/config"
	fakeuserrepo "github.com/jrsteele09/go-login-server/users/repofake"
	"github.com/jrsteele09/go-login-server/users/reposqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// stores holds the configured repositories and whatever must be closed with them.
type stores struct {
	repos   auth.Repos
	closers []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Err(err).Msg("failed to close store")
		}
	}
}

func openStores(ctx context.Context, c config.Config) (*stores, error) {
	st := &stores{}

	switch c.GetUserBackend() {
	case config.BackendSQLite:
		repo, err := reposqlite.New(c.GetSQLitePath())
		if err != nil {
			return nil, err
		}
		st.repos.Users = repo
		st.closers = append(st.closers, repo.Close)
		log.Info().Str("path", c.GetSQLitePath()).Msg("user store: sqlite")
	default:
		st.repos.Users = fakeuserrepo.NewFakeUserRepo()
		log.Info().Msg("user store: memory")
	}

	switch c.GetSessionBackend() {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			st.Close()
			return nil, fmt.Errorf("[openStores] redis ping %s: %w", c.GetRedisAddr(), err)
		}
		st.repos.Sessions = reporedis.New(client, reporedis.WithKeyPrefix(c.GetRedisPrefix()))
		st.closers = append(st.closers, client.Close)
		log.Info().Str("addr", c.GetRedisAddr()).Msg("session store: redis")
	default:
		st.repos.Sessions = fakesessionrepo.NewFakeSessionRepo(c.GetSessionCapacity(), c.GetMaxSessionAge())
		log.Info().Int("capacity", c.GetSessionCapacity()).Msg("session store: memory")
	}

	return st, nil
}
