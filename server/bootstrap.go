package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/jrsteele09/go-login-server/internal/metrics"
	"github.com/jrsteele09/go-login-server/users"
	"github.com/rs/zerolog/log"
)

const DefaultAdminDisplayName = "Administrator"

// InitialiseSystem seeds the configured admin user when the user store has
// no user under that login. An existing admin is left untouched.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	login := s.config.GetAdminLogin()
	if login == "" {
		return nil
	}

	_, err := s.repos.Users.FindByLoginNameExact(ctx, login)
	if err == nil {
		log.Debug().Str("user", login).Msg("bootstrap: admin user present")
		return nil
	}
	if !errors.Is(err, errors.ErrUserNotFound) {
		return fmt.Errorf("[Server.InitialiseSystem] failed to look up admin: %w", err)
	}

	hash, err := users.HashPassword(s.config.GetAdminPassword())
	if err != nil {
		return fmt.Errorf("[Server.InitialiseSystem] failed to hash admin password: %w", err)
	}
	admin := &users.User{
		LoginName:    login,
		DisplayName:  DefaultAdminDisplayName,
		PasswordHash: hash,
		Roles:        []users.RoleType{users.RoleAdmin, users.RoleUser},
	}
	if err := s.repos.Users.Upsert(ctx, admin); err != nil {
		return fmt.Errorf("[Server.InitialiseSystem] failed to create admin: %w", err)
	}

	log.Info().Str("user", login).Msg("bootstrap: admin user created")
	if s.config.GetAdminPassword() == "admin" {
		log.Warn().Msg("bootstrap: admin uses the default password, set LOGIN_BOOTSTRAP_ADMIN_PASSWORD")
	}
	return nil
}

// CreateUser stores a new user with a password that passes the strength rules.
func CreateUser(ctx context.Context, repo users.UserRepo, login, displayName, password string, roles ...users.RoleType) (*users.User, error) {
	if login == "" {
		return nil, fmt.Errorf("[CreateUser] %w: login name is required", errors.ErrInvalidUser)
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, fmt.Errorf("[CreateUser] %w: %v", errors.ErrInvalidUser, err)
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("[CreateUser] failed to hash password: %w", err)
	}
	if len(roles) == 0 {
		roles = []users.RoleType{users.RoleUser}
	}
	user := &users.User{
		LoginName:    login,
		DisplayName:  displayName,
		PasswordHash: hash,
		Roles:        roles,
	}
	if err := repo.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("[CreateUser] %w", err)
	}
	return user, nil
}

// SweepSessions removes expired sessions once.
func (s *Server) SweepSessions(ctx context.Context) (int, error) {
	removed, err := s.admission.CleanupExpiredSessions(ctx)
	if err != nil {
		return removed, err
	}
	metrics.ExpiredSessionsSwept.Add(float64(removed))
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("expired sessions swept")
	}
	return removed, nil
}

// RunSessionSweeper sweeps expired sessions every interval until ctx is done.
func (s *Server) RunSessionSweeper(ctx context.Context, interval time.Duration) {
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
			if _, err := s.SweepSessions(ctx); err != nil {
				log.Err(err).Msg("session sweep failed")
			}
		}
	}
}
