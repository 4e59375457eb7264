package sessions

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-login-server/token"
	"github.com/jrsteele09/go-login-server/users"
)

// idLength is the number of random bytes behind a session identifier (256 bits)
const idLength = 32

// Session is the server side state behind a session cookie. A session starts
// anonymous (no Principal) and carries the current CSRF token bound to it.
type Session struct {
	ID         string           `json:"id"`                  // Opaque, unguessable identifier
	CreatedAt  time.Time        `json:"created_at"`          // When the session was created
	ExpiresAt  time.Time        `json:"expires_at"`          // Absolute expiry
	LastSeenAt time.Time        `json:"last_seen_at"`        // Last admitted request
	Principal  *users.Principal `json:"principal,omitempty"` // Set once a login succeeds
	CSRFToken  string           `json:"csrf_token"`          // Current anti-forgery token value
	Valid      bool             `json:"valid"`               // Cleared when the session is invalidated
}

// Anonymous reports whether no principal has authenticated on this session.
func (s *Session) Anonymous() bool {
	return s.Principal == nil
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Live reports whether the session may still be used at now.
func (s *Session) Live(now time.Time) bool {
	return s.Valid && !s.Expired(now)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.Principal != nil {
		p := *s.Principal
		p.Roles = append([]users.RoleType(nil), s.Principal.Roles...)
		c.Principal = &p
	}
	return &c
}

// GenerateID returns a cryptographically secure session identifier.
func GenerateID() (string, error) {
	id, err := token.RandomString(idLength)
	if err != nil {
		return "", fmt.Errorf("sessions: failed to generate id: %w", err)
	}
	return id, nil
}
