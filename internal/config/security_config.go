package config

import (
	"strings"
	"time"
)

// EntryPointPolicy decides how requests needing a (re)login are answered.
type EntryPointPolicy string

const (
	EntryPointRedirect  EntryPointPolicy = "redirect"  // 302 to the login location
	EntryPointForbidden EntryPointPolicy = "forbidden" // Flat 403
)

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetEntryPoint() EntryPointPolicy
	GetLoginRedirect() string
	GetRotateOnBadCredentials() bool
	GetLoginRatePerMinute() int
	GetLoginBurst() int
	GetSessionRatePerMinute() int
	GetSessionBurst() int
	GetSweepInterval() time.Duration
}

var _ SecurityConfig = mainConfig{}

func (c mainConfig) GetMaxSessionAge() time.Duration {
	return c.v.GetDuration("security.max_session_age")
}

func (c mainConfig) GetEntryPoint() EntryPointPolicy {
	return EntryPointPolicy(strings.ToLower(c.v.GetString("security.entry_point")))
}

func (c mainConfig) GetLoginRedirect() string {
	return c.v.GetString("security.login_redirect")
}

func (c mainConfig) GetRotateOnBadCredentials() bool {
	return c.v.GetBool("security.rotate_on_bad_credentials")
}

// GetLoginRatePerMinute returns the sustained login attempts allowed per client
// address. Zero disables limiting.
func (c mainConfig) GetLoginRatePerMinute() int {
	return c.v.GetInt("security.login_rate_per_minute")
}

func (c mainConfig) GetLoginBurst() int {
	return c.v.GetInt("security.login_burst")
}

// GetSessionRatePerMinute returns the sustained anonymous sessions a client
// address may create per minute. Zero disables limiting.
func (c mainConfig) GetSessionRatePerMinute() int {
	return c.v.GetInt("security.session_rate_per_minute")
}

func (c mainConfig) GetSessionBurst() int {
	return c.v.GetInt("security.session_burst")
}

func (c mainConfig) GetSweepInterval() time.Duration {
	return c.v.GetDuration("security.sweep_interval")
}
