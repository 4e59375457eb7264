package auth

import (
	"fmt"

	"github.com/jrsteele09/go-login-server/token"
	"github.com/pkg/errors"
)

// Reason is the distinguishable cause of a denied request.
type Reason string

const (
	NoSession       Reason = "no_session"      // No session, or a dead one at login
	CsrfMissing     Reason = "csrf_missing"    // State-changing request without any token
	CsrfInvalid     Reason = "csrf_invalid"    // Token present but not the session's current one
	BadCredentials  Reason = "bad_credentials" // Unknown login, wrong secret or blocked user
	SessionExpired  Reason = "session_expired" // Session cookie names no live session
	Unauthenticated Reason = "unauthenticated" // Anonymous session on a principal-only resource
)

func (r Reason) String() string { return string(r) }

// Denial is returned when a request is refused. Any other error from the
// service is a collaborator failure.
type Denial struct {
	Reason Reason
	Err    error

	// Token is set when the denial rotated the session's CSRF token
	Token *token.CSRFToken
}

func (d *Denial) Error() string {
	if d.Err != nil {
		return fmt.Sprintf("denied (%s): %v", d.Reason, d.Err)
	}
	return fmt.Sprintf("denied (%s)", d.Reason)
}

func (d *Denial) Unwrap() error { return d.Err }

// IsDenial reports whether err carries a Denial.
func IsDenial(err error) bool {
	var d *Denial
	return errors.As(err, &d)
}

// ReasonOf extracts the denial reason from err.
func ReasonOf(err error) (Reason, bool) {
	var d *Denial
	if !errors.As(err, &d) {
		return "", false
	}
	return d.Reason, true
}

// DenialOf returns the Denial carried by err, or nil.
func DenialOf(err error) *Denial {
	var d *Denial
	if errors.As(err, &d) {
		return d
	}
	return nil
}
