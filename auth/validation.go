package auth

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Credentials are the login name and secret submitted for authentication.
type Credentials struct {
	LoginName string `validate:"required,max=256"`
	Secret    string `validate:"required,max=72"` // bcrypt ignores anything longer
}

func (c Credentials) Validate() error {
	return validate.Struct(c)
}

// Presented holds what the transport extracted from a request: the session
// cookie value and the CSRF token from the header or the request parameter.
type Presented struct {
	SessionID string
	Token     string
}

// Requirement is what a route demands before a request is admitted.
type Requirement int

const (
	Public        Requirement = iota // No session needed
	Session                          // Any live session, anonymous included
	Authenticated                    // A session with a principal
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case Session:
		return "session"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// IsSafeMethod reports whether method cannot change server state and so
// needs no CSRF token.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
