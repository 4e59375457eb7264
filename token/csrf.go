package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/jrsteele09/go-login-server/internal/errors"
)

const (
	DefaultHeaderName    = "X-XSRF-TOKEN"
	DefaultParameterName = "_csrf"

	// tokenLength is the number of random bytes behind every token (256 bits)
	tokenLength = 32
)

// Names tells a client where to echo a token back: either as a request
// header or as a query/form parameter.
type Names struct {
	HeaderName    string
	ParameterName string
}

// DefaultNames returns the header and parameter names used when none are configured.
func DefaultNames() Names {
	return Names{HeaderName: DefaultHeaderName, ParameterName: DefaultParameterName}
}

// CSRFToken is an anti-forgery token bound to a single session.
type CSRFToken struct {
	Token         string `json:"token"`
	HeaderName    string `json:"headerName"`
	ParameterName string `json:"parameterName"`

	sessionID string
}

// SessionID returns the session the token was issued for.
func (t CSRFToken) SessionID() string {
	return t.sessionID
}

// Generator produces unguessable token values.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// RandomGenerator draws token values from crypto/rand.
type RandomGenerator struct{}

var _ Generator = RandomGenerator{}

func (RandomGenerator) Generate() (string, error) {
	return RandomString(tokenLength)
}

// RandomString returns length random bytes encoded as base64url without padding.
func RandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue generates a new token value bound to sessionID.
func Issue(gen Generator, names Names, sessionID string) (CSRFToken, error) {
	if sessionID == "" {
		return CSRFToken{}, fmt.Errorf("[token.Issue] session id is required")
	}
	value, err := gen.Generate()
	if err != nil {
		return CSRFToken{}, fmt.Errorf("[token.Issue] %w", err)
	}
	if value == "" {
		return CSRFToken{}, fmt.Errorf("[token.Issue] %w: empty value", errors.ErrTokenGeneration)
	}
	return Bind(value, names, sessionID), nil
}

// Bind wraps an existing value as a token for sessionID.
func Bind(value string, names Names, sessionID string) CSRFToken {
	return CSRFToken{
		Token:         value,
		HeaderName:    names.HeaderName,
		ParameterName: names.ParameterName,
		sessionID:     sessionID,
	}
}

// Matches compares a presented token against the expected one in constant
// time. An empty value on either side never matches.
func Matches(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
