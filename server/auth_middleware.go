package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-login-server/auth"
	"github.com/jrsteele09/go-login-server/auth/sessions"
	"github.com/jrsteele09/go-login-server/internal/config"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the admitted session
	ContextKeySession ContextKey = "session"
)

// SessionFromContext returns the session admitted for the request, if any.
func SessionFromContext(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return s
}

// RequireAdmission is middleware that runs the admission check for a route's
// requirement and answers denials before the handler runs.
func (s *Server) RequireAdmission(requirement auth.Requirement) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if requirement == auth.Public {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			decision, err := s.admission.Admit(r.Context(), s.presented(r), r.Method, requirement)
			if err != nil {
				s.writeDenial(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, decision.Session)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeDenial maps an admission error onto the response. Denials needing a
// (re)login follow the configured entry-point policy; other denials are 403.
// Anything that is not a denial is a server error.
func (s *Server) writeDenial(w http.ResponseWriter, r *http.Request, err error) {
	d := auth.DenialOf(err)
	if d == nil {
		logError(r.Method, r.URL.Path, err.Error())
		writeJSONError(w, "internal_error", http.StatusInternalServerError)
		return
	}

	if d.Token != nil {
		s.SetCSRFCookie(w, r, d.Token.Token)
	}

	switch d.Reason {
	case auth.CsrfMissing, auth.SessionExpired, auth.Unauthenticated:
		s.entryPoint(w, r, d.Reason)
	default:
		writeJSONError(w, d.Reason.String(), http.StatusForbidden)
	}
}

func (s *Server) entryPoint(w http.ResponseWriter, r *http.Request, reason auth.Reason) {
	if s.config.GetEntryPoint() == config.EntryPointRedirect {
		http.Redirect(w, r, s.config.GetLoginRedirect(), http.StatusFound)
		return
	}
	writeJSONError(w, reason.String(), http.StatusForbidden)
}
