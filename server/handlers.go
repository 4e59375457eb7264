package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-login-server/auth"
	"github.com/jrsteele09/go-login-server/internal/metrics"
	"github.com/rs/zerolog/log"
)

// CSRFTokenHandler issues a new token for the caller's session, creating an
// anonymous session first when there is none.
func (s *Server) CSRFTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.presented(r).SessionID
		live, err := s.admission.HasLiveSession(r.Context(), sessionID)
		if err != nil {
			s.writeDenial(w, r, err)
			return
		}
		if !live && !s.sessions.Allow(r) {
			metrics.RateLimited.Inc()
			writeJSONError(w, "rate_limited", http.StatusTooManyRequests)
			return
		}

		tok, created, err := s.admission.IssueToken(r.Context(), sessionID)
		if err != nil {
			s.writeDenial(w, r, err)
			return
		}
		if created != nil {
			s.SetSessionCookie(w, r, created.ID)
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, tok)
	}
}

// AuthenticateHandler performs form login. On success the session cookie is
// replaced and the new token is published in the CSRF cookie.
func (s *Server) AuthenticateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r) {
			metrics.RateLimited.Inc()
			writeJSONError(w, "rate_limited", http.StatusTooManyRequests)
			return
		}

		creds := auth.Credentials{
			LoginName: r.FormValue(ParamUsername),
			Secret:    r.FormValue(ParamPassword),
		}
		login, err := s.admission.Authenticate(r.Context(), s.presented(r), creds)
		if err != nil {
			s.writeDenial(w, r, err)
			return
		}

		s.SetSessionCookie(w, r, login.Session.ID)
		s.SetCSRFCookie(w, r, login.Token.Token)
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, login.Principal)
	}
}

// LogoutHandler ends the session and clears both cookies.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.admission.Logout(r.Context(), s.presented(r)); err != nil {
			s.writeDenial(w, r, err)
			return
		}
		s.ClearCookies(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the principal of the admitted session.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil || session.Principal == nil {
			writeJSONError(w, auth.Unauthenticated.String(), http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, session.Principal)
	}
}

// TestPostHandler echoes the message parameter back as plain text.
func (s *Server) TestPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(r.FormValue(ParamMessage)))
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, errorCode string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": errorCode,
	})
}
