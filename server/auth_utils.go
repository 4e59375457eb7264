package server

import (
	"net/http"

	"github.com/jrsteele09/go-login-server/auth"
)

// presented extracts the session cookie and the CSRF token from a request.
// The token is read from the header first, then from the query or form
// parameter. The CSRF cookie is never read back as a token.
func (s *Server) presented(r *http.Request) auth.Presented {
	var p auth.Presented
	if c, err := r.Cookie(s.config.GetSessionCookieName()); err == nil {
		p.SessionID = c.Value
	}

	names := s.admission.TokenNames()
	p.Token = r.Header.Get(names.HeaderName)
	if p.Token == "" {
		p.Token = r.FormValue(names.ParameterName)
	}
	return p
}

func (s *Server) secureCookies(r *http.Request) bool {
	return s.config.GetCookieSecure() || getScheme(r) == "https"
}

func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.admission.MaxSessionAge().Seconds()),
	})
}

// SetCSRFCookie publishes the current token for script clients. It is not
// HttpOnly so pages can copy it into the token header.
func (s *Server) SetCSRFCookie(w http.ResponseWriter, r *http.Request, csrfToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetCSRFCookieName(),
		Value:    csrfToken,
		Path:     "/",
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) ClearCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{s.config.GetSessionCookieName(), s.config.GetCSRFCookieName()} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == s.config.GetSessionCookieName(),
			Secure:   s.secureCookies(r),
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
