package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-login-server/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	// SESSION & CSRF
	s.RegisterRoute(http.MethodGet, RouteCSRFToken, auth.Public, s.CSRFTokenHandler())
	s.RegisterRoute(http.MethodPost, RouteAuthenticate, auth.Public, s.AuthenticateHandler()) // Runs its own checks
	s.RegisterRoute(http.MethodPost, RouteLogout, auth.Public, s.LogoutHandler())             // Runs its own checks
	s.RegisterRoute(http.MethodGet, RouteMe, auth.Authenticated, s.MeHandler())

	s.RegisterRoute(http.MethodGet, RouteTestPost, auth.Authenticated, s.TestPostHandler())
	s.RegisterRoute(http.MethodPost, RouteTestPost, auth.Authenticated, s.TestPostHandler())

	// USER DATA
	s.RegisterRoute(http.MethodGet, RouteUsers, auth.Authenticated, s.ListUsersHandler())
	s.RegisterRoute(http.MethodGet, RouteUsersByLogin, auth.Authenticated, s.FindUserByLoginHandler())
	s.RegisterRoute(http.MethodGet, RouteUsersLoginContains, auth.Authenticated, s.FindUsersByLoginContainsHandler())
	s.RegisterRoute(http.MethodGet, RouteUsersNameContains, auth.Authenticated, s.FindUsersByNameContainsHandler())

	// OPERATIONAL
	s.RegisterRoute(http.MethodGet, RouteMetrics, auth.Public, promhttp.Handler().ServeHTTP)
	s.RegisterRoute(http.MethodGet, RouteHealth, auth.Public, s.HealthHandler())

	// CORS preflight for every path. A method matcher here would turn unknown
	// paths into 405s.
	s.router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.CorsMiddleware))

	s.router.NotFoundHandler = ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not_found", http.StatusNotFound)
	}, s.LoggingMiddleware)
	s.router.MethodNotAllowedHandler = ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "method_not_allowed", http.StatusMethodNotAllowed)
	}, s.LoggingMiddleware)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}
