package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-login-server/auth"
	"github.com/jrsteele09/go-login-server/internal/config"
	"github.com/jrsteele09/go-login-server/internal/metrics"
	"github.com/jrsteele09/go-login-server/token"
	"github.com/rs/zerolog/log"
)

// Route is one entry of the route table.
type Route struct {
	Method      string
	Path        string
	Requirement auth.Requirement
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	router    *mux.Router
	routes    []Route
	config    config.Config
	admission *auth.AdmissionService
	repos     auth.Repos
	limiter   *clientLimiter // Login attempts
	sessions  *clientLimiter // Anonymous session creation
}

type Option func(*serverOptions)

type serverOptions struct {
	admission []auth.AdmissionServiceOption
}

// WithAdmissionOptions passes extra options to the admission service, after
// the ones derived from configuration.
func WithAdmissionOptions(opts ...auth.AdmissionServiceOption) Option {
	return func(o *serverOptions) {
		o.admission = append(o.admission, opts...)
	}
}

func New(config config.Config, repos auth.Repos, options ...Option) (*Server, error) {
	var o serverOptions
	for _, opt := range options {
		opt(&o)
	}

	admissionOptions := append([]auth.AdmissionServiceOption{
		auth.WithMaxSessionAge(config.GetMaxSessionAge()),
		auth.WithRotateOnBadCredentials(config.GetRotateOnBadCredentials()),
		auth.WithTokenNames(token.Names{
			HeaderName:    config.GetCSRFHeaderName(),
			ParameterName: config.GetCSRFParameterName(),
		}),
		auth.WithObserver(metrics.AdmissionObserver{}),
	}, o.admission...)

	admission, err := auth.NewAdmissionService(repos, admissionOptions...)
	if err != nil {
		return nil, fmt.Errorf("[Server.New] failed to create admission service: %w", err)
	}

	s := &Server{
		env:       config.GetEnv(),
		router:    mux.NewRouter(),
		config:    config,
		admission: admission,
		repos:     repos,
		limiter:   newClientLimiter(config.GetLoginRatePerMinute(), config.GetLoginBurst()),
		sessions:  newClientLimiter(config.GetSessionRatePerMinute(), config.GetSessionBurst()),
	}

	// Bootstrap: ensure the admin user exists
	if err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server.New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Admission exposes the admission service, e.g. for the session sweeper.
func (s *Server) Admission() *auth.AdmissionService {
	return s.admission
}

// Routes returns the registered route table.
func (s *Server) Routes() []Route {
	return append([]Route(nil), s.routes...)
}

// RegisterRoute adds a route admitted under requirement.
func (s *Server) RegisterRoute(method, path string, requirement auth.Requirement, handler http.HandlerFunc) {
	s.routes = append(s.routes, Route{Method: method, Path: path, Requirement: requirement})
	s.router.Handle(path, ChainMiddleware(handler, s.APIMiddleware(s.RequireAdmission(requirement))...)).Methods(method)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		logRoute(route.Method, route.Path+" "+colourRequirement(route.Requirement))
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return strings.ToLower(scheme)
	}
	return "http"
}
