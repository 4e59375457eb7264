package metrics

import (
	"strconv"

	"github.com/jrsteele09/go-login-server/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_csrf_tokens_issued_total",
			Help: "Total number of CSRF tokens issued",
		},
		[]string{"session_created"},
	)

	Admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_admissions_total",
			Help: "Total number of admitted requests by route requirement",
		},
		[]string{"requirement"},
	)

	Denials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_denials_total",
			Help: "Total number of denied requests by operation and reason",
		},
		[]string{"operation", "reason"},
	)

	LoginsSucceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_successes_total",
			Help: "Total number of successful logins",
		},
	)

	RotationConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_rotation_conflicts_total",
			Help: "Total number of logins that lost a concurrent session rotation",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_rate_limited_total",
			Help: "Total number of login attempts rejected by the rate limiter",
		},
	)

	ExpiredSessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_expired_sessions_swept_total",
			Help: "Total number of expired sessions removed by the sweeper",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "login_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// AdmissionObserver records admission outcomes in the package counters.
type AdmissionObserver struct{}

var _ auth.Observer = AdmissionObserver{}

func (AdmissionObserver) TokenIssued(sessionCreated bool) {
	TokensIssued.WithLabelValues(strconv.FormatBool(sessionCreated)).Inc()
}

func (AdmissionObserver) Admitted(requirement auth.Requirement) {
	Admissions.WithLabelValues(requirement.String()).Inc()
}

func (AdmissionObserver) Denied(operation string, reason auth.Reason) {
	Denials.WithLabelValues(operation, reason.String()).Inc()
}

func (AdmissionObserver) LoginSucceeded() {
	LoginsSucceeded.Inc()
}

func (AdmissionObserver) RotationConflict() {
	RotationConflicts.Inc()
}
