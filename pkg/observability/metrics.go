// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the plantwise API.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Auth attempt outcomes.
const (
	OutcomePublic  = "public"
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
	OutcomeLimited = "rate_limited"
)

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwise_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plantwise_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "plantwise_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// AuthAttemptsTotal counts guard decisions by strategy and outcome.
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwise_auth_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"strategy", "outcome"},
	)

	// UsersProvisionedTotal counts users created on first contact.
	UsersProvisionedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plantwise_users_provisioned_total",
			Help: "Users provisioned on first contact",
		},
	)

	// SecurityDenialsTotal counts 401 and 403 responses written by the
	// security error translator.
	SecurityDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwise_security_denials_total",
			Help: "Security denials",
		},
		[]string{"status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the per-tenant limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plantwise_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)

	// DirectoryCacheTotal counts directory cache lookups by kind and result.
	DirectoryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwise_directory_cache_total",
			Help: "Directory cache lookups",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		AuthAttemptsTotal,
		UsersProvisionedTotal,
		SecurityDenialsTotal,
		RateLimitRejectedTotal,
		DirectoryCacheTotal,
	)
}
