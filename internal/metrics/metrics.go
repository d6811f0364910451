// Package metrics holds the Prometheus collectors for sign-in and lockout activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for SignInAttempts.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeProviderError      = "provider_error"
)

// SignInAttempts counts sign-in requests by outcome.
var SignInAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_auth_signin_attempts_total",
		Help: "Total number of sign-in attempts by outcome",
	},
	[]string{"outcome"},
)

// Lockouts counts lockouts imposed, labelled by lockout tier in minutes.
var Lockouts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_auth_lockouts_total",
		Help: "Total number of account lockouts imposed",
	},
	[]string{"tier_minutes"},
)

// ProviderRequests counts calls to the auth provider by operation and status class.
var ProviderRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_auth_provider_requests_total",
		Help: "Total number of auth provider requests",
	},
	[]string{"operation", "status"},
)

// SweptAttempts counts login attempt records removed by the retention sweep.
var SweptAttempts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "storefront_auth_swept_attempts_total",
		Help: "Total number of stale login attempt records deleted",
	},
)

// RegisterMetrics registers the package collectors with reg.
// Panics if registration fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SignInAttempts, Lockouts, ProviderRequests, SweptAttempts)
}

// NewRegistry returns a registry carrying the service collectors plus the Go and
// process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	RegisterMetrics(reg)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func RecordSignIn(outcome string) {
	SignInAttempts.WithLabelValues(outcome).Inc()
}

func RecordLockout(tierMinutes string) {
	Lockouts.WithLabelValues(tierMinutes).Inc()
}

func RecordProviderRequest(operation, status string) {
	ProviderRequests.WithLabelValues(operation, status).Inc()
}

func RecordSweep(deleted int64) {
	SweptAttempts.Add(float64(deleted))
}
