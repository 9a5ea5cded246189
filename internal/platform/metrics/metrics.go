package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registration gateway.
type Metrics struct {
	RegistrationsTotal      *prometheus.CounterVec
	AvailabilityChecksTotal *prometheus.CounterVec
	RateLimitedTotal        prometheus.Counter
	SnapshotErrorsTotal     prometheus.Counter
	SubmissionDuration      prometheus.Histogram
}

// New creates and registers all metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signupd_registrations_total",
			Help: "Registration submissions by outcome.",
		}, []string{"outcome"}),
		AvailabilityChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signupd_availability_checks_total",
			Help: "Username and email availability checks by field.",
		}, []string{"field"}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "signupd_rate_limited_total",
			Help: "Requests rejected by the simulated backend rate limiter.",
		}),
		SnapshotErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "signupd_snapshot_errors_total",
			Help: "Snapshot persistence failures that were swallowed.",
		}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signupd_submission_duration_seconds",
			Help:    "Latency of registration submission calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
