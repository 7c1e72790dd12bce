// Package metrics exposes prometheus instrumentation for sources, availability checks,
// the resolution cascade and the merge coordinator.
//
// Collectors live on Registry rather than the global default registry, so embedding
// applications decide whether and where to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector in this package.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Source Metrics
	SourceResults = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_results_total",
			Help: "Raw results returned by aggregator sources",
		},
		[]string{"source"},
	)

	SourceFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_failures_total",
			Help: "Source searches that failed or timed out",
		},
		[]string{"source"},
	)

	SourceDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_duration_seconds",
			Help:    "Duration of source searches in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"source"},
	)

	// Availability Metrics
	AvailabilityChecks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_checks_total",
			Help: "Hashes checked for availability, by outcome mode",
		},
		[]string{"provider", "mode"}, // "verified", "degraded"
	)

	BreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_breaker_state",
			Help: "Availability circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Cascade Metrics
	CascadeOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_outcomes_total",
			Help: "Per-provider resolution attempt outcomes",
		},
		[]string{"provider", "status"},
	)

	CascadeDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cascade_duration_seconds",
			Help:    "Duration of complete resolution cascades in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Merge Metrics
	MergeLockTimeouts = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "merge_lock_timeouts_total",
			Help: "Upserts abandoned because the identity lock was not acquired in time",
		},
	)
)

const (
	ModeVerified = "verified"
	ModeDegraded = "degraded"
)
