// Package metrics provides Prometheus metrics collection for the intake
// dispatch pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics. Route labels carry the matched
// pattern (e.g. /users/{id}), never the raw path, so cardinality stays
// bounded by the route table size.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Matching metrics
	MatchFailures *prometheus.CounterVec

	// Validation metrics
	ValidationFailures *prometheus.CounterVec

	// Rate limit metrics
	RateLimited prometheus.Counter

	// Snapshot metrics
	SnapshotReloads      prometheus.Counter
	SnapshotReloadErrors prometheus.Counter
	SnapshotLastReload   prometheus.Gauge
	SnapshotRoutes       prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "intake",
				Name:      "requests_total",
				Help:      "Total number of requests dispatched",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "intake",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "intake",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		MatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "intake",
				Name:      "match_failures_total",
				Help:      "Total number of requests no route matched",
			},
			[]string{"reason"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "intake",
				Name:      "validation_failures_total",
				Help:      "Total number of field validation failures by error kind",
			},
			[]string{"route", "kind"},
		),
		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "intake",
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),
		SnapshotReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "intake",
				Name:      "snapshot_reloads_total",
				Help:      "Total number of successful definition reloads",
			},
		),
		SnapshotReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "intake",
				Name:      "snapshot_reload_errors_total",
				Help:      "Total number of definition reload errors",
			},
		),
		SnapshotLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "intake",
				Name:      "snapshot_last_reload_timestamp",
				Help:      "Unix timestamp of last successful definition reload",
			},
		),
		SnapshotRoutes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "intake",
				Name:      "snapshot_routes",
				Help:      "Number of routes in the active snapshot",
			},
		),
	}
}
