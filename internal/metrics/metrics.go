// Package metrics exposes cascade engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CascadesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_cascades_started_total",
		Help: "Cascade runs started, by trigger",
	}, []string{"trigger"})

	StaleCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripple_stale_callbacks_total",
		Help: "Scheduled steps dropped because a newer generation started",
	})

	MissingEntities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_missing_entities_total",
		Help: "Scheduled steps skipped because their node or connection was gone",
	}, []string{"kind"})

	Ignitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripple_ignitions_total",
		Help: "Inactive nodes switched on by an igniter",
	})

	RecoveredPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripple_recovered_panics_total",
		Help: "Panics absorbed at the scheduler callback boundary",
	})

	PlanDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ripple_plan_depth",
		Help:    "Deepest hop of each staged cascade plan",
		Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
