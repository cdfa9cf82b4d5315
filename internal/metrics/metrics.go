// Package metrics exposes Prometheus instrumentation for the merge
// pipeline's non-fatal counters and timing, in the same promauto
// CounterVec/HistogramVec style the rest of the corpus uses for
// service-level metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dependenciesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cgmerge",
		Subsystem: "merge",
		Name:      "dependencies_dropped_total",
		Help:      "Total dependencies dropped after a fetch failure, by forge",
	}, []string{"forge"})

	callablesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cgmerge",
		Subsystem: "merge",
		Name:      "callables_dropped_total",
		Help:      "Total callables dropped from the type dictionary due to malformed URIs, by forge",
	}, []string{"forge"})

	dynamicSitesUnresolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cgmerge",
		Subsystem: "merge",
		Name:      "dynamic_sites_unresolved_total",
		Help:      "Total dynamic invocation sites left unresolved by CHA, by forge and policy",
	}, []string{"forge", "policy"})

	sitesResolvedZeroTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cgmerge",
		Subsystem: "merge",
		Name:      "sites_resolved_zero_total",
		Help:      "Total harvested arcs whose invocation sites resolved to no edges, by forge",
	}, []string{"forge"})

	mergeDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cgmerge",
		Subsystem: "merge",
		Name:      "duration_seconds",
		Help:      "End-to-end duration of a single merge run",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"forge", "outcome"})
)

// RecordReport publishes a completed model.MergeReport's counters under
// the given forge label.
func RecordReport(forge string, dynamicPolicy string, dependenciesDropped, callablesDropped, dynamicSitesUnresolved, sitesResolvedZero int) {
	if dependenciesDropped > 0 {
		dependenciesDroppedTotal.WithLabelValues(forge).Add(float64(dependenciesDropped))
	}
	if callablesDropped > 0 {
		callablesDroppedTotal.WithLabelValues(forge).Add(float64(callablesDropped))
	}
	if dynamicSitesUnresolved > 0 {
		dynamicSitesUnresolvedTotal.WithLabelValues(forge, dynamicPolicy).Add(float64(dynamicSitesUnresolved))
	}
	if sitesResolvedZero > 0 {
		sitesResolvedZeroTotal.WithLabelValues(forge).Add(float64(sitesResolvedZero))
	}
}

// RecordDuration publishes the wall-clock duration of a merge run,
// labeled by outcome ("ok" or "error").
func RecordDuration(forge, outcome string, seconds float64) {
	mergeDurationSeconds.WithLabelValues(forge, outcome).Observe(seconds)
}
