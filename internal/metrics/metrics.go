// Package metrics provides Prometheus metrics for assguard runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "assguard"
)

// Pipeline metrics
var (
	// RunsTotal counts pipeline runs by terminal status.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	// InvocationsListed counts workflow invocations returned by the API.
	InvocationsListed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "invocations_listed_total",
			Help:      "Total number of workflow invocations listed",
		},
	)

	// ActionsListed counts invocation actions returned by the API.
	ActionsListed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "actions_listed_total",
			Help:      "Total number of invocation actions listed",
		},
	)

	// RecordsLoaded counts assertion records appended to the warehouse.
	RecordsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "records_loaded_total",
			Help:      "Total number of assertion records appended",
		},
	)

	// StageDuration tracks per-stage latency.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
)

// Push sends the default registry to a Pushgateway, grouped by run id.
// A one-shot batch job pushes instead of being scraped.
func Push(gatewayURL, runID string) error {
	return push.New(gatewayURL, "assguard").
		Gatherer(prometheus.DefaultGatherer).
		Grouping("run_id", runID).
		Push()
}
