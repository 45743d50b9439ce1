package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GraphsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdsched_graphs_built_total",
		Help: "Total number of command graphs successfully built.",
	})

	GraphBuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmdsched_graph_build_failures_total",
		Help: "Total number of graph build failures, labelled by reason.",
	}, []string{"reason"})

	ValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdsched_validation_errors_total",
		Help: "Total number of invariant violations reported by the graph validator.",
	})

	CommandsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdsched_commands_scheduled_total",
		Help: "Total number of commands pushed onto the transport ring.",
	})

	CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmdsched_commands_dispatched_total",
		Help: "Total number of commands handed to the backend, labelled by op kind and status.",
	}, []string{"kind", "status"})

	RingFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdsched_ring_full_total",
		Help: "Total number of times a push found the transport ring full.",
	})

	RingUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cmdsched_ring_utilization_ratio",
		Help: "Current transport ring utilization (0–1).",
	})

	ResourceViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmdsched_resource_violations_total",
		Help: "Total number of resource bookkeeping violations, labelled by kind.",
	}, []string{"kind"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cmdsched_graph_build_duration_us",
		Help:    "Graph build latency in microseconds.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
)
