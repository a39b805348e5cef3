package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval and write-path metrics.
var (
	// RetrievalTotal counts searches by the path that produced the answer.
	// source: listing | vector | text; reason: "" for the primary path, otherwise
	// embed_error | vector_error | empty | hydrate_error.
	RetrievalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_total",
			Help:      "Search requests by answering path and fallback reason",
		},
		[]string{"source", "reason"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of upstream calls made while serving a search",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage", "status"},
	)

	// IndexingTotal counts write-through outcomes: indexed | marked | removed | remove_failed.
	IndexingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexing_total",
			Help:      "Vector index write-through outcomes",
		},
		[]string{"outcome"},
	)

	ChatStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_tool_calls_total",
			Help:      "Tool invocations made by the chat agent",
		},
		[]string{"tool", "status"},
	)
)

// ObserveUpstream records one upstream call.
func ObserveUpstream(stage string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	UpstreamDuration.WithLabelValues(stage, status).Observe(time.Since(start).Seconds())
}
