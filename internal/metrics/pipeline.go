package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sync, matching and explanation metrics.
var (
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync and repair passes by final state",
		},
		[]string{"state"},
	)

	SyncPostingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_postings_total",
			Help:      "Postings processed by sync stage",
		},
		[]string{"stage"}, // collected / submitted / accepted / indexed / failed
	)

	SyncPendingIDs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_pending_ids",
			Help:      "Job ids accepted by the store but not yet indexed",
		},
	)

	MatchSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_skipped_total",
			Help:      "Candidates skipped during ranking",
		},
	)

	ExplainFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explain_fallback_total",
			Help:      "Explanations answered with the fallback sentence",
		},
	)
)

var pipelineOnce sync.Once

// RegisterPipelineMetrics registers sync, match and explain collectors.
func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(
			SyncRunsTotal,
			SyncPostingsTotal,
			SyncPendingIDs,
			MatchSkippedTotal,
			ExplainFallbackTotal,
		)
	})
}
