package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobmatch"

// Embedding roles. Postings are embedded as documents; résumés and search text as queries.
const (
	RoleDocument = "document"
	RoleQuery    = "query"
)

// Reasons an embedding call fails, as recorded in jobmatch_embedding_failures_total.
const (
	ReasonAPIError      = "api_error"
	ReasonCountMismatch = "count_mismatch"
)

// Embedding provider metrics, labelled by provider and role.
var (
	EmbeddingCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_calls_total",
			Help:      "Embedding provider round-trips by outcome",
		},
		[]string{"provider", "role", "outcome"},
	)

	EmbeddingCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_call_duration_seconds",
			Help:      "Latency of successful embedding provider round-trips",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "role"},
	)

	EmbeddingTextsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_texts_total",
			Help:      "Texts vectorized by the provider",
		},
		[]string{"provider", "role"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Tokens billed by the embedding provider",
		},
		[]string{"provider", "role"},
	)

	EmbeddingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Failed embedding round-trips by reason",
		},
		[]string{"provider", "role", "reason"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by role and result",
		},
		[]string{"role", "result"},
	)
)

// EmbeddingCache returns the cache counter for one role, leaving only the "result" label.
func EmbeddingCache(role string) *prometheus.CounterVec {
	return EmbeddingCacheTotal.MustCurryWith(prometheus.Labels{"role": role})
}

// ObserveEmbeddingCall records one provider round-trip of texts inputs.
// An empty reason is a success.
func ObserveEmbeddingCall(provider, role string, texts, tokens int, took time.Duration, reason string) {
	if reason != "" {
		EmbeddingCallsTotal.WithLabelValues(provider, role, "error").Inc()
		EmbeddingFailuresTotal.WithLabelValues(provider, role, reason).Inc()
		return
	}
	EmbeddingCallsTotal.WithLabelValues(provider, role, "ok").Inc()
	EmbeddingCallDuration.WithLabelValues(provider, role).Observe(took.Seconds())
	EmbeddingTextsTotal.WithLabelValues(provider, role).Add(float64(texts))
	if tokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(provider, role).Add(float64(tokens))
	}
}

var embOnce sync.Once

// RegisterEmbeddingMetrics registers Prometheus embedding metrics. Safe to call more than once.
func RegisterEmbeddingMetrics() {
	embOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingCallsTotal,
			EmbeddingCallDuration,
			EmbeddingTextsTotal,
			EmbeddingTokensTotal,
			EmbeddingFailuresTotal,
			EmbeddingCacheTotal,
		)
	})
}
