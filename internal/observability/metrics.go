// Package observability holds the Prometheus instrumentation shared across
// the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the service's Prometheus collectors.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RetrievalDuration *prometheus.HistogramVec
	ChunksIngested    prometheus.Counter
	EmbeddingFailures *prometheus.CounterVec
	LLMCalls          *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on the given registerer.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brainbox",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path, and status.",
		}, []string{"method", "path", "status"}),
		RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brainbox",
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval latency by strategy.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		ChunksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brainbox",
			Name:      "chunks_ingested_total",
			Help:      "Chunks written to the vector store.",
		}),
		EmbeddingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brainbox",
			Name:      "embedding_failures_total",
			Help:      "Chunk embedding failures by vector space.",
		}, []string{"space"}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brainbox",
			Name:      "llm_calls_total",
			Help:      "LLM completions by model role and outcome.",
		}, []string{"role", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RequestsTotal,
			m.RetrievalDuration,
			m.ChunksIngested,
			m.EmbeddingFailures,
			m.LLMCalls,
		)
	}
	return m
}
