package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Orchestration metrics.
var (
	RAGRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autorag",
			Name:      "rag_requests_total",
			Help:      "RAG runs by delivery mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: answered / no_context / direct / failed
	)

	RAGStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "autorag",
			Name:      "rag_stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"stage"},
	)

	RAGDegradationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autorag",
			Name:      "rag_degradations_total",
			Help:      "Recoverable upstream failures that let the pipeline continue with empty data",
		},
		[]string{"stage"}, // hint / retrieval / hydration
	)

	RAGRetrievalHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "autorag",
			Name:      "rag_retrieval_hits",
			Help:      "Vector search hits per run",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)
)

var registerRAGOnce sync.Once

// RegisterRAGMetrics registers orchestration metrics. Safe to call more than once.
func RegisterRAGMetrics() {
	registerRAGOnce.Do(func() {
		prometheus.MustRegister(
			RAGRequestsTotal,
			RAGStageDuration,
			RAGDegradationsTotal,
			RAGRetrievalHits,
		)
	})
}
