// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TablesQueried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tables_queried_total",
			Help: "Total number of per-table retrieval attempts",
		},
		[]string{"table"},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_fetch_failures_total",
			Help: "Total number of failed table fetches",
		},
		[]string{"table", "error_code"},
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "agent_retrieval_duration_seconds",
			Help: "Duration of full context retrieval in seconds",
		},
		[]string{"outcome"},
	)

	AggregateQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_aggregate_queries_total",
			Help: "Total number of aggregate queries by operation",
		},
		[]string{"table", "op"},
	)

	MetadataCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_metadata_cache_hits_total",
			Help: "Metadata cache lookups by result",
		},
		[]string{"result"},
	)

	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_completion_requests_total",
			Help: "Completion API calls by status",
		},
		[]string{"status"},
	)

	DocumentsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_documents_indexed_total",
			Help: "Search documents uploaded per table",
		},
		[]string{"table"},
	)
)
