package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_queries_total",
			Help: "Total number of pipeline runs by classified intent",
		},
		[]string{"intent"},
	)

	NodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_node_failures_total",
			Help: "Total number of degraded pipeline nodes by error tag",
		},
		[]string{"tag"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assistant_pipeline_duration_seconds",
			Help: "Duration of a full pipeline run in seconds",
		},
		[]string{"intent"},
	)

	ValidationRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_validation_rejections_total",
			Help: "Total number of generated answers rejected by the validator",
		},
	)

	RetrievalQuality = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_retrieval_quality_total",
			Help: "Outcomes of the context filter by quality label",
		},
		[]string{"quality"},
	)

	UnsafeQueriesBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_unsafe_queries_blocked_total",
			Help: "Total number of queries blocked by the sanitizer",
		},
	)
)
