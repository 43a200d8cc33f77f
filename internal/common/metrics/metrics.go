// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	ReconciliationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "income_reconciliation_runs_total",
			Help: "Income recomputations by outcome",
		},
		[]string{"outcome"},
	)

	ReconciledSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "income_reconciled_sources_total",
			Help: "Reconciled income sources by status and determination method",
		},
		[]string{"status", "method"},
	)

	SkippedExtractions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "income_skipped_extractions_total",
			Help: "Extractions skipped because their payload could not be parsed",
		},
	)

	DocumentFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docintel_fetches_total",
			Help: "Extraction fetches from the document-understanding service by outcome",
		},
		[]string{"outcome"},
	)

	MeansTestRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "means_test_recommendations_total",
			Help: "Means test evaluations by recommendation",
		},
		[]string{"recommendation"},
	)
)
