package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"newsintel/internal/pkg/config"
)

// Job names used as the "job" label.
const (
	JobFetch   = "fetch"
	JobCleanup = "cleanup"
)

// WorkerMetrics provides Prometheus metrics for the scheduler.
// It embeds the standard ConfigMetrics for configuration monitoring.
//
// Scheduler metrics:
//   - worker_job_runs_total: job runs by job and status (success/failure)
//   - worker_job_duration_seconds: job duration by job
//   - worker_articles_ingested_total: new articles stored by fetch jobs
//   - worker_articles_deleted_total: articles removed by cleanup jobs
//   - worker_job_last_success_timestamp: last successful run by job
//   - worker_cleanup_skipped_total: due cleanups skipped after a failed fetch
type WorkerMetrics struct {
	*config.ConfigMetrics

	JobRunsTotal          *prometheus.CounterVec
	JobDurationSeconds    *prometheus.HistogramVec
	ArticlesIngestedTotal prometheus.Counter
	ArticlesDeletedTotal  prometheus.Counter
	LastSuccessTimestamp  *prometheus.GaugeVec
	CleanupSkippedTotal   prometheus.Counter
}

// NewWorkerMetrics creates the metrics on the default registry.
// Call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return NewWorkerMetricsWith(prometheus.DefaultRegisterer)
}

// NewWorkerMetricsWith creates the metrics on reg.
func NewWorkerMetricsWith(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWith(reg, "worker"),

		JobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total number of scheduler job runs by job and status (success/failure)",
		}, []string{"job", "status"}),

		JobDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of scheduler jobs in seconds",
			Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 1800},
		}, []string{"job"}),

		ArticlesIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_articles_ingested_total",
			Help: "Total number of new articles stored by fetch jobs",
		}),

		ArticlesDeletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_articles_deleted_total",
			Help: "Total number of articles removed by cleanup jobs",
		}),

		LastSuccessTimestamp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful job run",
		}, []string{"job"}),

		CleanupSkippedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_cleanup_skipped_total",
			Help: "Total number of due cleanups skipped because the fetch cycle failed",
		}),
	}
}

// RecordJobRun records one run of job with its duration in seconds.
func (m *WorkerMetrics) RecordJobRun(job string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	m.JobDurationSeconds.WithLabelValues(job).Observe(seconds)
	if success {
		m.LastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
	}
}

// RecordArticlesIngested adds the number of new articles from one fetch cycle.
func (m *WorkerMetrics) RecordArticlesIngested(count int64) {
	m.ArticlesIngestedTotal.Add(float64(count))
}

// RecordArticlesDeleted adds the number of articles removed by one sweep.
func (m *WorkerMetrics) RecordArticlesDeleted(count int64) {
	m.ArticlesDeletedTotal.Add(float64(count))
}

// RecordCleanupSkipped counts a due cleanup that did not run.
func (m *WorkerMetrics) RecordCleanupSkipped() {
	m.CleanupSkippedTotal.Inc()
}
