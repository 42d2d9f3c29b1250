package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for the scheduled worker:
//   - worker_job_runs_total{job,status}: pipeline / retry sweep runs
//   - worker_job_duration_seconds{job}: job execution duration histogram
//   - worker_articles_processed_total: articles summarized across all runs
//   - worker_job_last_success_timestamp{job}: last successful completion
type Metrics struct {
	JobRunsTotal           *prometheus.CounterVec
	JobDurationSeconds     *prometheus.HistogramVec
	ArticlesProcessedTotal prometheus.Counter
	JobLastSuccessTime     *prometheus.GaugeVec
}

// Job label values.
const (
	JobPipeline   = "pipeline"
	JobRetrySweep = "retry_sweep"
	JobCleanup    = "cleanup"
)

// NewMetrics creates the worker metric set. Metrics register themselves
// with the default registry via promauto.
func NewMetrics() *Metrics {
	return &Metrics{
		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total number of worker job runs by job name and status",
		}, []string{"job", "status"}),

		JobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of worker job execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}, []string{"job"}),

		ArticlesProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_articles_processed_total",
			Help: "Total number of articles summarized across all pipeline runs",
		}),

		JobLastSuccessTime: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per job",
		}, []string{"job"}),
	}
}

// RecordJobRun increments the run counter for the job with the given
// status ("success" or "failure").
func (m *Metrics) RecordJobRun(job, status string) {
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordJobDuration observes a job's execution duration in seconds.
func (m *Metrics) RecordJobDuration(job string, seconds float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordArticlesProcessed adds to the processed article total.
func (m *Metrics) RecordArticlesProcessed(count int) {
	m.ArticlesProcessedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the job's last success.
func (m *Metrics) RecordLastSuccess(job string) {
	m.JobLastSuccessTime.WithLabelValues(job).SetToCurrentTime()
}
