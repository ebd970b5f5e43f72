package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics tracks configuration health and scan job execution.
//
// Metrics:
//   - anomaly_worker_config_load_timestamp
//   - anomaly_worker_config_validation_errors_total{field}
//   - anomaly_worker_config_fallbacks_total{field}
//   - anomaly_worker_config_fallback_active
//   - anomaly_worker_job_runs_total{status}
//   - anomaly_worker_job_duration_seconds
//   - anomaly_worker_flags_found_total
//   - anomaly_worker_last_success_timestamp
type WorkerMetrics struct {
	ConfigLoadTimestamp   prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge

	JobRunsTotal         *prometheus.CounterVec
	JobDurationSeconds   prometheus.Histogram
	FlagsFoundTotal      prometheus.Counter
	LastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	f := promauto.With(reg)
	return &WorkerMetrics{
		ConfigLoadTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "anomaly_worker_config_load_timestamp",
			Help: "Unix timestamp of the last worker configuration load",
		}),
		ValidationErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anomaly_worker_config_validation_errors_total",
			Help: "Total number of worker configuration validation errors",
		}, []string{"field"}),
		FallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anomaly_worker_config_fallbacks_total",
			Help: "Total number of worker configuration fallbacks to defaults",
		}, []string{"field"}),
		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "anomaly_worker_config_fallback_active",
			Help: "1 if any worker configuration fallback is active, 0 otherwise",
		}),

		JobRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anomaly_worker_job_runs_total",
			Help: "Total number of anomaly scan job runs by status",
		}, []string{"status"}),
		JobDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "anomaly_worker_job_duration_seconds",
			Help:    "Duration of anomaly scan job runs in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 30},
		}),
		FlagsFoundTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "anomaly_worker_flags_found_total",
			Help: "Total number of suspicious flags raised across all scans",
		}),
		LastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "anomaly_worker_last_success_timestamp",
			Help: "Unix timestamp of the last successful anomaly scan",
		}),
	}
}

func (m *WorkerMetrics) RecordLoadTimestamp() { m.ConfigLoadTimestamp.SetToCurrentTime() }

func (m *WorkerMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

func (m *WorkerMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

func (m *WorkerMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}

// RecordJobRun counts a run with status success, failure or skipped.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.JobRunsTotal.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) RecordJobDuration(d time.Duration) {
	m.JobDurationSeconds.Observe(d.Seconds())
}

func (m *WorkerMetrics) RecordFlags(n int) {
	m.FlagsFoundTotal.Add(float64(n))
}

func (m *WorkerMetrics) RecordLastSuccess(t time.Time) {
	m.LastSuccessTimestamp.Set(float64(t.Unix()))
}
