package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics using Prometheus.
//
// Metrics are registered on the Registerer passed to NewPrometheusMetrics,
// which lets tests use an isolated prometheus.Registry.
type PrometheusMetrics struct {
	// decisionsTotal counts admission attempts by outcome.
	// Labels:
	//   - outcome: "admitted", "rejected" or "store_error"
	decisionsTotal *prometheus.CounterVec

	// checkDuration tracks the store round trip of CheckAndAdmit.
	//
	// Buckets cover in-memory checks (sub-millisecond) through slow Redis
	// round trips that approach the store timeout.
	checkDuration prometheus.Histogram

	// activeKeys tracks the number of keys held by an in-memory store.
	activeKeys prometheus.Gauge
}

// NewPrometheusMetrics creates limiter metrics and registers them on reg.
//
// Panics if the metrics are already registered on reg, like
// prometheus.MustRegister.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_rate_limit_decisions_total",
				Help: "Total rate limit admission attempts by outcome",
			},
			[]string{"outcome"},
		),
		checkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "activity_rate_limit_check_duration_seconds",
				Help:    "Duration of sliding window check-and-admit operations",
				Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
			},
		),
		activeKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "activity_rate_limit_active_keys",
				Help: "Current number of keys held by the in-memory window store",
			},
		),
	}

	reg.MustRegister(m.decisionsTotal, m.checkDuration, m.activeKeys)
	return m
}

// RecordAdmitted records an admitted attempt.
func (m *PrometheusMetrics) RecordAdmitted() {
	m.decisionsTotal.WithLabelValues("admitted").Inc()
}

// RecordRejected records a refused attempt.
func (m *PrometheusMetrics) RecordRejected() {
	m.decisionsTotal.WithLabelValues("rejected").Inc()
}

// RecordStoreError records an attempt that failed to reach the store.
func (m *PrometheusMetrics) RecordStoreError() {
	m.decisionsTotal.WithLabelValues("store_error").Inc()
}

// RecordCheckDuration records the duration of a store check.
func (m *PrometheusMetrics) RecordCheckDuration(duration time.Duration) {
	m.checkDuration.Observe(duration.Seconds())
}

// SetActiveKeys records the current number of keys in a local store.
func (m *PrometheusMetrics) SetActiveKeys(count int) {
	m.activeKeys.Set(float64(count))
}
