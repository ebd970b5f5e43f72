package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP surface. The path label is the route pattern, never the raw path.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served, by method, route and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency, by method, route and status",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "path", "status"})

	// Activity bodies are capped at a few KiB, so the buckets stop at 64 KiB.
	HTTPRequestSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_size_bytes",
		Help:    "Declared HTTP request body size",
		Buckets: prometheus.ExponentialBuckets(64, 4, 6),
	}, []string{"method", "path"})

	HTTPResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "HTTP response body size",
		Buckets: prometheus.ExponentialBuckets(64, 4, 6),
	}, []string{"method", "path"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_connections",
		Help: "Requests currently inside the middleware chain",
	})
)

// Activity ingestion and abuse detection.
var (
	ActivityRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_recorded_total",
		Help: "Activity events admitted and stored, by action",
	}, []string{"action"})

	// reason is one of the Reject* constants.
	ActivityRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_rejected_total",
		Help: "Activity submissions refused, by reason",
	}, []string{"reason"})

	ActivityRecordDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "activity_record_duration_seconds",
		Help:    "Time to validate, admit and store one activity event",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	SuspiciousFlagsCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "activity_suspicious_flags",
		Help: "Flags raised by the latest anomaly scan, by reason",
	}, []string{"reason"})

	AnomalyScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "activity_anomaly_scan_duration_seconds",
		Help:    "Time to evaluate the anomaly rules",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	AnomalyScanErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "activity_anomaly_scan_errors_total",
		Help: "Anomaly scans that failed",
	})
)

// Backing stores.
var (
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Event store call latency, by operation",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	}, []string{"operation"})

	DBConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_connections_active",
		Help: "Open database connections in use",
	})

	DBConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_connections_idle",
		Help: "Open database connections sitting idle",
	})

	// 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state by name: 0 closed, 1 half-open, 2 open",
	}, []string{"name"})
)

// RecordHTTPRequest records one served request. Sizes of zero or less are
// not observed.
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordBreakerState publishes the state of the named circuit breaker.
func RecordBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
