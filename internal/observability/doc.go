// Package observability groups the logging, metrics, tracing and SLO
// subpackages shared by the API server and the anomaly worker.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry tracing integration
//   - slo: Service level objective gauges
package observability
