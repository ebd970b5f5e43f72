// Package tracing provides OpenTelemetry tracing integration.
//
// Middleware opens a server span per HTTP request and echoes the trace ID in
// the X-Trace-Id response header. StartSpan and EndSpan wrap the internal
// spans opened around limiter, replay and repository calls.
//
// No exporter is installed here; without one the global no-op provider is
// used and spans cost almost nothing.
package tracing
