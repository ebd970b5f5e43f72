// Package metrics holds the process-wide Prometheus collectors of the guard.
//
// Collectors register on the default registry through promauto and are served
// by the API's /metrics route. Request, activity, anomaly, store and circuit
// breaker series live here; the limiter and the worker own their collectors
// and take a prometheus.Registerer instead.
//
//	start := time.Now()
//	// admit and store the event
//	metrics.RecordActivityAccepted(string(action), time.Since(start))
package metrics
