package http

import (
	"net/http"
	"strconv"
	"time"

	"activity-guard/internal/handler/http/pathutil"
	"activity-guard/internal/handler/http/responsewriter"
	"activity-guard/internal/observability/metrics"
	"activity-guard/internal/observability/slo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequestsInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	},
)

// MetricsMiddleware records request count, latency and sizes labelled by the
// matched route, and feeds every response into tracker when it is non-nil.
// Unmatched paths share one label so scanners cannot inflate cardinality.
func MetricsMiddleware(tracker *slo.Tracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()
			metrics.ActiveConnections.Inc()
			defer metrics.ActiveConnections.Dec()

			r = pathutil.Track(r)
			rw := responsewriter.Wrap(w)
			start := time.Now()
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			route := pathutil.RouteLabel(r)
			metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rw.StatusCode()),
				duration, int(r.ContentLength), rw.BytesWritten())

			if tracker != nil && route != pathutil.UnmatchedRoute {
				tracker.Observe(rw.StatusCode(), duration)
			}
		})
	}
}

// MetricsHandler returns the Prometheus exposition handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
