// Package slo tracks service level indicators for the activity API and
// publishes them as Prometheus gauges.
package slo

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the activity API.
const (
	// AvailabilitySLO is the target share of non-5xx responses, in percent.
	AvailabilitySLO = 99.9

	// LatencyP95SLO is the 95th percentile latency target in seconds.
	LatencyP95SLO = 0.200

	// LatencyP99SLO is the 99th percentile latency target in seconds.
	LatencyP99SLO = 0.500

	// ErrorRateSLO is the maximum share of 5xx responses.
	// 429 and 409 are deliberate refusals and do not count.
	ErrorRateSLO = 0.001
)

var (
	SLOAvailability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_availability_ratio",
			Help: "Current availability ratio (0-1), target: 0.999",
		},
	)

	SLOLatencyP95 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_latency_p95_seconds",
			Help: "Current p95 latency in seconds, target: 0.200",
		},
	)

	SLOLatencyP99 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_latency_p99_seconds",
			Help: "Current p99 latency in seconds, target: 0.500",
		},
	)

	SLOErrorRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_error_rate_ratio",
			Help: "Current error rate ratio (0-1), target: 0.001",
		},
	)
)

// Snapshot is one evaluation of the indicators.
type Snapshot struct {
	Requests     int
	Errors       int
	Availability float64
	ErrorRate    float64
	P95          time.Duration
	P99          time.Duration
}

// Tracker accumulates request outcomes between Publish calls.
// It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records one completed request.
func (t *Tracker) Observe(status int, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latencies = append(t.latencies, latency)
	if status >= 500 {
		t.errors++
	}
}

// Publish computes a snapshot over the requests observed since the previous
// call, updates the gauges and resets the tracker. With no traffic the
// availability is reported as 1 and the latency gauges are left untouched.
func (t *Tracker) Publish() Snapshot {
	t.mu.Lock()
	latencies := t.latencies
	errs := t.errors
	t.latencies = nil
	t.errors = 0
	t.mu.Unlock()

	snap := Snapshot{Requests: len(latencies), Errors: errs, Availability: 1}
	if snap.Requests == 0 {
		SLOAvailability.Set(1)
		SLOErrorRate.Set(0)
		return snap
	}

	snap.ErrorRate = float64(errs) / float64(snap.Requests)
	snap.Availability = 1 - snap.ErrorRate

	slices.Sort(latencies)
	snap.P95 = percentile(latencies, 0.95)
	snap.P99 = percentile(latencies, 0.99)

	SLOAvailability.Set(snap.Availability)
	SLOErrorRate.Set(snap.ErrorRate)
	SLOLatencyP95.Set(snap.P95.Seconds())
	SLOLatencyP99.Set(snap.P99.Seconds())
	return snap
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p*float64(len(sorted)) - 1e-9))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
