package ratelimit

import "time"

// NoOpMetrics implements Metrics with no-op methods.
//
// It is the default collector for a Limiter and is used in tests.
type NoOpMetrics struct{}

// RecordAdmitted is a no-op implementation.
func (m *NoOpMetrics) RecordAdmitted() {}

// RecordRejected is a no-op implementation.
func (m *NoOpMetrics) RecordRejected() {}

// RecordStoreError is a no-op implementation.
func (m *NoOpMetrics) RecordStoreError() {}

// RecordCheckDuration is a no-op implementation.
func (m *NoOpMetrics) RecordCheckDuration(duration time.Duration) {}

// SetActiveKeys is a no-op implementation.
func (m *NoOpMetrics) SetActiveKeys(count int) {}
