package metrics

import (
	"time"
)

// Rejection reasons used as the reason label of ActivityRejectedTotal.
const (
	RejectValidation  = "validation"
	RejectDrift       = "drift"
	RejectReplay      = "replay"
	RejectRateLimited = "rate_limited"
	RejectUnavailable = "unavailable"
)

// RecordActivityAccepted records an activity event that was admitted and stored.
func RecordActivityAccepted(action string, duration time.Duration) {
	ActivityRecordedTotal.WithLabelValues(action).Inc()
	ActivityRecordDuration.Observe(duration.Seconds())
}

// RecordActivityRejected records a refused submission.
// Reason should be one of the Reject* constants.
func RecordActivityRejected(reason string, duration time.Duration) {
	ActivityRejectedTotal.WithLabelValues(reason).Inc()
	ActivityRecordDuration.Observe(duration.Seconds())
}

// RecordAnomalyScan records the outcome of one anomaly scan.
// counts maps a suspicion reason to the number of flags raised for it; reasons
// missing from counts are reset to zero.
func RecordAnomalyScan(duration time.Duration, reasons []string, counts map[string]int) {
	AnomalyScanDuration.Observe(duration.Seconds())
	for _, reason := range reasons {
		SuspiciousFlagsCurrent.WithLabelValues(reason).Set(float64(counts[reason]))
	}
}

// RecordAnomalyScanError records a failed anomaly scan.
func RecordAnomalyScanError(duration time.Duration) {
	AnomalyScanErrors.Inc()
	AnomalyScanDuration.Observe(duration.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "append_activity", "aggregate_activity").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
