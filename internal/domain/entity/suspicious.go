package entity

import (
	"cmp"
	"slices"
)

// SuspicionReason is the closed set of anomaly rules.
type SuspicionReason string

// Anomaly rule names as they appear in API responses.
const (
	ReasonHighFrequency SuspicionReason = "High frequency"
	ReasonMultipleIPs   SuspicionReason = "Multiple IPs"
)

// SuspiciousFlag is a derived, non-persisted signal that a user matched an
// anomaly rule. Count is the metric the rule fired on: events in the window
// for ReasonHighFrequency, distinct addresses for ReasonMultipleIPs.
type SuspiciousFlag struct {
	UserID string
	Reason SuspicionReason
	Count  int
}

// Key returns the deduplication key "userId:reason".
func (f SuspiciousFlag) Key() string {
	return f.UserID + ":" + string(f.Reason)
}

// SortFlags orders flags by user id, then reason.
func SortFlags(flags []SuspiciousFlag) {
	slices.SortFunc(flags, func(a, b SuspiciousFlag) int {
		if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})
}
