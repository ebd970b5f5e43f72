package ratelimit

import (
	"fmt"
	"time"
)

// Decision represents the result of a single admission attempt.
//
// Count is asymmetric: when Admitted is true it is the post-admission count
// (including this attempt); when Admitted is false it is the pre-admission
// count observed in the window. Client UIs render "Count/Limit actions used"
// from it either way.
type Decision struct {
	// Key is the user the decision was made for.
	Key string

	// Admitted reports whether the attempt was recorded in the window.
	Admitted bool

	// Count is the number of admissions in the window, see above.
	Count int

	// Limit is the maximum number of admissions allowed in the window.
	Limit int

	// Window is the rolling window length.
	Window time.Duration

	// At is the server time the decision was made at.
	At time.Time
}

// String returns a human-readable representation of the decision.
func (d *Decision) String() string {
	if d.Admitted {
		return fmt.Sprintf("Decision{Admitted: true, Key: %s, Count: %d/%d}", d.Key, d.Count, d.Limit)
	}
	return fmt.Sprintf("Decision{Admitted: false, Key: %s, Count: %d/%d, RetryAfter: %s}",
		d.Key, d.Count, d.Limit, d.RetryAfter())
}

// Remaining returns how many more admissions fit in the current window.
func (d *Decision) Remaining() int {
	remaining := d.Limit - d.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter returns a conservative wait before the next attempt can succeed.
// It is zero for admitted decisions. For refused ones it is the full window,
// since the store does not report the oldest member's score.
func (d *Decision) RetryAfter() time.Duration {
	if d.Admitted {
		return 0
	}
	return d.Window
}
