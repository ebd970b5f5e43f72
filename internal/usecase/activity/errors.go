// Package activity provides the use cases behind the activity API: recording
// a user action through the replay guard and rate limiter, the standalone
// replay check, and aggregate activity statistics.
package activity

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnauthorized indicates that no authenticated user id reached the use case.
var ErrUnauthorized = errors.New("unauthorized")

// Issue is one field-level problem of a rejected request.
// Path is the dotted field path, e.g. "action" or "meta".
type Issue struct {
	Path    string
	Message string
}

// ValidationError reports a malformed request. Message is the headline
// ("Invalid request", "Invalid clientTime"); Issues lists the fields at fault.
type ValidationError struct {
	Message string
	Issues  []Issue
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RateLimitedError reports that the user already used every slot of the window.
// Count is the number of admissions observed in the window before this attempt.
type RateLimitedError struct {
	Count      int
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
	ServerTime time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("Rate limit: max %d actions per %d seconds", e.Limit, int(e.Window/time.Second))
}

// ReplayReason tells why a replay check refused a request.
type ReplayReason string

const (
	// ReplayDrift means the client clock is too far from server time.
	ReplayDrift ReplayReason = "drift"
	// ReplayDuplicate means the same action was claimed within the replay window.
	ReplayDuplicate ReplayReason = "replay"
)

// ReplayRejectedError reports a replay guard refusal.
type ReplayRejectedError struct {
	Reason     ReplayReason
	DriftMs    int64
	MaxDrift   time.Duration
	Window     time.Duration
	ServerTime time.Time
}

func (e *ReplayRejectedError) Error() string {
	if e.Reason == ReplayDrift {
		return fmt.Sprintf("Client/server time drift > %ds", int(e.MaxDrift/time.Second))
	}
	return fmt.Sprintf("Replay detected: same action within %d seconds", int(e.Window/time.Second))
}

// InfrastructureError wraps a failure of a backing store. The request had no
// effect beyond what Op names and may be retried.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("activity %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}
