// Package ratelimit enforces "at most K admitted actions per user per rolling
// window W".
//
// The limiter itself is stateless. All state lives in a WindowStore whose
// CheckAndAdmit must run as one indivisible operation against the shared store
// (a server-side script for Redis, a single lock acquisition in memory).
// Decomposing it into separate read and write calls reintroduces over-admission
// under concurrent requests from the same user.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable marks a failure to reach the backing window store.
// Callers must treat it as retriable and never as an admission.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// WindowStore holds the per-key ordered membership used by the sliding window.
//
// Implementations can use in-memory storage or Redis. All methods must be
// thread-safe.
type WindowStore interface {
	// CheckAndAdmit atomically:
	//  1. removes every member of key scored before now-window,
	//  2. counts the remaining members,
	//  3. if count >= limit, returns (false, count) without writing,
	//  4. otherwise inserts a uniquely identified member scored at now,
	//     refreshes the key's idle expiry to window and returns (true, count+1).
	//
	// No partial state (purge without insert, or insert without purge) may be
	// observable by a concurrent caller.
	CheckAndAdmit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (admitted bool, count int, err error)
}

// Metrics records limiter outcomes.
//
// Implementations can use Prometheus or be no-ops.
type Metrics interface {
	// RecordAdmitted records an admitted attempt.
	RecordAdmitted()

	// RecordRejected records an attempt refused because the window was full.
	RecordRejected()

	// RecordStoreError records an attempt that failed to reach the store.
	RecordStoreError()

	// RecordCheckDuration records how long the store round trip took.
	RecordCheckDuration(duration time.Duration)

	// SetActiveKeys records the number of keys held by a local store.
	SetActiveKeys(count int)
}
