// Package replay rejects duplicate (user, action) submissions inside a short
// replay window and bounds how far client clocks may drift from server time.
//
// Exclusivity rests on a ClaimStore whose Claim is a single conditional
// create with a TTL (SET NX PX on Redis). Claims are never deleted early; they
// disappear when the TTL elapses.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Default policy values.
const (
	DefaultWindow   = 3 * time.Second
	DefaultMaxDrift = 30 * time.Second
)

// ErrStoreUnavailable marks a failure to reach the claim store.
// Callers must treat it as retriable and never as Allowed.
var ErrStoreUnavailable = errors.New("replay claim store unavailable")

// ClaimStore creates short-lived exclusive keys.
type ClaimStore interface {
	// Claim creates key with value and ttl only if key is absent.
	// It returns false when the key already exists.
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Outcome is the verdict of a replay check.
type Outcome int

// The zero Outcome is never returned with a nil error.
const (
	// Allowed means the claim was created.
	Allowed Outcome = iota + 1
	// RejectedDrift means client time was too far from server time.
	RejectedDrift
	// RejectedReplay means the same pair was claimed within the window.
	RejectedReplay
)

// String returns the outcome name used in logs and metrics labels.
func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case RejectedDrift:
		return "drift"
	case RejectedReplay:
		return "replay"
	default:
		return "unknown"
	}
}

// Result is returned by Guard.Check.
type Result struct {
	Outcome Outcome

	// DriftMs is |now - clientTime| in milliseconds. It is computed for every
	// parsed request, including allowed ones.
	DriftMs int64
}

// Allowed reports whether the check passed.
func (r Result) Allowed() bool {
	return r.Outcome == Allowed
}

// Config holds the guard policy.
type Config struct {
	// Window is the replay window (R). Default: 3s
	Window time.Duration

	// MaxDrift is the largest accepted |now - clientTime|. Default: 30s
	MaxDrift time.Duration

	// KeyPrefix is prepended to "<user>:<action>". Default: "replay:"
	KeyPrefix string
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		Window:    DefaultWindow,
		MaxDrift:  DefaultMaxDrift,
		KeyPrefix: "replay:",
	}
}

// Validate checks that the policy can be enforced.
func (c Config) Validate() error {
	if c.Window < time.Millisecond {
		return fmt.Errorf("Window must be at least 1ms, got %s", c.Window)
	}
	if c.MaxDrift <= 0 {
		return fmt.Errorf("MaxDrift must be positive, got %s", c.MaxDrift)
	}
	return nil
}

// Guard performs replay checks.
type Guard struct {
	store  ClaimStore
	config Config
	logger *slog.Logger
}

// NewGuard creates a guard enforcing cfg against store.
// Zero values in cfg are replaced with defaults.
func NewGuard(store ClaimStore, cfg Config, logger *slog.Logger) *Guard {
	def := DefaultConfig()
	if cfg.Window == 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxDrift == 0 {
		cfg.MaxDrift = def.MaxDrift
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, config: cfg, logger: logger}
}

// Config returns the enforced policy.
func (g *Guard) Config() Config {
	return g.config
}

// Check validates clientTime against now and then claims (userID, action).
//
// Steps:
//  1. Parse clientTime. Failure returns *ValidationError.
//  2. Reject as RejectedDrift when |now - clientTime| > MaxDrift. The claim
//     is not attempted, so a drifted request never consumes the slot.
//  3. Claim "<prefix><userID>:<action>" for Window. An existing claim gives
//     RejectedReplay.
//
// Store failures wrap ErrStoreUnavailable.
func (g *Guard) Check(ctx context.Context, userID, action, clientTime string, now time.Time) (Result, error) {
	parsed, err := ParseClientTime(clientTime)
	if err != nil {
		return Result{}, err
	}

	drift := now.Sub(parsed)
	if drift < 0 {
		drift = -drift
	}
	result := Result{DriftMs: drift.Milliseconds()}

	if drift > g.config.MaxDrift {
		result.Outcome = RejectedDrift
		g.logger.Debug("replay check rejected: clock drift",
			slog.String("user_id", userID),
			slog.Int64("drift_ms", result.DriftMs))
		return result, nil
	}

	key := g.config.KeyPrefix + userID + ":" + action
	claimed, err := g.store.Claim(ctx, key, strconv.FormatInt(now.UnixMilli(), 10), g.config.Window)
	if err != nil {
		g.logger.Warn("replay claim failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return Result{}, fmt.Errorf("%w: claim %s: %w", ErrStoreUnavailable, key, err)
	}

	if !claimed {
		result.Outcome = RejectedReplay
		g.logger.Debug("replay check rejected: duplicate",
			slog.String("user_id", userID),
			slog.String("action", action))
		return result, nil
	}

	result.Outcome = Allowed
	return result, nil
}
