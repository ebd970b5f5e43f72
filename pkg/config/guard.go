package config

import (
	"fmt"
	"log/slog"
	"time"

	"activity-guard/pkg/ratelimit"
	"activity-guard/pkg/replay"
)

// GuardConfig holds the abuse guard policy.
type GuardConfig struct {
	RateLimit ratelimit.Config
	Replay    replay.Config

	// ReplayMode is "optional", "required" or "off".
	ReplayMode string

	// StoreTimeout bounds each atomic store and event store call.
	StoreTimeout time.Duration

	// MemoryMaxKeys caps the in-memory window store when no Redis is configured.
	MemoryMaxKeys int
}

// DefaultGuardConfig returns 5 actions per 10s, a 3s replay window and a 30s
// drift bound.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RateLimit: ratelimit.Config{
			Limit:     ratelimit.DefaultLimit,
			Window:    ratelimit.DefaultWindow,
			KeyPrefix: "rate:",
		},
		Replay:        replay.DefaultConfig(),
		ReplayMode:    "optional",
		StoreTimeout:  2 * time.Second,
		MemoryMaxKeys: 10000,
	}
}

// LoadGuardConfig overlays GUARD_* variables on base. Unparsable or
// out-of-range values fall back to base with a warning.
//
// Variables:
//   - GUARD_RATE_LIMIT, GUARD_RATE_WINDOW
//   - GUARD_REPLAY_WINDOW, GUARD_MAX_DRIFT, GUARD_REPLAY_MODE
//   - GUARD_STORE_TIMEOUT, GUARD_MEMORY_MAX_KEYS
func LoadGuardConfig(base GuardConfig) (*GuardConfig, error) {
	cfg := base

	cfg.RateLimit.Limit = intAtLeast("GUARD_RATE_LIMIT", base.RateLimit.Limit, 1)
	cfg.RateLimit.Window = durationInRange("GUARD_RATE_WINDOW", base.RateLimit.Window, time.Millisecond, time.Hour)

	cfg.Replay.Window = durationInRange("GUARD_REPLAY_WINDOW", base.Replay.Window, time.Millisecond, time.Hour)
	cfg.Replay.MaxDrift = durationInRange("GUARD_MAX_DRIFT", base.Replay.MaxDrift, time.Second, 24*time.Hour)

	cfg.ReplayMode = GetEnvString("GUARD_REPLAY_MODE", base.ReplayMode)
	switch cfg.ReplayMode {
	case "optional", "required", "off":
	default:
		return nil, fmt.Errorf("GUARD_REPLAY_MODE must be optional, required or off, got %q", cfg.ReplayMode)
	}

	cfg.StoreTimeout = durationInRange("GUARD_STORE_TIMEOUT", base.StoreTimeout, 10*time.Millisecond, time.Minute)
	cfg.MemoryMaxKeys = intAtLeast("GUARD_MEMORY_MAX_KEYS", base.MemoryMaxKeys, 1)

	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, fmt.Errorf("rate limit policy: %w", err)
	}
	if err := cfg.Replay.Validate(); err != nil {
		return nil, fmt.Errorf("replay policy: %w", err)
	}
	return &cfg, nil
}

func intAtLeast(key string, def, min int) int {
	v := GetEnvInt(key, def)
	if err := ValidateMinInt(v, min); err != nil {
		slog.Warn("invalid "+key+", using default",
			slog.Int("value", v),
			slog.Int("default", def),
			slog.String("error", err.Error()))
		return def
	}
	return v
}

func durationInRange(key string, def, min, max time.Duration) time.Duration {
	v := GetEnvDuration(key, def)
	if err := ValidateDurationRange(v, min, max); err != nil {
		slog.Warn("invalid "+key+", using default",
			slog.String("value", v.String()),
			slog.String("default", def.String()),
			slog.String("error", err.Error()))
		return def
	}
	return v
}
