package ratelimit

import (
	"fmt"
	"time"
)

// Default policy: at most 5 admissions per rolling 10 seconds per user.
const (
	DefaultLimit  = 5
	DefaultWindow = 10 * time.Second
)

// Config contains the limiter policy.
type Config struct {
	// Limit is the maximum number of admissions in Window (K).
	Limit int

	// Window is the rolling window length (W).
	Window time.Duration

	// KeyPrefix is prepended to the user id to build the store key.
	// Default: "rate:"
	KeyPrefix string
}

// DefaultConfig returns the fixed production policy.
func DefaultConfig() Config {
	return Config{
		Limit:     DefaultLimit,
		Window:    DefaultWindow,
		KeyPrefix: "rate:",
	}
}

// Validate checks that the policy can be enforced.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("Limit must be positive, got %d", c.Limit)
	}
	if c.Window < time.Millisecond {
		return fmt.Errorf("Window must be at least 1ms, got %s", c.Window)
	}
	return nil
}

// ApplyDefaults fills zero values with the default policy.
func (c *Config) ApplyDefaults() {
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "rate:"
	}
}
