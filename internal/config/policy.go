package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"activity-guard/internal/usecase/anomaly"
	pkgconfig "activity-guard/pkg/config"

	"gopkg.in/yaml.v3"
)

// Policy is the optional YAML file that sets guard and anomaly thresholds.
// Unset fields keep the built-in defaults; environment variables still
// override whatever the file sets.
//
//	rate_limit:
//	  limit: 5
//	  window: 10s
//	replay:
//	  window: 3s
//	  max_drift: 30s
//	  mode: optional
//	anomaly:
//	  high_frequency_window: 1m
//	  high_frequency_min: 20
//	  multi_ip_window: 5m
//	  multi_ip_max: 2
//	  schedule: "*/1 * * * *"
type Policy struct {
	RateLimit struct {
		Limit  int           `yaml:"limit"`
		Window time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`
	Replay struct {
		Window   time.Duration `yaml:"window"`
		MaxDrift time.Duration `yaml:"max_drift"`
		Mode     string        `yaml:"mode"`
	} `yaml:"replay"`
	Anomaly struct {
		HighFrequencyWindow time.Duration `yaml:"high_frequency_window"`
		HighFrequencyMin    int           `yaml:"high_frequency_min"`
		MultiIPWindow       time.Duration `yaml:"multi_ip_window"`
		MultiIPMax          int           `yaml:"multi_ip_max"`
		Schedule            string        `yaml:"schedule"`
	} `yaml:"anomaly"`
}

// LoadPolicyFile reads and validates a policy file.
// The path comes from GUARD_POLICY_FILE or a CLI flag, never from requests.
func LoadPolicyFile(path string) (*Policy, error) {
	// #nosec G304 -- operator-supplied path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("policy validation failed: %w", err)
	}
	return &p, nil
}

func (p *Policy) validate() error {
	if p.RateLimit.Limit < 0 {
		return fmt.Errorf("rate_limit.limit must not be negative")
	}
	if p.RateLimit.Window < 0 || p.Replay.Window < 0 || p.Replay.MaxDrift < 0 {
		return fmt.Errorf("guard windows must not be negative")
	}
	switch p.Replay.Mode {
	case "", "optional", "required", "off":
	default:
		return fmt.Errorf("replay.mode must be optional, required or off, got %q", p.Replay.Mode)
	}
	if p.Anomaly.HighFrequencyWindow < 0 || p.Anomaly.MultiIPWindow < 0 {
		return fmt.Errorf("anomaly windows must not be negative")
	}
	if p.Anomaly.HighFrequencyMin < 0 || p.Anomaly.MultiIPMax < 0 {
		return fmt.Errorf("anomaly thresholds must not be negative")
	}
	return nil
}

// applyGuard copies the non-zero guard fields onto base.
func (p *Policy) applyGuard(base pkgconfig.GuardConfig) pkgconfig.GuardConfig {
	if p.RateLimit.Limit > 0 {
		base.RateLimit.Limit = p.RateLimit.Limit
	}
	if p.RateLimit.Window > 0 {
		base.RateLimit.Window = p.RateLimit.Window
	}
	if p.Replay.Window > 0 {
		base.Replay.Window = p.Replay.Window
	}
	if p.Replay.MaxDrift > 0 {
		base.Replay.MaxDrift = p.Replay.MaxDrift
	}
	if p.Replay.Mode != "" {
		base.ReplayMode = p.Replay.Mode
	}
	return base
}

// applyAnomaly copies the non-zero anomaly fields onto base.
func (p *Policy) applyAnomaly(base anomaly.Config, schedule string) (anomaly.Config, string) {
	if p.Anomaly.HighFrequencyWindow > 0 {
		base.HighFrequencyWindow = p.Anomaly.HighFrequencyWindow
	}
	if p.Anomaly.HighFrequencyMin > 0 {
		base.HighFrequencyMin = p.Anomaly.HighFrequencyMin
	}
	if p.Anomaly.MultiIPWindow > 0 {
		base.MultiIPWindow = p.Anomaly.MultiIPWindow
	}
	if p.Anomaly.MultiIPMax > 0 {
		base.MultiIPMax = p.Anomaly.MultiIPMax
	}
	if p.Anomaly.Schedule != "" {
		schedule = p.Anomaly.Schedule
	}
	return base, schedule
}
