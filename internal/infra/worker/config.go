package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	pkgconfig "activity-guard/pkg/config"
)

// WorkerConfig holds the operational settings of the anomaly worker.
// The scan schedule itself comes from ANOMALY_CRON_SCHEDULE in the
// application config so that the API and the worker agree on it.
type WorkerConfig struct {
	// Timezone is the IANA zone the cron schedule is evaluated in.
	// Default: "UTC"
	Timezone string

	// ScanTimeout bounds a single scan. Range: 1s-5m.
	// Default: 30s
	ScanTimeout time.Duration

	// HealthPort serves /health, /health/ready and /metrics. Range: 1024-65535.
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		Timezone:    "UTC",
		ScanTimeout: 30 * time.Second,
		HealthPort:  9091,
	}
}

func validateScanTimeout(d time.Duration) error {
	return pkgconfig.ValidateDurationRange(d, time.Second, 5*time.Minute)
}

func validateHealthPort(p int) error {
	return pkgconfig.ValidateIntRange(p, 1024, 65535)
}

// Validate reports every invalid field at once.
func (c WorkerConfig) Validate() error {
	var errs []error
	if err := pkgconfig.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := validateScanTimeout(c.ScanTimeout); err != nil {
		errs = append(errs, fmt.Errorf("scan timeout: %w", err))
	}
	if err := validateHealthPort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to UTC.
func (c WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfigFromEnv reads the worker settings fail-open: an invalid value
// is replaced by its default, logged, and counted, and the worker keeps
// starting.
//
// Environment variables:
//   - WORKER_TIMEZONE
//   - ANOMALY_SCAN_TIMEOUT
//   - WORKER_HEALTH_PORT
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) WorkerConfig {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()
	anyFallback := false

	note := func(field, warning string) {
		anyFallback = true
		if metrics != nil {
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field)
		}
		logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}

	tz := pkgconfig.LoadWithFallback("WORKER_TIMEZONE", cfg.Timezone, pkgconfig.ParseString, pkgconfig.ValidateTimezone)
	cfg.Timezone = tz.Value
	if tz.FallbackApplied {
		note("timezone", tz.Warning)
	}

	timeout := pkgconfig.LoadWithFallback("ANOMALY_SCAN_TIMEOUT", cfg.ScanTimeout, pkgconfig.ParseDuration, validateScanTimeout)
	cfg.ScanTimeout = timeout.Value
	if timeout.FallbackApplied {
		note("scan_timeout", timeout.Warning)
	}

	port := pkgconfig.LoadWithFallback("WORKER_HEALTH_PORT", cfg.HealthPort, pkgconfig.ParseInt, validateHealthPort)
	cfg.HealthPort = port.Value
	if port.FallbackApplied {
		note("health_port", port.Warning)
	}

	if metrics != nil {
		metrics.SetFallbackActive(anyFallback)
		metrics.RecordLoadTimestamp()
	}
	return cfg
}
