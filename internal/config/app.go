// Package config assembles the process configuration of the API server and
// the anomaly worker from the environment and an optional policy file.
package config

import (
	"fmt"
	"net/netip"
	"time"

	"activity-guard/internal/handler/http/middleware"
	"activity-guard/internal/resilience/circuitbreaker"
	"activity-guard/internal/usecase/anomaly"
	pkgconfig "activity-guard/pkg/config"
)

// MinJWTSecretLength is the shortest accepted HS256 signing secret.
const MinJWTSecretLength = 32

// DefaultAnomalySchedule runs the anomaly scan every minute.
const DefaultAnomalySchedule = "*/1 * * * *"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Config is the full process configuration.
type Config struct {
	Server ServerConfig

	JWTSecret string

	// DatabaseURL and RedisURL are optional. Empty selects the in-memory
	// event store and atomic store respectively.
	DatabaseURL string
	RedisURL    string

	// TrustedProxies limits which peers may set X-Forwarded-For and
	// X-Real-IP. Empty trusts every peer.
	TrustedProxies []netip.Prefix

	CORS middleware.CORSConfig

	Guard pkgconfig.GuardConfig

	Anomaly         anomaly.Config
	AnomalySchedule string

	RedisBreaker circuitbreaker.Config
	DBBreaker    circuitbreaker.Config
}

// Load reads the environment. When GUARD_POLICY_FILE is set its thresholds
// are applied first and environment variables override them.
func Load() (*Config, error) {
	jwtSecret, err := pkgconfig.RequireEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if err := ValidateJWTSecret(jwtSecret); err != nil {
		return nil, err
	}

	policy, err := loadPolicy()
	if err != nil {
		return nil, err
	}
	guardBase := pkgconfig.DefaultGuardConfig()
	if policy != nil {
		guardBase = policy.applyGuard(guardBase)
	}
	anomalyCfg, schedule := loadAnomaly(policy)

	guard, err := pkgconfig.LoadGuardConfig(guardBase)
	if err != nil {
		return nil, err
	}

	proxies, err := pkgconfig.ParseTrustedProxies(pkgconfig.GetEnvStringList("TRUSTED_PROXIES", nil))
	if err != nil {
		return nil, err
	}

	origins, err := middleware.ParseOrigins(pkgconfig.GetEnvStringList("CORS_ALLOWED_ORIGINS", nil))
	if err != nil {
		return nil, fmt.Errorf("CORS_ALLOWED_ORIGINS: %w", err)
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = origins
	cors.MaxAge = pkgconfig.GetEnvInt("CORS_MAX_AGE", cors.MaxAge)
	cors.AllowCredentials = pkgconfig.GetEnvBool("CORS_ALLOW_CREDENTIALS", cors.AllowCredentials)

	cfg := &Config{
		Server: ServerConfig{
			Port:            pkgconfig.GetEnvInt("PORT", 8080),
			ReadTimeout:     pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: pkgconfig.GetEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		JWTSecret:      jwtSecret,
		DatabaseURL:    pkgconfig.GetEnvString("DATABASE_URL", ""),
		RedisURL:       pkgconfig.GetEnvString("REDIS_URL", ""),
		TrustedProxies: proxies,
		CORS:           cors,
		Guard:          *guard,
		Anomaly:         anomalyCfg,
		AnomalySchedule: schedule,
		RedisBreaker:    loadBreaker("CB_REDIS", circuitbreaker.RedisConfig()),
		DBBreaker:       loadBreaker("CB_DB", circuitbreaker.DBConfig()),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT: %w", err)
	}
	if err := validateAnomaly(c.Anomaly, c.AnomalySchedule); err != nil {
		return err
	}
	return validateBreakers(c.RedisBreaker, c.DBBreaker)
}

// WorkerSettings is the part of the configuration the anomaly worker needs.
// Unlike Load it does not require JWT_SECRET.
type WorkerSettings struct {
	DatabaseURL     string
	Anomaly         anomaly.Config
	AnomalySchedule string
	DBBreaker       circuitbreaker.Config
}

// LoadWorker reads the worker settings, honouring GUARD_POLICY_FILE the same
// way Load does.
func LoadWorker() (*WorkerSettings, error) {
	policy, err := loadPolicy()
	if err != nil {
		return nil, err
	}
	anomalyCfg, schedule := loadAnomaly(policy)

	ws := &WorkerSettings{
		DatabaseURL:     pkgconfig.GetEnvString("DATABASE_URL", ""),
		Anomaly:         anomalyCfg,
		AnomalySchedule: schedule,
		DBBreaker:       loadBreaker("CB_DB", circuitbreaker.DBConfig()),
	}
	if ws.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the anomaly worker")
	}
	if err := validateAnomaly(ws.Anomaly, ws.AnomalySchedule); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateBreakers(ws.DBBreaker); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return ws, nil
}

// loadPolicy returns nil when GUARD_POLICY_FILE is unset.
func loadPolicy() (*Policy, error) {
	path := pkgconfig.GetEnvString("GUARD_POLICY_FILE", "")
	if path == "" {
		return nil, nil
	}
	return LoadPolicyFile(path)
}

func loadAnomaly(policy *Policy) (anomaly.Config, string) {
	base := anomaly.DefaultConfig()
	schedule := DefaultAnomalySchedule
	if policy != nil {
		base, schedule = policy.applyAnomaly(base, schedule)
	}
	return anomaly.Config{
		HighFrequencyWindow: pkgconfig.GetEnvDuration("ANOMALY_HIGH_FREQUENCY_WINDOW", base.HighFrequencyWindow),
		HighFrequencyMin:    pkgconfig.GetEnvInt("ANOMALY_HIGH_FREQUENCY_MIN", base.HighFrequencyMin),
		MultiIPWindow:       pkgconfig.GetEnvDuration("ANOMALY_MULTI_IP_WINDOW", base.MultiIPWindow),
		MultiIPMax:          pkgconfig.GetEnvInt("ANOMALY_MULTI_IP_MAX", base.MultiIPMax),
		QueryTimeout:        pkgconfig.GetEnvDuration("ANOMALY_QUERY_TIMEOUT", base.QueryTimeout),
	}, pkgconfig.GetEnvString("ANOMALY_CRON_SCHEDULE", schedule)
}

func validateAnomaly(cfg anomaly.Config, schedule string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := pkgconfig.ValidateCronSchedule(schedule); err != nil {
		return fmt.Errorf("ANOMALY_CRON_SCHEDULE: %w", err)
	}
	return nil
}

func validateBreakers(breakers ...circuitbreaker.Config) error {
	for _, cb := range breakers {
		if cb.FailureThreshold <= 0 || cb.FailureThreshold > 1 {
			return fmt.Errorf("circuit breaker %s: failure threshold must be in (0, 1], got %v", cb.Name, cb.FailureThreshold)
		}
		if cb.Timeout <= 0 {
			return fmt.Errorf("circuit breaker %s: timeout must be positive", cb.Name)
		}
	}
	return nil
}

// loadBreaker overlays <prefix>_MAX_REQUESTS, _INTERVAL, _TIMEOUT,
// _FAILURE_THRESHOLD and _MIN_REQUESTS on base.
func loadBreaker(prefix string, base circuitbreaker.Config) circuitbreaker.Config {
	cfg := base
	if v := pkgconfig.GetEnvInt(prefix+"_MAX_REQUESTS", int(base.MaxRequests)); v > 0 {
		cfg.MaxRequests = uint32(v)
	}
	cfg.Interval = pkgconfig.GetEnvDuration(prefix+"_INTERVAL", base.Interval)
	cfg.Timeout = pkgconfig.GetEnvDuration(prefix+"_TIMEOUT", base.Timeout)
	cfg.FailureThreshold = pkgconfig.GetEnvFloat(prefix+"_FAILURE_THRESHOLD", base.FailureThreshold)
	if v := pkgconfig.GetEnvInt(prefix+"_MIN_REQUESTS", int(base.MinRequests)); v > 0 {
		cfg.MinRequests = uint32(v)
	}
	return cfg
}
