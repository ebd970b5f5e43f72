package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, 5, cfg.Guard.RateLimit.Limit)
	assert.Equal(t, 10*time.Second, cfg.Guard.RateLimit.Window)
	assert.Equal(t, "optional", cfg.Guard.ReplayMode)
	assert.Equal(t, 20, cfg.Anomaly.HighFrequencyMin)
	assert.Equal(t, 2, cfg.Anomaly.MultiIPMax)
	assert.Equal(t, DefaultAnomalySchedule, cfg.AnomalySchedule)
	assert.Equal(t, "redis", cfg.RedisBreaker.Name)
	assert.Equal(t, "database", cfg.DBBreaker.Name)
}

func TestLoad_JWTSecret(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("too short", func(t *testing.T) {
		t.Setenv("JWT_SECRET", strings.Repeat("x", MinJWTSecretLength-1))
		_, err := Load()
		assert.ErrorContains(t, err, "at least 32 characters")
	})
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,127.0.0.1")
	t.Setenv("ANOMALY_HIGH_FREQUENCY_MIN", "50")
	t.Setenv("CB_REDIS_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Len(t, cfg.TrustedProxies, 2)
	assert.Equal(t, 50, cfg.Anomaly.HighFrequencyMin)
	assert.Equal(t, 3*time.Second, cfg.RedisBreaker.Timeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "port out of range", key: "PORT", val: "70000"},
		{name: "bad proxy", key: "TRUSTED_PROXIES", val: "not-an-ip"},
		{name: "bad replay mode", key: "GUARD_REPLAY_MODE", val: "sometimes"},
		{name: "zero anomaly threshold", key: "ANOMALY_MULTI_IP_MAX", val: "0"},
		{name: "breaker threshold above one", key: "CB_DB_FAILURE_THRESHOLD", val: "1.5"},
		{name: "bad cron schedule", key: "ANOMALY_CRON_SCHEDULE", val: "every minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_PolicyFile(t *testing.T) {
	path := writePolicy(t, `
rate_limit:
  limit: 3
  window: 30s
replay:
  mode: required
anomaly:
  high_frequency_min: 40
  schedule: "*/5 * * * *"
`)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("GUARD_POLICY_FILE", path)
	// Environment wins over the file.
	t.Setenv("GUARD_RATE_LIMIT", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Guard.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, cfg.Guard.RateLimit.Window)
	assert.Equal(t, "required", cfg.Guard.ReplayMode)
	assert.Equal(t, 3*time.Second, cfg.Guard.Replay.Window)
	assert.Equal(t, 40, cfg.Anomaly.HighFrequencyMin)
	assert.Equal(t, "*/5 * * * *", cfg.AnomalySchedule)
}

func TestLoadPolicyFile(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		p, err := LoadPolicyFile(writePolicy(t, ""))
		require.NoError(t, err)
		assert.Zero(t, p.RateLimit.Limit)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadPolicyFile(writePolicy(t, "rate_limit:\n  burst: 3\n"))
		assert.ErrorContains(t, err, "failed to parse policy file")
	})

	t.Run("bad mode", func(t *testing.T) {
		_, err := LoadPolicyFile(writePolicy(t, "replay:\n  mode: maybe\n"))
		assert.ErrorContains(t, err, "replay.mode")
	})

	t.Run("negative threshold", func(t *testing.T) {
		_, err := LoadPolicyFile(writePolicy(t, "anomaly:\n  multi_ip_max: -1\n"))
		assert.ErrorContains(t, err, "policy validation failed")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read policy file")
	})
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	t.Run("valid", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://dash.example.com")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.com"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, 86400, cfg.CORS.MaxAge)
		assert.True(t, cfg.CORS.AllowCredentials)
	})

	t.Run("credentials disabled", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://dash.example.com")
		t.Setenv("CORS_ALLOW_CREDENTIALS", "false")
		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.CORS.AllowCredentials)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://dash.example.com/app")
		_, err := Load()
		assert.ErrorContains(t, err, "CORS_ALLOWED_ORIGINS")
	})
}

func TestLoad_WeakJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secretsecretpasswordchangeme123456")
	_, err := Load()
	assert.ErrorContains(t, err, "placeholder")
}

func TestLoadWorker(t *testing.T) {
	t.Run("requires database", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := LoadWorker()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("no jwt secret needed", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("DATABASE_URL", "postgres://localhost/guard")
		t.Setenv("GUARD_POLICY_FILE", writePolicy(t, "anomaly:\n  multi_ip_max: 4\n"))
		t.Setenv("ANOMALY_CRON_SCHEDULE", "*/2 * * * *")

		ws, err := LoadWorker()
		require.NoError(t, err)
		assert.Equal(t, 4, ws.Anomaly.MultiIPMax)
		assert.Equal(t, 20, ws.Anomaly.HighFrequencyMin)
		assert.Equal(t, "*/2 * * * *", ws.AnomalySchedule)
		assert.Equal(t, "database", ws.DBBreaker.Name)
	})

	t.Run("bad schedule", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/guard")
		t.Setenv("ANOMALY_CRON_SCHEDULE", "whenever")
		_, err := LoadWorker()
		assert.ErrorContains(t, err, "ANOMALY_CRON_SCHEDULE")
	})
}
