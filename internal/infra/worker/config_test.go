package worker

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 30*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 9091, cfg.HealthPort)
	require.NoError(t, cfg.Validate())
}

func TestWorkerConfig_Validate(t *testing.T) {
	cfg := WorkerConfig{Timezone: "Mars/Olympus", ScanTimeout: 0, HealthPort: 80}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
	assert.Contains(t, err.Error(), "scan timeout")
	assert.Contains(t, err.Error(), "health port")
}

func TestWorkerConfig_Location(t *testing.T) {
	assert.Equal(t, "Asia/Tokyo", WorkerConfig{Timezone: "Asia/Tokyo"}.Location().String())
	assert.Equal(t, time.UTC, WorkerConfig{Timezone: "nowhere"}.Location())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		t.Setenv("WORKER_TIMEZONE", "Europe/Berlin")
		t.Setenv("ANOMALY_SCAN_TIMEOUT", "10s")
		t.Setenv("WORKER_HEALTH_PORT", "9191")
		metrics := NewWorkerMetrics(prometheus.NewRegistry())

		cfg := LoadConfigFromEnv(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), metrics)

		assert.Equal(t, WorkerConfig{Timezone: "Europe/Berlin", ScanTimeout: 10 * time.Second, HealthPort: 9191}, cfg)
		assert.Equal(t, 0.0, testutil.ToFloat64(metrics.FallbackActive))
		assert.Positive(t, testutil.ToFloat64(metrics.ConfigLoadTimestamp))
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		t.Setenv("WORKER_TIMEZONE", "Invalid/Zone")
		t.Setenv("ANOMALY_SCAN_TIMEOUT", "1h")
		t.Setenv("WORKER_HEALTH_PORT", "abc")
		metrics := NewWorkerMetrics(prometheus.NewRegistry())
		var buf bytes.Buffer

		cfg := LoadConfigFromEnv(slog.New(slog.NewTextHandler(&buf, nil)), metrics)

		assert.Equal(t, DefaultConfig(), cfg)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbackActive))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("timezone")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("scan_timeout")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("health_port")))
		assert.Contains(t, buf.String(), "WORKER_TIMEZONE='Invalid/Zone'")
	})

	t.Run("nil metrics", func(t *testing.T) {
		t.Setenv("WORKER_HEALTH_PORT", "1")
		cfg := LoadConfigFromEnv(nil, nil)
		assert.Equal(t, 9091, cfg.HealthPort)
	})
}
