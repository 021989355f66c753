package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.DB.URL, "postgres://")
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, "migrations", cfg.DB.MigrationsDir)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, "nexus", cfg.Influx.Database)
	assert.Equal(t, 30, cfg.Engine.FastIntervalSec)
	assert.Equal(t, 120, cfg.Engine.StagedIntervalSec)
	assert.Equal(t, 15*time.Minute, cfg.Engine.CommandLookback)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.1, cfg.Tracing.SampleRatio)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://u:p@db:5432/x")
	t.Setenv("ENGINE_FAST_INTERVAL_SEC", "15")
	t.Setenv("INFLUX_WRITES_PER_SEC", "12.5")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("ALERT_SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DB.URL)
	assert.Equal(t, 15, cfg.Engine.FastIntervalSec)
	assert.Equal(t, 12.5, cfg.Influx.WritesPerSecond)
	assert.False(t, cfg.Tracing.Insecure)
	assert.Equal(t, "https://hooks.slack.test/x", cfg.Alerts.SlackWebhookURL)
}

func TestLoad_InvalidIntervalRejected(t *testing.T) {
	t.Setenv("ENGINE_FAST_INTERVAL_SEC", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intervals")
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
}
