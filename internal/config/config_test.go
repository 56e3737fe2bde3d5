package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEGENRUN_VENUE_API_KEY", "test-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Scheduler.MonitorInterval.Std())
	assert.Equal(t, 4*time.Hour, cfg.Scheduler.OptimizeInterval.Std())
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.PerformanceInterval.Std())

	assert.Equal(t, 60.0, cfg.Scoring.MinScore)
	assert.Equal(t, 50_000.0, cfg.Scoring.MinLiquidity)
	assert.Equal(t, 100_000.0, cfg.Scoring.MinVolume24h)

	assert.Equal(t, 50, cfg.Execution.BaseSlippageBps)
	assert.Equal(t, 500, cfg.Execution.MaxSlippageBps)

	assert.Equal(t, 300, cfg.Rebalance.DriftThresholdBps)
	assert.Equal(t, 5, cfg.Rebalance.MaxAttempts)

	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, "test-key", cfg.Venue.APIKey)
}

func TestLoadParsesDurations(t *testing.T) {
	t.Setenv("DEGENRUN_VENUE_API_KEY", "test-key")
	path := writeConfig(t, `
scheduler:
  monitor_interval: 90s
  optimize_interval: 2h
cache:
  ttl: 15m
rebalance:
  backoff_base: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.MonitorInterval.Std())
	assert.Equal(t, 2*time.Hour, cfg.Scheduler.OptimizeInterval.Std())
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Rebalance.BackoffBase.Std())
	// Unset sections keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.PerformanceInterval.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DEGENRUN_VENUE_API_KEY", "test-key")
	path := writeConfig(t, "scheduler:\n  monitor_interval: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

// A missing venue API key is a fatal misconfiguration, not a degraded mode.
func TestLoadMissingAPIKeyFails(t *testing.T) {
	t.Setenv("DEGENRUN_VENUE_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue api key")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEGENRUN_VENUE_API_KEY", "env-key")
	t.Setenv("DEGENRUN_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("DEGENRUN_POSTGRES_DSN", "postgres://agent@db/degenrun")

	path := writeConfig(t, `
venue:
  api_key: file-key
redis:
  addr: localhost:6379
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Venue.APIKey)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "postgres://agent@db/degenrun", cfg.Postgres.DSN)
}

func TestValidateCrossFields(t *testing.T) {
	t.Setenv("DEGENRUN_VENUE_API_KEY", "test-key")

	t.Run("max slippage below base", func(t *testing.T) {
		path := writeConfig(t, "execution:\n  base_slippage_bps: 600\n  max_slippage_bps: 500\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_slippage_bps")
	})

	t.Run("zero rebalance attempts", func(t *testing.T) {
		path := writeConfig(t, "rebalance:\n  max_attempts: 0\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_attempts")
	})
}
