package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REALTIME_BROKER", "")
	t.Setenv("ADVISORY_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, BrokerLocal, cfg.Realtime.Broker)
	assert.Equal(t, 5*time.Second, cfg.Advisory.Timeout())
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxBytes)
	assert.True(t, cfg.Assignment.FallbackAny)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADVISORY_ENABLED", "true")
	t.Setenv("ADVISORY_TIMEOUT_SECONDS", "2")
	t.Setenv("REALTIME_SEND_BUFFER", "8")
	t.Setenv("ASSIGN_FALLBACK_ANY", "false")
	t.Setenv("REALTIME_BROKER", "local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Advisory.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Advisory.Timeout())
	assert.Equal(t, 8, cfg.Realtime.SendBuffer)
	assert.False(t, cfg.Assignment.FallbackAny)
}

func TestLoadRejectsUnknownBroker(t *testing.T) {
	t.Setenv("REALTIME_BROKER", "kafka")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRedisBrokerNeedsAddr(t *testing.T) {
	t.Setenv("REALTIME_BROKER", "redis")
	t.Setenv("REDIS_ADDR", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvAsIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
}
