package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	opts := Default()
	assert.Equal(t, 15*time.Second, opts.CleanupTimeout)
	assert.Equal(t, 50*time.Millisecond, opts.PollInterval)
	assert.Equal(t, "warn", opts.LogLevel)
	assert.False(t, opts.MetricsEnabled)
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	opts, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TESTHOST_CLEANUP_TIMEOUT", "3s")
	t.Setenv("TESTHOST_LOG_LEVEL", "debug")
	t.Setenv("TESTHOST_METRICS_ENABLED", "true")

	opts, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, opts.CleanupTimeout)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.True(t, opts.MetricsEnabled)
	assert.Equal(t, 50*time.Millisecond, opts.PollInterval)
}

func TestLoad_NonPositiveDurationsFallBack(t *testing.T) {
	t.Setenv("TESTHOST_CLEANUP_TIMEOUT", "0s")
	t.Setenv("TESTHOST_POLL_INTERVAL", "-1s")

	opts, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, opts.CleanupTimeout)
	assert.Equal(t, 50*time.Millisecond, opts.PollInterval)
}
