package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	options, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, DefaultRequestTimeout, options.RequestTimeout)
	require.Equal(t, DefaultHealthCheckInterval, options.HealthCheckInterval)
	require.Equal(t, DefaultHealthCheckTimeout, options.HealthCheckTimeout)
	require.Equal(t, DefaultMaxReconnectAttempts, options.MaxReconnectAttempts)
	require.Equal(t, DefaultBackoffSchedule, options.BackoffSchedule)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LANGSERVER_BINARY_PATH", "/opt/ls/server")
	t.Setenv("LANGSERVER_REQUEST_TIMEOUT", "15s")
	t.Setenv("LANGSERVER_MAX_RECONNECT_ATTEMPTS", "3")

	options, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, "/opt/ls/server", options.BinaryPath)
	require.Equal(t, 15*time.Second, options.RequestTimeout)
	require.Equal(t, 3, options.MaxReconnectAttempts)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	options := &Options{
		RequestTimeout:  time.Second,
		BackoffSchedule: []time.Duration{time.Millisecond},
	}

	options.ApplyDefaults()

	require.Equal(t, time.Second, options.RequestTimeout)
	require.Equal(t, []time.Duration{time.Millisecond}, options.BackoffSchedule)
	require.Equal(t, DefaultMaxReconnectAttempts, options.MaxReconnectAttempts)
}
