package langserver

import (
	"log/slog"
	"time"

	"github.com/wagiedev/langserver-sdk-go/internal/config"
)

// Options configures the behavior of the language server client.
type Options = config.Options

// Process is the interface for a running language server subprocess.
// The default implementation spawns `<binary> --stdio`; custom
// implementations can be injected via WithSpawnFunc.
type Process = config.Process

// SpawnFunc creates a Process for a binary path and environment overrides.
type SpawnFunc = config.SpawnFunc

// OptionsFromEnv builds Options from LANGSERVER_* environment variables.
func OptionsFromEnv() (*Options, error) {
	return config.FromEnv()
}

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options and fills in defaults.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	options.ApplyDefaults()

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRequestTimeout sets the default timeout for SendRequest.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = timeout
	}
}

// WithHealthCheckInterval sets how often a status request is sent while
// connected.
func WithHealthCheckInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.HealthCheckInterval = interval
	}
}

// WithHealthCheckTimeout bounds each individual health check request.
func WithHealthCheckTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.HealthCheckTimeout = timeout
	}
}

// WithMaxReconnectAttempts sets the reconnect budget before the client
// enters the failed state.
func WithMaxReconnectAttempts(attempts int) Option {
	return func(o *Options) {
		o.MaxReconnectAttempts = attempts
	}
}

// WithBackoffSchedule replaces the reconnect delay table. Delays are
// indexed by attempt count and capped at the last entry.
func WithBackoffSchedule(schedule []time.Duration) Option {
	return func(o *Options) {
		o.BackoffSchedule = schedule
	}
}

// WithSpawnFunc injects a custom process factory. Use this for testing or
// alternative launch mechanisms.
func WithSpawnFunc(spawn SpawnFunc) Option {
	return func(o *Options) {
		o.Spawn = spawn
	}
}
