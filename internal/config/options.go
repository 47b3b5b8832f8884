package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joeshaw/envdecode"
)

// Default values applied by ApplyDefaults.
var (
	// DefaultBackoffSchedule is the escalating reconnect delay table.
	// The delay for attempt n is the entry at min(n, len-1); it never
	// exceeds the last entry.
	DefaultBackoffSchedule = []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
	}
)

const (
	// DefaultRequestTimeout bounds how long a request waits for its response.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultHealthCheckInterval is the period of the connected health check.
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultHealthCheckTimeout bounds each individual health check request.
	DefaultHealthCheckTimeout = 5 * time.Second

	// DefaultMaxReconnectAttempts is the number of reconnect attempts made
	// before the client gives up and enters the failed state.
	DefaultMaxReconnectAttempts = 5
)

// Options configures the behavior of the language server client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// BinaryPath is an optional default language server binary path,
	// mostly useful together with FromEnv. Start's explicit path argument
	// always wins.
	BinaryPath string `env:"LANGSERVER_BINARY_PATH"`

	// RequestTimeout is the default timeout for SendRequest.
	RequestTimeout time.Duration `env:"LANGSERVER_REQUEST_TIMEOUT,default=120s"`

	// HealthCheckInterval is how often a status request is sent while connected.
	HealthCheckInterval time.Duration `env:"LANGSERVER_HEALTH_INTERVAL,default=30s"`

	// HealthCheckTimeout bounds each individual health check request.
	HealthCheckTimeout time.Duration `env:"LANGSERVER_HEALTH_TIMEOUT,default=5s"`

	// MaxReconnectAttempts is the reconnect budget before the client enters
	// the failed state. Reset to zero on every successful connection.
	MaxReconnectAttempts int `env:"LANGSERVER_MAX_RECONNECT_ATTEMPTS,default=5"`

	// BackoffSchedule is the reconnect delay table. Delays are indexed by
	// attempt count and capped at the last entry.
	BackoffSchedule []time.Duration

	// Spawn creates the server process. If nil, a real subprocess is
	// spawned. Override for testing or custom launch mechanisms.
	Spawn SpawnFunc
}

// ApplyDefaults fills in zero-valued fields with their defaults.
func (o *Options) ApplyDefaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}

	if o.HealthCheckInterval <= 0 {
		o.HealthCheckInterval = DefaultHealthCheckInterval
	}

	if o.HealthCheckTimeout <= 0 {
		o.HealthCheckTimeout = DefaultHealthCheckTimeout
	}

	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}

	if len(o.BackoffSchedule) == 0 {
		o.BackoffSchedule = DefaultBackoffSchedule
	}
}

// FromEnv builds Options from LANGSERVER_* environment variables.
func FromEnv() (*Options, error) {
	options := &Options{}

	if err := envdecode.Decode(options); err != nil {
		return nil, fmt.Errorf("decode options from environment: %w", err)
	}

	options.ApplyDefaults()

	return options, nil
}
