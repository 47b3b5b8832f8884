// Package config provides configuration types for the language server SDK.
package config

import "context"

// Process defines the interface for a running language server subprocess.
// Implement this to inject custom processes for testing or alternative
// launch mechanisms; the default implementation spawns `<binary> --stdio`.
type Process interface {
	// Start spawns the process and begins pumping its output stream.
	Start(ctx context.Context) error

	// Messages returns the channel of decoded messages from the server.
	// The channel is closed when the output stream ends.
	Messages() <-chan map[string]any

	// Exits delivers the process exit code exactly once, then closes.
	Exits() <-chan int

	// WriteMessage frames and writes a message to the server's input stream.
	// It must be safe for concurrent use.
	WriteMessage(ctx context.Context, msg any) error

	// Kill forcefully terminates the process. Safe to call multiple times.
	Kill() error
}

// SpawnFunc creates a Process for the given binary path and environment
// overrides. The default spawns a real subprocess; tests substitute fakes.
type SpawnFunc func(path string, env map[string]string) Process
