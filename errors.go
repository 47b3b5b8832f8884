package langserver

import "github.com/wagiedev/langserver-sdk-go/internal/errors"

// Re-export error types from internal package

// SpawnError indicates the language server process could not be started.
type SpawnError = errors.SpawnError

// ProcessExitError indicates the language server process exited unexpectedly.
type ProcessExitError = errors.ProcessExitError

// RPCError indicates the server answered a request with an error payload.
type RPCError = errors.RPCError

// SDKError is the base interface for all SDK errors.
type SDKError = errors.SDKError

// Re-export sentinel errors from internal package.
var (
	// ErrClientNotConnected indicates the client has no running server process.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyStarted indicates Start was called on a running client.
	ErrClientAlreadyStarted = errors.ErrClientAlreadyStarted

	// ErrClientShutdown indicates the client was shut down while the
	// operation was still pending.
	ErrClientShutdown = errors.ErrClientShutdown

	// ErrRequestTimeout indicates a request timed out waiting for its response.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrTransportNotConnected indicates no transport is attached.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrReconnectExhausted indicates the reconnect attempt limit was reached.
	ErrReconnectExhausted = errors.ErrReconnectExhausted
)
