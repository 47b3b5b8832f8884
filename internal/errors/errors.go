package errors

import (
	"errors"
	"fmt"
)

// SDKError is the base interface for all SDK errors.
type SDKError interface {
	error
	IsLangServerSDKError() bool
}

// Compile-time verification that all error types implement SDKError.
var (
	_ SDKError = (*SpawnError)(nil)
	_ SDKError = (*ProcessExitError)(nil)
	_ SDKError = (*RPCError)(nil)
	_ SDKError = (*FrameDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientNotConnected indicates the client has no running server process.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyStarted indicates Start was called on a running client.
	ErrClientAlreadyStarted = errors.New("client already started")

	// ErrClientShutdown indicates the client was shut down while the
	// operation was still pending.
	ErrClientShutdown = errors.New("client shut down")

	// ErrRequestTimeout indicates a request timed out waiting for its response.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrTransportNotConnected indicates no transport is attached, so there
	// is nothing to write messages to.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrReconnectExhausted indicates the reconnect attempt limit was reached.
	// The client is in the failed state and requires a fresh Start.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// SpawnError indicates the language server process could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn language server %q: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsLangServerSDKError implements SDKError.
func (e *SpawnError) IsLangServerSDKError() bool { return true }

// ProcessExitError indicates the language server process exited unexpectedly.
// Every request pending at the time of the exit is rejected with this error.
type ProcessExitError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("language server exited (code %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("language server exited (code %d)", e.ExitCode)
}

// IsLangServerSDKError implements SDKError.
func (e *ProcessExitError) IsLangServerSDKError() bool { return true }

// RPCError indicates the server answered a request with an error payload.
// Only the request that produced it is rejected.
type RPCError struct {
	Method  string
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("rpc error on %s (code %d): %s", e.Method, e.Code, e.Message)
	}

	return fmt.Sprintf("rpc error (code %d): %s", e.Code, e.Message)
}

// IsLangServerSDKError implements SDKError.
func (e *RPCError) IsLangServerSDKError() bool { return true }

// FrameDecodeError indicates a frame body failed to parse as JSON.
// The framing layer recovers locally by discarding the offending frame;
// this type exists for logging and tests and never reaches the client.
type FrameDecodeError struct {
	RawData string
	Err     error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame body: %v", e.Err)
}

func (e *FrameDecodeError) Unwrap() error {
	return e.Err
}

// IsLangServerSDKError implements SDKError.
func (e *FrameDecodeError) IsLangServerSDKError() bool { return true }
