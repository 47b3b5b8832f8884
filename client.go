package langserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/langserver-sdk-go/internal/config"
	"github.com/wagiedev/langserver-sdk-go/internal/errors"
	"github.com/wagiedev/langserver-sdk-go/internal/protocol"
	"github.com/wagiedev/langserver-sdk-go/internal/subprocess"
)

// State is the connection state of a Client. Exactly one value holds at a
// time; every transition is observable via OnConnectionStateChange.
type State string

const (
	// StateDisconnected means no server process is running and no reconnect
	// is scheduled.
	StateDisconnected State = "disconnected"

	// StateConnecting means the initial process spawn is underway.
	StateConnecting State = "connecting"

	// StateConnected means the handshake collaborator confirmed readiness
	// via MarkConnected.
	StateConnected State = "connected"

	// StateReconnecting means a crash was detected and a respawn is
	// scheduled or in progress.
	StateReconnecting State = "reconnecting"

	// StateFailed means the reconnect budget is exhausted. Terminal until
	// the next explicit Start.
	StateFailed State = "failed"
)

// healthCheckMethod is the lightweight status request sent while connected.
const healthCheckMethod = "checkStatus"

// ServerRequestHandler is invoked for every inbound server-initiated
// request. The handler must eventually answer via SendResponse with the
// same id.
type ServerRequestHandler = protocol.ServerRequestHandler

// ProgressCallback receives the value of one $/progress notification.
type ProgressCallback = protocol.ProgressCallback

// Client is a resilient JSON-RPC client for a child-process language
// server. It owns the process lifecycle, the request/response correlation
// table, progress routing, a periodic health check, and an exponential
// backoff reconnection state machine.
//
// A Client is reusable: after Shutdown (or after entering the failed
// state), Start may be called again.
type Client struct {
	log        *slog.Logger
	options    *Options
	controller *protocol.Controller
	events     *emitter

	stateMu sync.Mutex
	state   State

	// mu guards process ownership and reconnection bookkeeping.
	mu             sync.Mutex
	proc           config.Process
	eg             *errgroup.Group
	binaryPath     string
	env            map[string]string
	shuttingDown   bool
	attempts       int
	reconnectTimer *time.Timer
	healthStop     chan struct{}
}

// New creates a client. The client owns no process until Start is called.
func New(opts ...Option) *Client {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	c := &Client{
		log:        log.With("component", "client"),
		options:    options,
		controller: protocol.NewController(log),
		events:     newEmitter(),
		state:      StateDisconnected,
	}

	c.controller.OnFeatureFlags(c.events.emitFeatureFlags)

	return c
}

// Start spawns the language server at binaryPath with the fixed --stdio
// invocation. The env map is overlaid on the ambient environment. The
// connection parameters are retained for automatic reconnects.
//
// Start does not wait for the server to become ready: an external
// collaborator performs the initialize handshake with SendRequest and then
// calls MarkConnected.
func (c *Client) Start(ctx context.Context, binaryPath string, env map[string]string) error {
	c.mu.Lock()

	if c.proc != nil {
		c.mu.Unlock()

		return errors.ErrClientAlreadyStarted
	}

	c.binaryPath = binaryPath
	c.env = env
	c.shuttingDown = false
	c.attempts = 0
	c.stopReconnectTimerLocked()

	c.mu.Unlock()

	c.setState(StateConnecting)

	c.mu.Lock()
	err := c.spawnLocked(ctx)
	c.mu.Unlock()

	if err != nil {
		c.setState(StateDisconnected)

		return err
	}

	return nil
}

// MarkConnected records that the initialization handshake completed.
//
// This resets the reconnect attempt counter, transitions to connected, and
// starts the periodic health check. It is called by the external handshake
// collaborator, not by the client itself.
func (c *Client) MarkConnected() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	c.setState(StateConnected)
	c.startHealthCheck()
}

// SendRequest sends a request and blocks until its response arrives or the
// default request timeout expires. Concurrent calls get distinct, strictly
// increasing ids; arbitrarily many requests may be in flight.
func (c *Client) SendRequest(ctx context.Context, method string, params any) (map[string]any, error) {
	return c.controller.SendRequest(ctx, method, params, c.options.RequestTimeout)
}

// SendRequestWithTimeout is SendRequest with an explicit timeout.
func (c *Client) SendRequestWithTimeout(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (map[string]any, error) {
	return c.controller.SendRequest(ctx, method, params, timeout)
}

// SendNotification sends a fire-and-forget notification.
func (c *Client) SendNotification(ctx context.Context, method string, params any) error {
	return c.controller.SendNotification(ctx, method, params)
}

// SendResponse answers a server-initiated request. The id must be the one
// the server-request handler received.
func (c *Client) SendResponse(ctx context.Context, id int64, result any) error {
	return c.controller.SendResponse(ctx, id, result)
}

// OnServerRequest registers the single handler for server-initiated
// requests. Re-registering replaces the previous handler.
func (c *Client) OnServerRequest(handler ServerRequestHandler) {
	c.controller.OnServerRequest(handler)
}

// RegisterProgressListener routes $/progress notifications for token to cb.
// Listeners survive reconnects; only Shutdown clears them.
func (c *Client) RegisterProgressListener(token string, cb ProgressCallback) {
	c.controller.RegisterProgressListener(token, cb)
}

// RemoveProgressListener removes the listener for token, if any.
func (c *Client) RemoveProgressListener(token string) {
	c.controller.RemoveProgressListener(token)
}

// FeatureFlags returns a copy of the most recently pushed feature flag map.
func (c *Client) FeatureFlags() map[string]any {
	return c.controller.FeatureFlags()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	return c.state
}

// OnConnectionStateChange subscribes to connection state transitions.
func (c *Client) OnConnectionStateChange(fn func(State)) {
	c.events.onStateChange(fn)
}

// OnExit subscribes to process exit events, which carry the exit code.
func (c *Client) OnExit(fn func(code int)) {
	c.events.onExit(fn)
}

// OnReconnecting subscribes to reconnect events. Each event means a fresh
// process was spawned and the initialization handshake must be redone.
func (c *Client) OnReconnecting(fn func()) {
	c.events.onReconnecting(fn)
}

// OnFeatureFlags subscribes to feature flag updates pushed by the server.
func (c *Client) OnFeatureFlags(fn func(map[string]any)) {
	c.events.onFeatureFlags(fn)
}

// Shutdown terminates the client: it suppresses any pending or future
// reconnect, stops the health check, rejects every pending request with
// ErrClientShutdown, clears progress listeners, kills the process, and
// transitions to disconnected. Safe to call multiple times.
func (c *Client) Shutdown() error {
	c.mu.Lock()

	c.shuttingDown = true
	c.stopReconnectTimerLocked()

	proc := c.proc
	c.proc = nil
	eg := c.eg
	c.eg = nil

	c.mu.Unlock()

	c.stopHealthCheck()

	c.controller.RejectAll(errors.ErrClientShutdown)
	c.controller.ClearProgressListeners()
	c.controller.Detach()

	var killErr error

	if proc != nil {
		c.log.Info("Shutting down language server")

		killErr = proc.Kill()
	}

	if eg != nil {
		_ = eg.Wait()
	}

	c.setState(StateDisconnected)

	return killErr
}

// spawnLocked creates and starts a fresh process/transport pair and wires
// its pumps. Caller must hold c.mu.
func (c *Client) spawnLocked(ctx context.Context) error {
	var proc config.Process

	if c.options.Spawn != nil {
		proc = c.options.Spawn(c.binaryPath, c.env)
	} else {
		proc = subprocess.New(c.log, c.binaryPath, c.env)
	}

	if err := proc.Start(ctx); err != nil {
		return err
	}

	c.proc = proc
	c.controller.Attach(proc)

	eg := &errgroup.Group{}
	c.eg = eg

	eg.Go(func() error {
		c.readPump(proc)

		return nil
	})

	eg.Go(func() error {
		c.watchExit(proc)

		return nil
	})

	return nil
}

// readPump dispatches every decoded message in arrival order.
func (c *Client) readPump(proc config.Process) {
	for msg := range proc.Messages() {
		c.controller.Dispatch(msg)
	}
}

// watchExit waits for the process to terminate and drives the crash and
// clean-exit paths.
func (c *Client) watchExit(proc config.Process) {
	code, ok := <-proc.Exits()
	if !ok {
		return
	}

	c.mu.Lock()

	if c.proc != proc {
		// A newer connection already replaced this process; its exit was
		// initiated by us.
		c.mu.Unlock()

		return
	}

	c.proc = nil
	shuttingDown := c.shuttingDown

	c.mu.Unlock()

	c.log.Info("Language server exited", "exit_code", code)
	c.events.emitExit(code)

	if shuttingDown {
		return
	}

	c.stopHealthCheck()

	if code == 0 {
		// Clean exit is treated as externally intended; no reconnect.
		c.setState(StateDisconnected)

		return
	}

	exitErr := &errors.ProcessExitError{ExitCode: code}
	if tailer, ok := proc.(interface{ StderrTail() string }); ok {
		exitErr.Stderr = tailer.StderrTail()
	}

	c.controller.RejectAll(exitErr)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next attempt, or enters
// the failed state once the attempt budget is spent.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()

	if c.shuttingDown {
		c.mu.Unlock()

		return
	}

	if c.attempts >= c.options.MaxReconnectAttempts {
		c.mu.Unlock()

		c.log.Error("Reconnect attempts exhausted, giving up",
			"attempts", c.options.MaxReconnectAttempts)

		c.controller.Detach()
		c.controller.RejectAll(errors.ErrReconnectExhausted)
		c.setState(StateFailed)

		return
	}

	schedule := c.options.BackoffSchedule
	delay := schedule[min(c.attempts, len(schedule)-1)]
	c.attempts++
	attempt := c.attempts

	c.reconnectTimer = time.AfterFunc(delay, c.attemptReconnect)

	c.mu.Unlock()

	c.log.Info("Scheduling reconnect", "attempt", attempt, "delay", delay)
	c.setState(StateReconnecting)
}

// attemptReconnect respawns with the originally stored path and env. Runs
// on the backoff timer.
func (c *Client) attemptReconnect() {
	c.mu.Lock()

	c.reconnectTimer = nil

	if c.shuttingDown {
		c.mu.Unlock()

		return
	}

	c.log.Info("Attempting reconnect", "path", c.binaryPath)

	err := c.spawnLocked(context.Background())

	c.mu.Unlock()

	if err != nil {
		c.log.Error("Reconnect spawn failed", "error", err)
		c.scheduleReconnect()

		return
	}

	// Collaborators listen for this to redo the initialize handshake.
	c.events.emitReconnecting()
}

// startHealthCheck launches the periodic status request loop. No-op if one
// is already running.
func (c *Client) startHealthCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthStop != nil {
		return
	}

	stop := make(chan struct{})
	c.healthStop = stop

	go c.healthLoop(stop)
}

func (c *Client) stopHealthCheck() {
	c.mu.Lock()
	stop := c.healthStop
	c.healthStop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

// healthLoop sends a lightweight status request every interval. Failures
// are logged but never drive reconnection; only process exit does that.
func (c *Client) healthLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.options.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, err := c.controller.SendRequest(
				context.Background(), healthCheckMethod, nil, c.options.HealthCheckTimeout)
			if err != nil {
				c.log.Warn("Health check failed", "error", err)
			}

		case <-stop:
			return
		}
	}
}

// stopReconnectTimerLocked cancels a pending reconnect timer. Caller must
// hold c.mu.
func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// setState transitions the connection state and notifies subscribers.
// Never called while holding c.mu, so subscribers may call back into the
// client.
func (c *Client) setState(state State) {
	c.stateMu.Lock()

	if c.state == state {
		c.stateMu.Unlock()

		return
	}

	c.state = state

	c.stateMu.Unlock()

	c.log.Info("Connection state changed", "state", state)
	c.events.emitStateChange(state)
}
