package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/wagiedev/langserver-sdk-go/internal/errors"
)

// Well-known notification methods routed by the dispatch table.
const (
	// MethodProgress carries incremental updates for long-running operations.
	MethodProgress = "$/progress"

	// MethodFeatureFlags replaces the cached feature flag map.
	MethodFeatureFlags = "featureFlagsNotification"
)

// Transport is the minimal write surface the controller needs.
// It is satisfied by subprocess.Process and by test fakes.
type Transport interface {
	WriteMessage(ctx context.Context, msg any) error
}

// ServerRequestHandler is invoked for every inbound request that carries
// both an id and a method. The handler is responsible for eventually
// answering via SendResponse with the same id.
type ServerRequestHandler func(method string, id int64, params any)

// ProgressCallback receives the value of one $/progress notification.
type ProgressCallback func(value any)

// Controller correlates outbound requests with their responses and routes
// inbound messages by shape.
//
// A Controller persists for the lifetime of its client. Correlation ids are
// strictly increasing and never reused, including across reconnects. The
// pending table and progress listeners survive a reconnect as well; requests
// issued against a dead connection time out naturally.
type Controller struct {
	log *slog.Logger

	// mu guards the transport, the id counter and the pending table.
	mu        sync.Mutex
	transport Transport
	nextID    int64
	pending   map[int64]*pendingRequest

	handlerMu     sync.RWMutex
	serverHandler ServerRequestHandler

	listenersMu       sync.RWMutex
	progressListeners map[string]ProgressCallback

	flagsMu        sync.RWMutex
	featureFlags   map[string]any
	onFeatureFlags func(map[string]any)
}

// pendingRequest tracks an outgoing request awaiting its response.
type pendingRequest struct {
	method   string
	response chan responseOutcome
}

type responseOutcome struct {
	msg map[string]any
	err error
}

// NewController creates a controller with empty tables and no transport.
func NewController(log *slog.Logger) *Controller {
	return &Controller{
		log:               log.With("component", "protocol"),
		pending:           make(map[int64]*pendingRequest, 10),
		progressListeners: make(map[string]ProgressCallback, 10),
		featureFlags:      make(map[string]any),
	}
}

// Attach makes t the write target for all outgoing messages.
// Called on every (re)connect with the fresh connection's transport.
func (c *Controller) Attach(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transport = t
}

// Detach drops the current transport. Requests sent while detached fail
// with ErrTransportNotConnected.
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transport = nil
}

// OnFeatureFlags registers the callback invoked when the server pushes a
// new feature flag map.
func (c *Controller) OnFeatureFlags(cb func(map[string]any)) {
	c.flagsMu.Lock()
	defer c.flagsMu.Unlock()

	c.onFeatureFlags = cb
}

// FeatureFlags returns a copy of the most recently pushed flag map.
func (c *Controller) FeatureFlags() map[string]any {
	c.flagsMu.RLock()
	defer c.flagsMu.RUnlock()

	return maps.Clone(c.featureFlags)
}

// SendRequest sends a request and blocks until the response arrives, the
// timeout expires, the context is cancelled, or the connection rejects all
// pending requests (crash or shutdown).
//
// Each call allocates the next strictly increasing id; arbitrarily many
// requests may be in flight concurrently.
func (c *Controller) SendRequest(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (map[string]any, error) {
	c.mu.Lock()

	transport := c.transport
	if transport == nil {
		c.mu.Unlock()

		return nil, errors.ErrTransportNotConnected
	}

	c.nextID++
	id := c.nextID

	pending := &pendingRequest{
		method:   method,
		response: make(chan responseOutcome, 1),
	}
	c.pending[id] = pending

	c.mu.Unlock()

	c.log.Debug("Sending request", "id", id, "method", method, "timeout", timeout)

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	if err := transport.WriteMessage(ctx, msg); err != nil {
		c.removePending(id)

		return nil, fmt.Errorf("send request %s: %w", method, err)
	}

	select {
	case outcome := <-pending.response:
		if outcome.err != nil {
			c.log.Debug("Request rejected", "id", id, "method", method, "error", outcome.err)

			return nil, outcome.err
		}

		c.log.Debug("Request resolved", "id", id, "method", method)

		return outcome.msg, nil

	case <-time.After(timeout):
		c.removePending(id)
		c.log.Warn("Request timed out", "id", id, "method", method, "timeout", timeout)

		return nil, fmt.Errorf("%w after %s: %s", errors.ErrRequestTimeout, timeout, method)

	case <-ctx.Done():
		c.removePending(id)

		return nil, ctx.Err()
	}
}

// SendNotification sends a fire-and-forget notification. No correlation
// entry is created.
func (c *Controller) SendNotification(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	if transport == nil {
		return errors.ErrTransportNotConnected
	}

	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	c.log.Debug("Sending notification", "method", method)

	return transport.WriteMessage(ctx, msg)
}

// SendResponse answers a server-initiated request with the given id.
func (c *Controller) SendResponse(ctx context.Context, id int64, result any) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	if transport == nil {
		return errors.ErrTransportNotConnected
	}

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}

	c.log.Debug("Sending response", "id", id)

	return transport.WriteMessage(ctx, msg)
}

// OnServerRequest registers the single handler for inbound requests.
// Re-registering replaces the previous handler.
func (c *Controller) OnServerRequest(handler ServerRequestHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	c.serverHandler = handler
}

// RegisterProgressListener routes $/progress notifications for token to cb.
func (c *Controller) RegisterProgressListener(token string, cb ProgressCallback) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.progressListeners[token] = cb
}

// RemoveProgressListener removes the listener for token, if any.
func (c *Controller) RemoveProgressListener(token string) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	delete(c.progressListeners, token)
}

// ClearProgressListeners empties the listener table. Only shutdown does
// this; listeners survive reconnects.
func (c *Controller) ClearProgressListeners() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	clear(c.progressListeners)
}

// RejectAll fails every pending request with err and empties the table.
// Used for process crashes and shutdown.
func (c *Controller) RejectAll(err error) {
	c.mu.Lock()

	rejected := c.pending
	c.pending = make(map[int64]*pendingRequest, 10)

	c.mu.Unlock()

	if len(rejected) == 0 {
		return
	}

	c.log.Info("Rejecting all pending requests", "count", len(rejected), "error", err)

	for _, pending := range rejected {
		pending.response <- responseOutcome{err: err}
	}
}

// Dispatch routes one decoded message by which of id/method are present.
// Messages arrive here in the exact order the transport decoded them.
func (c *Controller) Dispatch(msg map[string]any) {
	id, hasID := normalizeID(msg["id"])
	method, hasMethod := msg["method"].(string)

	switch {
	case hasID && !hasMethod:
		c.dispatchResponse(id, msg)

	case hasID && hasMethod:
		c.dispatchServerRequest(method, id, msg["params"])

	case hasMethod && method == MethodProgress:
		c.dispatchProgress(msg)

	case hasMethod && method == MethodFeatureFlags:
		c.dispatchFeatureFlags(msg)

	default:
		c.log.Debug("Dropping unrecognized notification", "method", method)
	}
}

// dispatchResponse resolves or rejects the matching pending request.
// A response with no pending entry is dropped: it either timed out already
// or was never ours.
func (c *Controller) dispatchResponse(id int64, msg map[string]any) {
	c.mu.Lock()

	pending, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}

	c.mu.Unlock()

	if !exists {
		c.log.Debug("Dropping response with no pending request", "id", id)

		return
	}

	if errPayload, ok := msg["error"].(map[string]any); ok {
		rpcErr := &errors.RPCError{Method: pending.method}

		if message, ok := errPayload["message"].(string); ok {
			rpcErr.Message = message
		}

		if code, ok := errPayload["code"].(float64); ok {
			rpcErr.Code = int64(code)
		}

		pending.response <- responseOutcome{err: rpcErr}

		return
	}

	pending.response <- responseOutcome{msg: msg}
}

// dispatchServerRequest invokes the registered handler, or drops the
// request when none is registered.
func (c *Controller) dispatchServerRequest(method string, id int64, params any) {
	c.handlerMu.RLock()
	handler := c.serverHandler
	c.handlerMu.RUnlock()

	if handler == nil {
		c.log.Warn("Dropping server request, no handler registered", "id", id, "method", method)

		return
	}

	c.log.Debug("Dispatching server request", "id", id, "method", method)
	handler(method, id, params)
}

// dispatchProgress routes params.value to the listener registered for the
// string-coerced params.token. Missing token or value drops the message.
func (c *Controller) dispatchProgress(msg map[string]any) {
	params, ok := msg["params"].(map[string]any)
	if !ok {
		c.log.Debug("Dropping progress notification without params")

		return
	}

	rawToken, hasToken := params["token"]

	value, hasValue := params["value"]
	if !hasToken || !hasValue {
		c.log.Debug("Dropping progress notification missing token or value")

		return
	}

	token := tokenString(rawToken)

	c.listenersMu.RLock()
	listener, exists := c.progressListeners[token]
	c.listenersMu.RUnlock()

	if !exists {
		c.log.Debug("Dropping progress for unregistered token", "token", token)

		return
	}

	listener(value)
}

// dispatchFeatureFlags replaces the cached flag map and notifies the
// registered callback with a copy of the new map.
func (c *Controller) dispatchFeatureFlags(msg map[string]any) {
	params, _ := msg["params"].(map[string]any)

	c.flagsMu.Lock()

	if params == nil {
		c.featureFlags = make(map[string]any)
	} else {
		c.featureFlags = params
	}

	flags := maps.Clone(c.featureFlags)
	cb := c.onFeatureFlags

	c.flagsMu.Unlock()

	c.log.Debug("Feature flags updated", "count", len(flags))

	if cb != nil {
		cb(flags)
	}
}

func (c *Controller) removePending(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, id)
}

// pendingCount reports the size of the correlation table. Test helper.
func (c *Controller) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// normalizeID coerces a JSON-RPC id to an integer. Servers may echo ids
// back as numbers or numeric strings.
func normalizeID(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		return int64(id), true

	case int64:
		return id, true

	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, false
		}

		return n, true

	default:
		return 0, false
	}
}

// tokenString coerces a progress token to its string form.
func tokenString(v any) string {
	switch token := v.(type) {
	case string:
		return token

	case float64:
		return strconv.FormatFloat(token, 'f', -1, 64)

	default:
		return fmt.Sprintf("%v", token)
	}
}
