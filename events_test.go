package langserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitter_DispatchOrderAndExactlyOnce(t *testing.T) {
	e := newEmitter()

	var order []int

	e.onStateChange(func(State) { order = append(order, 1) })
	e.onStateChange(func(State) { order = append(order, 2) })
	e.onStateChange(func(State) { order = append(order, 3) })

	e.emitStateChange(StateConnected)

	require.Equal(t, []int{1, 2, 3}, order, "subscribers fire once each, in registration order")
}

func TestEmitter_NoSubscribers(t *testing.T) {
	e := newEmitter()

	// Emitting with nobody listening must be a no-op.
	e.emitStateChange(StateFailed)
	e.emitExit(1)
	e.emitReconnecting()
	e.emitFeatureFlags(map[string]any{"x": true})
}
