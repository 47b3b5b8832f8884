package langserver

import "sync"

// emitter fans lifecycle events out to subscribers.
//
// Dispatch is synchronous and in registration order; a subscriber sees each
// event exactly once. Callbacks run on the goroutine that produced the
// event, so they must not block.
type emitter struct {
	mu            sync.Mutex
	stateSubs     []func(State)
	exitSubs      []func(int)
	reconnectSubs []func()
	flagSubs      []func(map[string]any)
}

func newEmitter() *emitter {
	return &emitter{}
}

func (e *emitter) onStateChange(fn func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stateSubs = append(e.stateSubs, fn)
}

func (e *emitter) onExit(fn func(int)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exitSubs = append(e.exitSubs, fn)
}

func (e *emitter) onReconnecting(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reconnectSubs = append(e.reconnectSubs, fn)
}

func (e *emitter) onFeatureFlags(fn func(map[string]any)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.flagSubs = append(e.flagSubs, fn)
}

func (e *emitter) emitStateChange(state State) {
	e.mu.Lock()
	subs := append([]func(State){}, e.stateSubs...)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func (e *emitter) emitExit(code int) {
	e.mu.Lock()
	subs := append([]func(int){}, e.exitSubs...)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(code)
	}
}

func (e *emitter) emitReconnecting() {
	e.mu.Lock()
	subs := append([]func(){}, e.reconnectSubs...)
	e.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (e *emitter) emitFeatureFlags(flags map[string]any) {
	e.mu.Lock()
	subs := append([]func(map[string]any){}, e.flagSubs...)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(flags)
	}
}
