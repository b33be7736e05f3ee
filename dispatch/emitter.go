package dispatch

import "sync"

// Emitter is an in-process fan-out of values keyed by channel name. Handlers
// run synchronously, in registration order, on the goroutine that calls Emit.
// A panicking handler is isolated: it is recovered, reported through the
// panic hook, and does not block the remaining handlers.
type Emitter[T any] struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string][]entry[T]

	// onPanic receives the channel key and recovered value of a handler
	// fault. Nil means faults are swallowed.
	onPanic func(key string, recovered any)
}

type entry[T any] struct {
	id   int
	fn   func(T)
	once bool
}

// NewEmitter creates an empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{handlers: make(map[string][]entry[T])}
}

// SetPanicHandler installs the hook invoked when a handler panics.
func (e *Emitter[T]) SetPanicHandler(fn func(key string, recovered any)) {
	e.mu.Lock()
	e.onPanic = fn
	e.mu.Unlock()
}

// On registers a persistent handler and returns a closure that removes it.
func (e *Emitter[T]) On(key string, fn func(T)) func() {
	return e.add(key, fn, false)
}

// Once registers a handler that is removed after its first invocation. The
// returned closure removes it early.
func (e *Emitter[T]) Once(key string, fn func(T)) func() {
	return e.add(key, fn, true)
}

func (e *Emitter[T]) add(key string, fn func(T), once bool) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers[key] = append(e.handlers[key], entry[T]{id: id, fn: fn, once: once})
	e.mu.Unlock()

	return func() { e.remove(key, id) }
}

// Off removes every handler registered for key.
func (e *Emitter[T]) Off(key string) {
	e.mu.Lock()
	delete(e.handlers, key)
	e.mu.Unlock()
}

func (e *Emitter[T]) remove(key string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.handlers[key]
	for i, ent := range entries {
		if ent.id == id {
			e.handlers[key] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Emit invokes all handlers for key with v, in registration order.
func (e *Emitter[T]) Emit(key string, v T) {
	e.mu.Lock()
	entries := e.handlers[key]
	snapshot := make([]entry[T], len(entries))
	copy(snapshot, entries)

	// Drop one-shot handlers before invoking so a re-entrant Emit cannot
	// fire them twice.
	remaining := entries[:0:0]
	for _, ent := range entries {
		if !ent.once {
			remaining = append(remaining, ent)
		}
	}
	if len(remaining) == 0 {
		delete(e.handlers, key)
	} else {
		e.handlers[key] = remaining
	}
	onPanic := e.onPanic
	e.mu.Unlock()

	for _, ent := range snapshot {
		e.invoke(key, ent.fn, v, onPanic)
	}
}

func (e *Emitter[T]) invoke(key string, fn func(T), v T, onPanic func(string, any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(key, r)
		}
	}()
	fn(v)
}

// HandlerCount returns the number of handlers registered for key.
func (e *Emitter[T]) HandlerCount(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[key])
}
