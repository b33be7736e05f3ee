// Package dispatch implements in-process fan-out of classified messages and a
// generic handler emitter used for lifecycle events.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tracelet/tracelet-go/classify"
)

// wildcardKey receives every classified message after its kind-specific
// handlers.
const wildcardKey = "*"

// errorKey carries decode failures and recovered handler faults.
const errorKey = "error"

// Message is a classified inbound frame.
type Message struct {
	Kind       classify.Kind
	Payload    map[string]any
	Raw        []byte
	ReceivedAt time.Time
}

// Dispatcher decodes inbound frames, classifies them, and fans them out to
// registered handlers. Confirmations are routed exclusively to the
// confirmation sink and never reach application handlers.
type Dispatcher struct {
	logger   *slog.Logger
	messages *Emitter[Message]
	errors   *Emitter[error]

	// confirm receives subscription confirmations for pending-request
	// resolution.
	confirm func(payload map[string]any)
}

// NewDispatcher creates a dispatcher with no registered handlers.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		logger:   logger,
		messages: NewEmitter[Message](),
		errors:   NewEmitter[error](),
	}
	d.messages.SetPanicHandler(func(key string, recovered any) {
		d.logger.Warn("message handler fault", "channel", key, "recovered", recovered)
		d.errors.Emit(errorKey, fmt.Errorf("handler fault on %s: %v", key, recovered))
	})
	return d
}

// SetConfirmationSink installs the callback that resolves pending subscribe
// requests. The sink reports whether it consumed the confirmation.
func (d *Dispatcher) SetConfirmationSink(fn func(payload map[string]any)) {
	d.confirm = fn
}

// On registers a persistent handler for one message kind and returns an
// unsubscribe closure.
func (d *Dispatcher) On(kind classify.Kind, fn func(Message)) func() {
	return d.messages.On(string(kind), fn)
}

// Once registers a handler removed after its first matching message.
func (d *Dispatcher) Once(kind classify.Kind, fn func(Message)) func() {
	return d.messages.Once(string(kind), fn)
}

// Off removes every handler for one message kind.
func (d *Dispatcher) Off(kind classify.Kind) {
	d.messages.Off(string(kind))
}

// OnAny registers a wildcard handler invoked for every classified message
// after the kind-specific handlers.
func (d *Dispatcher) OnAny(fn func(Message)) func() {
	return d.messages.On(wildcardKey, fn)
}

// OnError registers a handler for decode failures and handler faults.
func (d *Dispatcher) OnError(fn func(error)) func() {
	return d.errors.On(errorKey, fn)
}

// Dispatch processes one inbound frame: decode, classify, and deliver. It is
// called from the transport read loop, so delivery preserves arrival order and
// completes synchronously within the call.
func (d *Dispatcher) Dispatch(raw []byte, receivedAt time.Time) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		d.logger.Warn("failed to decode inbound frame", "error", err)
		d.errors.Emit(errorKey, fmt.Errorf("decode inbound frame: %w", err))
		return
	}

	kind := classify.Classify(payload)
	obj, _ := payload.(map[string]any)

	if kind == classify.Confirmation {
		if d.confirm != nil {
			d.confirm(obj)
		}
		return
	}

	msg := Message{
		Kind:       kind,
		Payload:    obj,
		Raw:        raw,
		ReceivedAt: receivedAt,
	}
	d.messages.Emit(string(kind), msg)
	d.messages.Emit(wildcardKey, msg)
}
