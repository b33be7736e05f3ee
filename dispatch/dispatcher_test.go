package dispatch

import (
	"testing"
	"time"

	"github.com/tracelet/tracelet-go/classify"
)

func TestEmitter_RegistrationOrder(t *testing.T) {
	e := NewEmitter[int]()

	var order []string
	e.On("k", func(int) { order = append(order, "first") })
	e.On("k", func(int) { order = append(order, "second") })
	e.On("k", func(int) { order = append(order, "third") })

	e.Emit("k", 1)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("got %d invocations, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("invocation %d = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter[int]()

	var calls int
	off := e.On("k", func(int) { calls++ })

	e.Emit("k", 1)
	off()
	e.Emit("k", 2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if n := e.HandlerCount("k"); n != 0 {
		t.Errorf("HandlerCount = %d, want 0", n)
	}
}

func TestEmitter_Once(t *testing.T) {
	e := NewEmitter[int]()

	var calls int
	e.Once("k", func(int) { calls++ })

	e.Emit("k", 1)
	e.Emit("k", 2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEmitter_Off(t *testing.T) {
	e := NewEmitter[int]()

	var calls int
	e.On("k", func(int) { calls++ })
	e.On("k", func(int) { calls++ })
	e.Off("k")

	e.Emit("k", 1)
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestEmitter_PanicIsolation(t *testing.T) {
	e := NewEmitter[int]()

	var recovered any
	e.SetPanicHandler(func(key string, r any) { recovered = r })

	var after bool
	e.On("k", func(int) { panic("boom") })
	e.On("k", func(int) { after = true })

	e.Emit("k", 1)

	if recovered != "boom" {
		t.Errorf("recovered = %v, want boom", recovered)
	}
	if !after {
		t.Error("handler after the faulting one was not invoked")
	}
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	d := NewDispatcher(nil)

	var positions, wildcard []Message
	d.On(classify.Positions, func(m Message) { positions = append(positions, m) })
	d.OnAny(func(m Message) { wildcard = append(wildcard, m) })

	d.Dispatch([]byte(`{"lat":48.8,"lon":2.3,"user_uuid":"aabbccddeeff"}`), time.Now())
	d.Dispatch([]byte(`{"event_type":"ENTER_ZONE"}`), time.Now())

	if len(positions) != 1 {
		t.Fatalf("position handlers saw %d messages, want 1", len(positions))
	}
	if positions[0].Kind != classify.Positions {
		t.Errorf("kind = %s, want POSITIONS", positions[0].Kind)
	}
	if len(wildcard) != 2 {
		t.Errorf("wildcard saw %d messages, want 2", len(wildcard))
	}
}

func TestDispatcher_ConfirmationSuppressed(t *testing.T) {
	d := NewDispatcher(nil)

	var confirmed []map[string]any
	d.SetConfirmationSink(func(p map[string]any) { confirmed = append(confirmed, p) })

	var delivered int
	d.On(classify.Confirmation, func(Message) { delivered++ })
	d.OnAny(func(Message) { delivered++ })

	d.Dispatch([]byte(`{"success":true}`), time.Now())
	d.Dispatch([]byte(`{"data_type_filter":["POSITIONS"]}`), time.Now())

	if len(confirmed) != 2 {
		t.Errorf("sink saw %d confirmations, want 2", len(confirmed))
	}
	if delivered != 0 {
		t.Errorf("confirmations leaked to %d application handlers", delivered)
	}
}

func TestDispatcher_DecodeErrorReported(t *testing.T) {
	d := NewDispatcher(nil)

	var errs []error
	d.OnError(func(err error) { errs = append(errs, err) })

	d.Dispatch([]byte(`{not json`), time.Now())

	if len(errs) != 1 {
		t.Fatalf("error channel saw %d errors, want 1", len(errs))
	}
}

func TestDispatcher_HandlerFaultIsolated(t *testing.T) {
	d := NewDispatcher(nil)

	var errs []error
	d.OnError(func(err error) { errs = append(errs, err) })

	var after bool
	d.On(classify.ZoneEvents, func(Message) { panic("handler bug") })
	d.On(classify.ZoneEvents, func(Message) { after = true })

	d.Dispatch([]byte(`{"event_type":"EXIT_ZONE"}`), time.Now())

	if !after {
		t.Error("second handler not invoked after fault in first")
	}
	if len(errs) != 1 {
		t.Errorf("error channel saw %d errors, want 1", len(errs))
	}
}
