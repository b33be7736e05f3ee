package publish

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tracelet/tracelet-go/wire"
)

// fakeConn records frames instead of writing to a transport.
type fakeConn struct {
	mu           sync.Mutex
	connected    bool
	connectCalls int
	connectErr   error
	sendErr      error
	frames       [][]byte
}

func (f *fakeConn) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) lastFrame(t *testing.T) wire.PositionFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		t.Fatal("no frames sent")
	}
	var frame wire.PositionFrame
	if err := json.Unmarshal(f.frames[len(f.frames)-1], &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func TestPublisher_SendPosition(t *testing.T) {
	conn := &fakeConn{connected: true}
	p := NewPublisher(conn, "test-ns", "map-1", nil)

	res := p.SendPosition(context.Background(), PositionInput{
		DeviceID: "AA:BB:CC:DD:EE:FF",
		Lat:      48.8566,
		Lon:      2.3522,
		Name:     "forklift-3",
		Data:     map[string]any{"battery": 87},
	})
	if !res.Success {
		t.Fatalf("SendPosition failed: %v", res.Err)
	}

	frame := conn.lastFrame(t)
	if frame.UserUUID != "aabbccddeeff" {
		t.Errorf("UserUUID = %q, want normalized MAC", frame.UserUUID)
	}
	if frame.AppNamespace != "test-ns" || frame.MapUUID != "map-1" {
		t.Errorf("defaults not applied: ns=%q map=%q", frame.AppNamespace, frame.MapUUID)
	}
	if frame.Origin != wire.OriginAPI {
		t.Errorf("Origin = %q, want %q", frame.Origin, wire.OriginAPI)
	}
	if frame.UserName != "forklift-3" {
		t.Errorf("UserName = %q, want forklift-3", frame.UserName)
	}
}

func TestPublisher_Overrides(t *testing.T) {
	conn := &fakeConn{connected: true}
	p := NewPublisher(conn, "default-ns", "default-map", nil)

	res := p.SendPosition(context.Background(), PositionInput{
		DeviceID:  "aabbccddeeff",
		Namespace: "other-ns",
		MapUUID:   "other-map",
	})
	if !res.Success {
		t.Fatalf("SendPosition failed: %v", res.Err)
	}

	frame := conn.lastFrame(t)
	if frame.AppNamespace != "other-ns" || frame.MapUUID != "other-map" {
		t.Errorf("overrides not applied: ns=%q map=%q", frame.AppNamespace, frame.MapUUID)
	}
}

func TestPublisher_InvalidIdentifier(t *testing.T) {
	conn := &fakeConn{connected: true}
	p := NewPublisher(conn, "ns", "map", nil)

	res := p.SendPosition(context.Background(), PositionInput{DeviceID: "not-a-mac"})
	if res.Success {
		t.Fatal("expected failure for malformed identifier")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "not-a-mac") {
		t.Errorf("error %v does not name the identifier", res.Err)
	}
	if len(conn.frames) != 0 {
		t.Errorf("transport observed %d frames, want 0", len(conn.frames))
	}
}

func TestPublisher_AutoConnect(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "ns", "map", nil)

	res := p.SendPosition(context.Background(), PositionInput{DeviceID: "aabbccddeeff"})
	if !res.Success {
		t.Fatalf("SendPosition failed: %v", res.Err)
	}
	if conn.connectCalls != 1 {
		t.Errorf("connectCalls = %d, want 1", conn.connectCalls)
	}

	// Already connected: no second dial.
	p.SendPosition(context.Background(), PositionInput{DeviceID: "aabbccddeeff"})
	if conn.connectCalls != 1 {
		t.Errorf("connectCalls = %d after second send, want 1", conn.connectCalls)
	}
}

func TestPublisher_ConnectFailure(t *testing.T) {
	conn := &fakeConn{connectErr: errors.New("dial refused")}
	p := NewPublisher(conn, "ns", "map", nil)

	res := p.SendPosition(context.Background(), PositionInput{DeviceID: "aabbccddeeff"})
	if res.Success {
		t.Fatal("expected failure when connect fails")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "dial refused") {
		t.Errorf("err = %v, want wrapped dial error", res.Err)
	}
}

func TestPublisher_SendBatchPartialFailure(t *testing.T) {
	conn := &fakeConn{connected: true}
	p := NewPublisher(conn, "ns", "map", nil)

	res := p.SendBatch(context.Background(), []PositionInput{
		{DeviceID: "aa:bb:cc:dd:ee:01", Lat: 1, Lon: 1},
		{DeviceID: "broken", Lat: 2, Lon: 2},
		{DeviceID: "aa:bb:cc:dd:ee:03", Lat: 3, Lon: 3},
	})

	if res.Success {
		t.Error("batch with a failure reported success")
	}
	if res.Sent != 2 || res.Failed != 1 {
		t.Errorf("sent=%d failed=%d, want 2/1", res.Sent, res.Failed)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "broken") {
		t.Errorf("Errors = %v, want one entry naming %q", res.Errors, "broken")
	}
	if len(conn.frames) != 2 {
		t.Errorf("transport observed %d frames, want 2", len(conn.frames))
	}
}

func TestPublisher_SendBatchAllGood(t *testing.T) {
	conn := &fakeConn{connected: true}
	p := NewPublisher(conn, "ns", "map", nil)

	res := p.SendBatch(context.Background(), []PositionInput{
		{DeviceID: "aa:bb:cc:dd:ee:01"},
		{DeviceID: "aa:bb:cc:dd:ee:02"},
	})
	if !res.Success || res.Sent != 2 || res.Failed != 0 || res.Errors != nil {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestPublisher_SendBatchEmpty(t *testing.T) {
	p := NewPublisher(&fakeConn{connected: true}, "ns", "map", nil)
	if res := p.SendBatch(context.Background(), nil); !res.Success || res.Sent != 0 {
		t.Errorf("empty batch result = %+v, want success with zero sent", res)
	}
}
