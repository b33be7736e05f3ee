package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tracelet/tracelet-go/dispatch"
	"github.com/tracelet/tracelet-go/wire"
)

// Manager owns one WebSocket transport end to end: dialing, the lifecycle
// state machine, keepalive, and reconnection with backoff on abnormal
// closure. It holds at most one live transport at a time; each reconnect
// replaces the transport and fully detaches the old one's goroutines.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	events *dispatch.Emitter[EventInfo]

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	gen         int // transport generation, guards against stale-handle events
	connectedAt time.Time
	attempts    int
	userClosed  bool
	lastPong    time.Time

	// In-flight connect slot shared by concurrent Connect callers.
	connectDone chan struct{}
	connectErr  error

	// Pending reconnect timer; canceled by Disconnect and by an explicit
	// Connect while RECONNECTING.
	reconnectTimer *time.Timer

	// Per-transport read-loop completion, waited on by Disconnect.
	readDone chan struct{}

	writeMu sync.Mutex

	// Hooks, set before Connect.
	onMessage     func(data []byte, receivedAt time.Time)
	onReconnected func()
}

// NewManager creates a Manager in the DISCONNECTED state.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	m := &Manager{
		cfg:    cfg,
		logger: logger,
		events: dispatch.NewEmitter[EventInfo](),
		state:  StateDisconnected,
	}
	m.events.SetPanicHandler(func(key string, recovered any) {
		m.logger.Warn("lifecycle handler fault", "event", key, "recovered", recovered)
	})
	return m
}

// SetMessageHandler installs the inbound frame callback. It is invoked
// synchronously from the read loop, preserving arrival order. Must be set
// before Connect.
func (m *Manager) SetMessageHandler(fn func(data []byte, receivedAt time.Time)) {
	m.onMessage = fn
}

// SetReconnectHook installs a callback invoked after every successful
// automatic reconnection, before any new inbound frames are dispatched to it.
// Must be set before Connect.
func (m *Manager) SetReconnectHook(fn func()) {
	m.onReconnected = fn
}

// On registers a lifecycle handler and returns an unsubscribe closure.
// Multiple handlers per event are invoked in registration order.
func (m *Manager) On(event Event, fn func(EventInfo)) func() {
	return m.events.On(string(event), fn)
}

// Connect opens the transport. It is idempotent: while CONNECTING it joins
// the in-flight attempt, and while CONNECTED it returns immediately.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return nil

	case StateClosing:
		m.mu.Unlock()
		return ErrClosing

	case StateConnecting:
		done := m.connectDone
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			m.mu.Lock()
			err := m.connectErr
			m.mu.Unlock()
			return err
		}
	}

	// DISCONNECTED or RECONNECTING: this call takes over the attempt.
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.userClosed = false
	m.state = StateConnecting
	done := make(chan struct{})
	m.connectDone = done
	m.connectErr = nil
	m.mu.Unlock()

	err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		if m.state == StateConnecting {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		m.emit(EventInfo{Event: EventError, Err: fmt.Errorf("connect: %w", err)})
	}

	m.mu.Lock()
	m.connectErr = err
	if m.connectDone == done {
		m.connectDone = nil
	}
	m.mu.Unlock()
	close(done)

	return err
}

// Disconnect closes the transport with a normal closure, suppresses any
// pending or future reconnection, and returns once the transport reports
// closed. Safe to call repeatedly; a second call is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}

	m.userClosed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}

	conn := m.conn
	readDone := m.readDone
	m.state = StateClosing
	m.mu.Unlock()

	if conn == nil {
		// Nothing live (was RECONNECTING or mid-CONNECT); the dial path
		// observes userClosed and fails itself.
		m.finishDisconnect()
		return nil
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	conn.Close()

	if readDone != nil {
		select {
		case <-readDone:
		case <-time.After(5 * time.Second):
			m.logger.Warn("timed out waiting for read loop shutdown")
		}
	}

	m.finishDisconnect()
	return nil
}

func (m *Manager) finishDisconnect() {
	m.mu.Lock()
	alreadyDown := m.state == StateDisconnected
	m.state = StateDisconnected
	m.conn = nil
	m.connectedAt = time.Time{}
	m.mu.Unlock()

	if !alreadyDown {
		m.emit(EventInfo{Event: EventDisconnected})
	}
}

// IsConnected reports whether the state is CONNECTED.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// Status returns a defensive snapshot of the connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:             m.state,
		ReconnectAttempts: m.attempts,
	}
	if !m.connectedAt.IsZero() {
		t := m.connectedAt
		st.ConnectedAt = &t
	}
	return st
}

// Send writes one text frame to the live transport.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	conn := m.conn
	m.mu.Unlock()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// dial opens a transport and, on success, installs it as the live one.
func (m *Manager) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.userClosed || m.state == StateClosing {
		m.mu.Unlock()
		conn.Close()
		return ErrClosed
	}

	m.gen++
	gen := m.gen
	m.conn = conn
	m.state = StateConnected
	m.connectedAt = time.Now()
	m.attempts = 0
	m.lastPong = time.Now()
	readDone := make(chan struct{})
	m.readDone = readDone
	m.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		m.notePong()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		m.notePong()
		return nil
	})

	go m.readLoop(conn, gen, readDone)
	if m.cfg.PingInterval > 0 {
		go m.pingLoop(conn, gen)
	}

	m.logger.Debug("websocket connected", "url", m.cfg.URL)
	m.emit(EventInfo{Event: EventConnected})

	return nil
}

func (m *Manager) notePong() {
	m.mu.Lock()
	m.lastPong = time.Now()
	m.mu.Unlock()
}

// readLoop pumps inbound frames for one transport generation.
func (m *Manager) readLoop(conn *websocket.Conn, gen int, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		if m.onMessage != nil {
			m.onMessage(data, receivedAt)
		}
	}
}

// pingLoop sends keepalive pings and closes the transport when the server
// stops answering. The resulting read error feeds the normal closure path.
func (m *Manager) pingLoop(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		stale := gen == m.gen && time.Since(m.lastPong) > m.cfg.StaleTimeout
		live := gen == m.gen && m.state == StateConnected
		m.mu.Unlock()

		if !live {
			return
		}
		if stale {
			m.logger.Warn("connection stale, no pong received", "timeout", m.cfg.StaleTimeout)
			conn.Close()
			return
		}

		deadline := time.Now().Add(m.cfg.WriteTimeout)
		if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
			m.logger.Debug("keepalive ping failed", "error", err)
			return
		}
	}
}

// handleClose reacts to a transport closure. Closures from a replaced
// transport generation are ignored.
func (m *Manager) handleClose(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	m.conn = nil
	m.connectedAt = time.Time{}

	// User-initiated teardown: leave the state at CLOSING so Disconnect's
	// finishDisconnect owns the final transition and the disconnected event.
	if m.userClosed || m.state == StateClosing {
		m.mu.Unlock()
		return
	}

	// Credential rejection cannot be repaired by retrying.
	if code, auth := authFailure(err); auth {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.logger.Warn("authentication failure, not reconnecting", "code", code)
		m.emit(EventInfo{Event: EventError, Err: fmt.Errorf("%w (close code %d)", ErrAuthFailure, code)})
		m.emit(EventInfo{Event: EventDisconnected})
		return
	}

	// A server-side normal closure is deliberate; do not fight it.
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.emit(EventInfo{Event: EventDisconnected})
		return
	}

	m.logger.Warn("connection lost", "error", err)
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked advances the reconnection cycle. Called with m.mu
// held; releases it.
func (m *Manager) scheduleReconnectLocked() {
	if m.cfg.Backoff.Exhausted(m.attempts) {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.emit(EventInfo{Event: EventDisconnected})
		m.emit(EventInfo{Event: EventError, Err: ErrReconnectExhausted})
		return
	}

	delay := m.cfg.Backoff.Delay(m.attempts)
	m.attempts++
	attempt := m.attempts

	wasConnected := m.state == StateConnected
	m.state = StateReconnecting
	m.mu.Unlock()

	// The reconnecting event precedes the next dial attempt; the timer is
	// armed only after the handlers have run.
	if wasConnected {
		m.emit(EventInfo{Event: EventDisconnected})
	}
	m.emit(EventInfo{Event: EventReconnecting, Attempt: attempt, Delay: delay})
	m.logger.Info("reconnecting", "attempt", attempt, "delay", delay)

	m.mu.Lock()
	if m.state == StateReconnecting && !m.userClosed {
		m.reconnectTimer = time.AfterFunc(delay, m.redial)
	}
	m.mu.Unlock()
}

// redial runs when the backoff timer fires.
func (m *Manager) redial() {
	m.mu.Lock()
	if m.state != StateReconnecting || m.userClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.reconnectTimer = nil
	// Publish a connect slot so a concurrent Connect call can join this
	// attempt instead of racing it.
	done := make(chan struct{})
	m.connectDone = done
	m.connectErr = nil
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	err := m.dial(ctx)

	m.mu.Lock()
	m.connectErr = err
	if m.connectDone == done {
		m.connectDone = nil
	}
	m.mu.Unlock()
	close(done)

	if err != nil {
		m.emit(EventInfo{Event: EventError, Err: fmt.Errorf("reconnect: %w", err)})

		m.mu.Lock()
		if m.userClosed || m.state == StateClosing {
			m.state = StateDisconnected
			m.mu.Unlock()
			return
		}
		m.scheduleReconnectLocked()
		return
	}

	m.logger.Info("reconnected")
	if m.onReconnected != nil {
		m.onReconnected()
	}
}

func (m *Manager) emit(info EventInfo) {
	m.events.Emit(string(info.Event), info)
}

// authFailure extracts the close code when err is a close in the application
// authentication-failure range.
func authFailure(err error) (int, bool) {
	if ce, ok := err.(*websocket.CloseError); ok && wire.AuthFailureCode(ce.Code) {
		return ce.Code, true
	}
	return 0, false
}
