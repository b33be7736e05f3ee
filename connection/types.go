package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/tracelet/tracelet-go/backoff"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrClosing            = errors.New("connection is closing")
	ErrClosed             = errors.New("connection closed by user")
	ErrAuthFailure        = errors.New("authentication rejected by server")
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")
)

// State is the lifecycle state of a managed connection. It is owned
// exclusively by the Manager; callers observe it through Status snapshots.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
	StateClosing      State = "CLOSING"
)

// Event identifies a lifecycle event channel.
type Event string

const (
	EventConnected    Event = "connected"
	EventDisconnected Event = "disconnected"
	EventReconnecting Event = "reconnecting"
	EventError        Event = "error"
)

// EventInfo is the payload delivered to lifecycle handlers.
type EventInfo struct {
	Event Event

	// Reconnecting events carry the 1-based attempt number and the delay
	// scheduled before that attempt begins.
	Attempt int
	Delay   time.Duration

	// Error events carry the underlying failure.
	Err error
}

// Status is a read-only snapshot of the connection, never a live reference.
type Status struct {
	State             State
	ConnectedAt       *time.Time
	ReconnectAttempts int
}

// Config configures a Manager.
type Config struct {
	// URL is the full handshake target including query parameters.
	URL string

	// Header is sent with the handshake request (User-Agent etc).
	Header http.Header

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// PingInterval is the keepalive ping period; 0 disables keepalive.
	PingInterval time.Duration

	// StaleTimeout closes the transport when no pong arrives for this long.
	StaleTimeout time.Duration

	Backoff backoff.Strategy
}

// DefaultConfig returns sensible defaults; URL must still be set.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		StaleTimeout: 90 * time.Second,
		Backoff:      backoff.DefaultStrategy(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.StaleTimeout == 0 {
		c.StaleTimeout = d.StaleTimeout
	}
	if c.Backoff.BaseInterval == 0 {
		c.Backoff = d.Backoff
	}
}
