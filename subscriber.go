package tracelet

import (
	"context"
	"log/slog"
	"time"

	"github.com/tracelet/tracelet-go/classify"
	"github.com/tracelet/tracelet-go/connection"
	"github.com/tracelet/tracelet-go/dispatch"
	"github.com/tracelet/tracelet-go/subscribe"
)

// resubscribeTimeout bounds the automatic replay after a reconnect; the
// protocol itself imposes no confirmation timeout.
const resubscribeTimeout = 30 * time.Second

// Subscriber is the consuming side of a client: one managed connection, the
// message dispatcher, and the subscription registry wired together.
type Subscriber struct {
	mgr    *connection.Manager
	disp   *dispatch.Dispatcher
	reg    *subscribe.Registry
	logger *slog.Logger
}

func newSubscriber(cfg *Config, logger *slog.Logger) (*Subscriber, error) {
	target, err := cfg.subscriberURL()
	if err != nil {
		return nil, err
	}

	connCfg := connection.DefaultConfig()
	connCfg.URL = target
	connCfg.Header = handshakeHeader()
	connCfg.Backoff = cfg.reconnect()

	log := logger.With("side", "subscriber")
	mgr := connection.NewManager(connCfg, log)
	disp := dispatch.NewDispatcher(log)
	reg := subscribe.NewRegistry(mgr, cfg.Namespace, cfg.MapUUID, log)

	// Confirmations resolve pending subscribe requests and never reach
	// application handlers.
	disp.SetConfirmationSink(reg.HandleConfirmation)
	mgr.SetMessageHandler(disp.Dispatch)

	// Any closure fails outstanding requests and stashes the active set;
	// a successful automatic reconnect replays it.
	mgr.On(connection.EventDisconnected, func(connection.EventInfo) {
		reg.HandleConnectionLoss()
	})
	mgr.SetReconnectHook(func() {
		ctx, cancel := context.WithTimeout(context.Background(), resubscribeTimeout)
		defer cancel()
		if err := reg.Resubscribe(ctx); err != nil {
			log.Warn("subscription replay failed", "error", err)
		}
	})

	return &Subscriber{mgr: mgr, disp: disp, reg: reg, logger: log}, nil
}

// Connect opens the subscriber connection. An explicit connect starts a
// fresh session: topics stashed from an earlier connection loss are not
// carried over.
func (s *Subscriber) Connect(ctx context.Context) error {
	if !s.mgr.IsConnected() {
		s.reg.ClearReplay()
	}
	return s.mgr.Connect(ctx)
}

// Disconnect closes the connection and forgets all subscriptions.
func (s *Subscriber) Disconnect() error {
	err := s.mgr.Disconnect()
	s.reg.Clear()
	return err
}

// IsConnected reports whether the subscriber connection is CONNECTED.
func (s *Subscriber) IsConnected() bool {
	return s.mgr.IsConnected()
}

// Status returns a snapshot of the subscriber connection.
func (s *Subscriber) Status() connection.Status {
	return s.mgr.Status()
}

// Subscribe requests real-time delivery for the given topics and blocks
// until the server confirms or ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context, topics ...subscribe.Topic) error {
	return s.reg.Subscribe(ctx, topics...)
}

// ActiveSubscriptions returns a snapshot of the confirmed topics.
func (s *Subscriber) ActiveSubscriptions() []subscribe.Topic {
	return s.reg.ActiveTopics()
}

// On registers a handler for one message kind; the returned closure removes
// it.
func (s *Subscriber) On(kind classify.Kind, fn func(dispatch.Message)) func() {
	return s.disp.On(kind, fn)
}

// Once registers a handler removed after its first matching message.
func (s *Subscriber) Once(kind classify.Kind, fn func(dispatch.Message)) func() {
	return s.disp.Once(kind, fn)
}

// Off removes every handler for one message kind.
func (s *Subscriber) Off(kind classify.Kind) {
	s.disp.Off(kind)
}

// OnAny registers a handler for every classified message.
func (s *Subscriber) OnAny(fn func(dispatch.Message)) func() {
	return s.disp.OnAny(fn)
}

// OnError registers a handler for decode failures and handler faults.
func (s *Subscriber) OnError(fn func(error)) func() {
	return s.disp.OnError(fn)
}

// OnLifecycle registers a handler for connection lifecycle events.
func (s *Subscriber) OnLifecycle(event connection.Event, fn func(connection.EventInfo)) func() {
	return s.mgr.On(event, fn)
}
