// Package subscribe implements the Subscription Registry: the closed topic
// enumeration, batch subscribe requests, and the bridge from the server's
// uncorrelated confirmation stream back to request/response semantics.
package subscribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tracelet/tracelet-go/wire"
)

// Errors
var (
	ErrNotConnected   = errors.New("subscribe: not connected")
	ErrUnknownTopic   = errors.New("subscribe: unrecognized topic")
	ErrNoTopics       = errors.New("subscribe: no topics requested")
	ErrConnectionLost = errors.New("subscribe: connection lost before confirmation")
)

// Topic is one of the closed set of event categories available for
// subscription.
type Topic string

const (
	TopicPositions  Topic = "POSITIONS"
	TopicZoneEvents Topic = "ZONES_ENTRIES_EVENTS"
	TopicZoneStats  Topic = "ZONE_STATS_EVENTS"
	TopicAlerts     Topic = "ALERTS"
	TopicAssets     Topic = "ASSETS"
)

// AllTopics lists every valid topic.
var AllTopics = []Topic{
	TopicPositions,
	TopicZoneEvents,
	TopicZoneStats,
	TopicAlerts,
	TopicAssets,
}

// Valid reports whether t belongs to the closed enumeration.
func (t Topic) Valid() bool {
	switch t {
	case TopicPositions, TopicZoneEvents, TopicZoneStats, TopicAlerts, TopicAssets:
		return true
	}
	return false
}

// Sender is the outbound half of a connection, satisfied by
// connection.Manager.
type Sender interface {
	Send(data []byte) error
	IsConnected() bool
}

// request is a single-resolution slot for one outstanding subscribe frame.
type request struct {
	topics []Topic
	done   chan error // buffered; completed exactly once
}

// Registry tracks confirmed subscriptions and correlates subscribe requests
// with inbound confirmations. The protocol carries no correlation identifier,
// so confirmations resolve outstanding requests oldest-first.
type Registry struct {
	sender    Sender
	namespace string
	mapUUID   string
	logger    *slog.Logger

	mu      sync.Mutex
	active  map[Topic]struct{}
	replay  map[Topic]struct{} // topics to re-issue after an automatic reconnect
	pending []*request         // FIFO, oldest first
}

// NewRegistry creates an empty registry bound to one connection.
func NewRegistry(sender Sender, namespace, mapUUID string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sender:    sender,
		namespace: namespace,
		mapUUID:   mapUUID,
		logger:    logger,
		active:    make(map[Topic]struct{}),
		replay:    make(map[Topic]struct{}),
	}
}

// Subscribe requests real-time delivery for the given topics and blocks until
// the server confirms, the context is done, or the connection drops. Topics
// are validated and the connection state checked before any frame is sent.
// Confirmed topics are unioned into the active set, never replaced.
//
// The protocol has no confirmation timeout; bound the wait with ctx.
func (r *Registry) Subscribe(ctx context.Context, topics ...Topic) error {
	if len(topics) == 0 {
		return ErrNoTopics
	}
	for _, t := range topics {
		if !t.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownTopic, string(t))
		}
	}
	if !r.sender.IsConnected() {
		return ErrNotConnected
	}

	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = string(t)
	}
	frame := wire.NewSubscribeFrame(r.namespace, names, r.mapUUID)
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal subscribe frame: %w", err)
	}

	req := &request{topics: topics, done: make(chan error, 1)}
	r.mu.Lock()
	r.pending = append(r.pending, req)
	r.mu.Unlock()

	if err := r.sender.Send(data); err != nil {
		r.drop(req)
		return fmt.Errorf("send subscribe frame: %w", err)
	}

	r.logger.Debug("subscribe request sent", "topics", names)

	select {
	case <-ctx.Done():
		r.drop(req)
		return ctx.Err()
	case err := <-req.done:
		return err
	}
}

// HandleConfirmation resolves the oldest outstanding request. Both observed
// server shapes (topic-listing and minimal acknowledgment) resolve the same
// way; the request's own topic batch is what gets unioned into the active
// set.
func (r *Registry) HandleConfirmation(payload map[string]any) {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		r.logger.Debug("confirmation with no outstanding request", "payload", payload)
		return
	}
	req := r.pending[0]
	r.pending = r.pending[1:]
	for _, t := range req.topics {
		r.active[t] = struct{}{}
	}
	r.mu.Unlock()

	req.done <- nil
}

// HandleConnectionLoss fails every outstanding request and moves the active
// set aside for replay after reconnection. Wired to the connection's
// disconnected lifecycle event.
func (r *Registry) HandleConnectionLoss() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	for t := range r.active {
		r.replay[t] = struct{}{}
	}
	r.active = make(map[Topic]struct{})
	r.mu.Unlock()

	for _, req := range pending {
		req.done <- ErrConnectionLost
	}
}

// Resubscribe re-issues one subscribe request for everything active before
// the connection dropped. Wired to the connection's reconnect hook; the new
// transport carries no server-side session memory.
func (r *Registry) Resubscribe(ctx context.Context) error {
	r.mu.Lock()
	topics := make([]Topic, 0, len(r.replay))
	for t := range r.replay {
		topics = append(topics, t)
	}
	r.replay = make(map[Topic]struct{})
	r.mu.Unlock()

	if len(topics) == 0 {
		return nil
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })

	r.logger.Info("replaying subscriptions after reconnect", "topics", topics)
	return r.Subscribe(ctx, topics...)
}

// ClearReplay drops topics stashed for replay, leaving the active set and
// outstanding requests alone. Called on user-initiated connect: a fresh
// session starts with no inherited subscriptions.
func (r *Registry) ClearReplay() {
	r.mu.Lock()
	r.replay = make(map[Topic]struct{})
	r.mu.Unlock()
}

// Clear empties the active and replay sets. Called on user-initiated
// disconnect, which intentionally forgets all subscriptions.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.active = make(map[Topic]struct{})
	r.replay = make(map[Topic]struct{})
	r.mu.Unlock()
}

// ActiveTopics returns a sorted snapshot of the confirmed subscriptions.
func (r *Registry) ActiveTopics() []Topic {
	r.mu.Lock()
	topics := make([]Topic, 0, len(r.active))
	for t := range r.active {
		topics = append(topics, t)
	}
	r.mu.Unlock()

	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}

// drop removes one request from the pending queue, wherever it sits.
func (r *Registry) drop(req *request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.pending {
		if p == req {
			r.pending = append(r.pending[:i:i], r.pending[i+1:]...)
			return
		}
	}
}
