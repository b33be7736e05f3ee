package tracelet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tracelet/tracelet-go/connection"
	"github.com/tracelet/tracelet-go/publish"
)

// ErrPublisherNotConfigured is returned as a structured failure when a
// publish operation is invoked on a client built without a MapUUID.
var ErrPublisherNotConfigured = errors.New("publisher not configured: set MapUUID to enable publishing")

// Client composes the subscriber side (always present) and the publisher
// side (present only when a map identifier is configured) behind one
// connect/disconnect surface.
type Client struct {
	cfg    Config
	logger *slog.Logger

	sub    *Subscriber
	pubMgr *connection.Manager
	pub    *publish.Publisher
}

// ConnectOptions selects which configured sides Connect opens. The zero
// value connects every configured side.
type ConnectOptions struct {
	SubscriberOnly bool
	PublisherOnly  bool
}

// NewClient validates cfg and builds the client. Configuration errors are
// fatal and reported here, never retried.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()

	sub, err := newSubscriber(&cfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, logger: logger, sub: sub}

	if cfg.MapUUID != "" {
		target, err := cfg.publisherURL()
		if err != nil {
			return nil, err
		}
		connCfg := connection.DefaultConfig()
		connCfg.URL = target
		connCfg.Header = handshakeHeader()
		connCfg.Backoff = cfg.reconnect()

		c.pubMgr = connection.NewManager(connCfg, logger.With("side", "publisher"))
		c.pub = publish.NewPublisher(c.pubMgr, cfg.Namespace, cfg.MapUUID, logger)
	}

	return c, nil
}

// Subscriber exposes the consuming side for handler registration and
// subscriptions.
func (c *Client) Subscriber() *Subscriber {
	return c.sub
}

// Connect opens the selected sides; with zero options, every configured side
// connects concurrently.
func (c *Client) Connect(ctx context.Context, opts ...ConnectOptions) error {
	var o ConnectOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	wantSub := o.SubscriberOnly || !o.PublisherOnly
	wantPub := o.PublisherOnly || !o.SubscriberOnly

	if o.PublisherOnly && c.pub == nil {
		return ErrPublisherNotConfigured
	}

	g, ctx := errgroup.WithContext(ctx)
	if wantSub {
		g.Go(func() error {
			if err := c.sub.Connect(ctx); err != nil {
				return fmt.Errorf("subscriber: %w", err)
			}
			return nil
		})
	}
	if wantPub && c.pubMgr != nil {
		g.Go(func() error {
			if err := c.pubMgr.Connect(ctx); err != nil {
				return fmt.Errorf("publisher: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Disconnect tears down both sides; order is not significant.
func (c *Client) Disconnect() error {
	var errs []error
	if err := c.sub.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("subscriber: %w", err))
	}
	if c.pubMgr != nil {
		if err := c.pubMgr.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}

// IsConnected reports whether every configured side is connected.
func (c *Client) IsConnected() bool {
	if !c.sub.IsConnected() {
		return false
	}
	if c.pubMgr != nil && !c.pubMgr.IsConnected() {
		return false
	}
	return true
}

// SendPosition publishes one position update. Without a configured publisher
// it returns a structured failure rather than an error.
func (c *Client) SendPosition(ctx context.Context, in publish.PositionInput) publish.SendResult {
	if c.pub == nil {
		return publish.SendResult{Err: ErrPublisherNotConfigured}
	}
	return c.pub.SendPosition(ctx, in)
}

// SendBatch publishes every input independently and aggregates the outcome.
func (c *Client) SendBatch(ctx context.Context, inputs []publish.PositionInput) publish.BatchResult {
	if c.pub == nil {
		return publish.BatchResult{
			Failed: len(inputs),
			Errors: []string{ErrPublisherNotConfigured.Error()},
		}
	}
	return c.pub.SendBatch(ctx, inputs)
}
