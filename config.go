package tracelet

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/google/uuid"

	"github.com/tracelet/tracelet-go/backoff"
	"github.com/tracelet/tracelet-go/internal/version"
)

// Default endpoints for the Tracelet real-time service.
const (
	DefaultSubscriberURL = "wss://rt.tracelet.io/subscriber"
	DefaultPublisherURL  = "wss://rt.tracelet.io/publisher"
)

// Configuration errors, raised synchronously by NewClient and never retried.
var (
	ErrCredential     = errors.New("config: exactly one of APIKey or Token must be set")
	ErrNamespace      = errors.New("config: Namespace is required")
	ErrInvalidMapUUID = errors.New("config: MapUUID is not a valid UUID")
)

// Config configures a Client. It is read once at construction and never
// mutated afterwards.
type Config struct {
	// APIKey and Token are the two supported credentials; exactly one must
	// be set.
	APIKey string
	Token  string

	// Namespace scopes every subscription and published position.
	Namespace string

	// MapUUID identifies the map positions are published to. Optional; a
	// client without it has no publisher side.
	MapUUID string

	// SubscriberURL and PublisherURL override the default endpoints.
	SubscriberURL string
	PublisherURL  string

	// Reconnect overrides the default backoff policy when BaseInterval is
	// non-zero.
	Reconnect backoff.Strategy

	// Debug enables debug-level logging when no Logger is supplied.
	Debug bool

	// Logger receives structured logs; nil selects a default.
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if (c.APIKey == "") == (c.Token == "") {
		return ErrCredential
	}
	if c.Namespace == "" {
		return ErrNamespace
	}
	if c.MapUUID != "" {
		if _, err := uuid.Parse(c.MapUUID); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidMapUUID, c.MapUUID)
		}
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.Debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.Default()
}

func (c *Config) reconnect() backoff.Strategy {
	if c.Reconnect.BaseInterval != 0 {
		return c.Reconnect
	}
	return backoff.DefaultStrategy()
}

// subscriberURL builds the subscriber handshake target: credential and
// namespace in the query string.
func (c *Config) subscriberURL() (string, error) {
	base := c.SubscriberURL
	if base == "" {
		base = DefaultSubscriberURL
	}
	return c.handshakeURL(base, false)
}

// publisherURL builds the publisher handshake target, which additionally
// requires the map identifier.
func (c *Config) publisherURL() (string, error) {
	base := c.PublisherURL
	if base == "" {
		base = DefaultPublisherURL
	}
	return c.handshakeURL(base, true)
}

func (c *Config) handshakeURL(base string, withMap bool) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", base, err)
	}

	q := u.Query()
	if c.APIKey != "" {
		q.Set("apiKey", c.APIKey)
	} else {
		q.Set("token", c.Token)
	}
	q.Set("namespace", c.Namespace)
	if withMap {
		q.Set("mapUuid", c.MapUUID)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func handshakeHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "tracelet-go/"+version.Version)
	return h
}
