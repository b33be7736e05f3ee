// Package publish implements position publication: frame construction,
// identifier normalization, auto-connect, and batch sends with
// partial-failure reporting.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tracelet/tracelet-go/mac"
	"github.com/tracelet/tracelet-go/wire"
)

// Conn is the connection surface the publisher needs, satisfied by
// connection.Manager.
type Conn interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	IsConnected() bool
}

// PositionInput describes one position update to publish.
type PositionInput struct {
	// DeviceID is the device MAC in any accepted textual form.
	DeviceID string

	Lat float64
	Lon float64

	// Optional display fields.
	Name  string
	Color string
	Model string

	// Data is free-form payload attached to the frame.
	Data map[string]any

	// Per-call overrides of the client-level defaults.
	Namespace string
	MapUUID   string
}

// SendResult is the structured outcome of one position send. SendPosition
// never panics and never returns a bare error.
type SendResult struct {
	Success bool
	Err     error
}

// BatchResult aggregates a batch send. Errors holds one description per
// failed input, in input order, each naming the offending identifier.
type BatchResult struct {
	Success bool
	Sent    int
	Failed  int
	Errors  []string
}

// Publisher sends position frames over its own connection.
type Publisher struct {
	conn      Conn
	namespace string
	mapUUID   string
	logger    *slog.Logger
}

// NewPublisher creates a publisher with client-level namespace and map
// defaults.
func NewPublisher(conn Conn, namespace, mapUUID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:      conn,
		namespace: namespace,
		mapUUID:   mapUUID,
		logger:    logger,
	}
}

// SendPosition normalizes the device identifier, connects the underlying
// transport if needed, and sends one position frame tagged as API-originated.
func (p *Publisher) SendPosition(ctx context.Context, in PositionInput) SendResult {
	id, err := mac.Normalize(in.DeviceID)
	if err != nil {
		return SendResult{Err: fmt.Errorf("invalid device identifier: %w", err)}
	}

	if !p.conn.IsConnected() {
		if err := p.conn.Connect(ctx); err != nil {
			return SendResult{Err: fmt.Errorf("connect publisher: %w", err)}
		}
	}

	frame := wire.PositionFrame{
		Lat:          in.Lat,
		Lon:          in.Lon,
		UserUUID:     id,
		UserName:     in.Name,
		Color:        in.Color,
		Model:        in.Model,
		AppNamespace: p.namespace,
		MapUUID:      p.mapUUID,
		Data:         in.Data,
		Origin:       wire.OriginAPI,
	}
	if in.Namespace != "" {
		frame.AppNamespace = in.Namespace
	}
	if in.MapUUID != "" {
		frame.MapUUID = in.MapUUID
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return SendResult{Err: fmt.Errorf("marshal position frame: %w", err)}
	}
	if err := p.conn.Send(data); err != nil {
		return SendResult{Err: fmt.Errorf("send position: %w", err)}
	}

	p.logger.Debug("position published", "device", id, "lat", in.Lat, "lon", in.Lon)
	return SendResult{Success: true}
}

// SendBatch applies SendPosition to every input independently; a failing
// input never aborts the rest of the batch.
func (p *Publisher) SendBatch(ctx context.Context, inputs []PositionInput) BatchResult {
	var res BatchResult
	for _, in := range inputs {
		r := p.SendPosition(ctx, in)
		if r.Success {
			res.Sent++
			continue
		}
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", in.DeviceID, r.Err))
	}
	res.Success = res.Failed == 0
	return res
}
