// Package events bridges business events (task, comment and status changes
// published by the CRM services) from Kafka into the notification
// dispatcher. The consumer is the concrete "business logic elsewhere" that
// triggers pushes; it owns no connection state.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"notify-service/internal/dispatch"
)

// Notification is the event envelope on the wire. Payload stays opaque:
// this subsystem does not define business message schemas.
type Notification struct {
	UserID  string          `json:"userId"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// frame is what connected clients receive for one notification.
type frame struct {
	Type      string          `json:"type"`
	Event     string          `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Reader abstracts kafka.Reader so tests can feed messages directly.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewReader builds a group consumer for the notification topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	})
}

type Consumer struct {
	reader     Reader
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

func NewConsumer(reader Reader, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: reader, dispatcher: dispatcher, logger: logger}
}

// Run consumes and dispatches until ctx is cancelled. Malformed events are
// logged and skipped; only the reader failing ends the loop with an error.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read notification event: %w", err)
		}

		c.handle(ctx, msg.Value)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, raw []byte) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		c.logger.Warn("skipping malformed notification event", "error", err)
		return
	}
	if n.UserID == "" {
		c.logger.Warn("skipping notification event without userId", "event", n.Event)
		return
	}

	data, err := json.Marshal(frame{
		Type:      "notification",
		Event:     n.Event,
		Payload:   n.Payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		c.logger.Error("marshal notification frame", "error", err)
		return
	}

	report := c.dispatcher.Dispatch(ctx, n.UserID, data)
	c.logger.Debug("notification dispatched",
		"userID", n.UserID, "event", n.Event,
		"attempted", report.Attempted, "delivered", report.Delivered, "failed", report.Failed)
}
