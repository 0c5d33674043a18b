// Package dispatch fans a payload out to every open connection of one user.
// Delivery is best-effort and at-most-once: no retry, no queueing. Anything
// stronger belongs to the notification log service upstream.
package dispatch

import (
	"context"
	"log/slog"

	"notify-service/internal/registry"
)

// DeliveryReport summarizes one fan-out. A dispatch to a user with zero
// open connections is the normal offline case: zero attempted, zero failed.
type DeliveryReport struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func New(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: reg, logger: logger}
}

// Dispatch pushes payload to every open connection of identity. A failed
// send is isolated to its connection: the connection is dropped from the
// registry and closed, and delivery to the remaining connections proceeds.
func (d *Dispatcher) Dispatch(ctx context.Context, identity string, payload []byte) DeliveryReport {
	conns := d.registry.ListFor(identity)

	var report DeliveryReport
	for _, conn := range conns {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++

		if err := conn.Send(payload); err != nil {
			report.Failed++
			d.logger.Warn("dropping connection after failed send",
				"userID", identity, "connID", conn.ID(), "error", err)
			d.registry.Remove(identity, conn)
			conn.Close()
			continue
		}
		report.Delivered++
	}

	return report
}
