// Package transport moves domain events between the camera pipelines and the
// control plane, either in-process or across a Kafka topic.
package transport

import (
	"context"

	"github.com/espressojuice/dealereye/internal/models"
)

// Publisher accepts domain events for delivery. Implementations must not
// block the caller on broker round-trips.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Handler consumes decoded domain events on the receiving side.
type Handler interface {
	Handle(ctx context.Context, ev models.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev models.Event) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev models.Event) error {
	return f(ctx, ev)
}
