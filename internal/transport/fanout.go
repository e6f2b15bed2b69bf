package transport

import (
	"context"
	"errors"

	"github.com/espressojuice/dealereye/internal/models"
)

// Fanout publishes every event to each wrapped publisher in order. Failures
// are collected, not short-circuited, so one slow destination cannot starve
// the others.
type Fanout struct {
	publishers []Publisher
}

// NewFanout wires a fanout over the given publishers. Nil entries are skipped.
func NewFanout(publishers ...Publisher) *Fanout {
	kept := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Fanout{publishers: kept}
}

// Publish forwards the event to every destination and joins any errors.
func (f *Fanout) Publish(ctx context.Context, ev models.Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
