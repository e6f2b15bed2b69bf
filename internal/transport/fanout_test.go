package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/espressojuice/dealereye/internal/models"
)

type recordingPublisher struct {
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func heartbeat() models.Event {
	return &models.SystemHeartbeat{
		EventMeta: models.NewEventMeta(models.EventSystemHeartbeat, uuid.New(), uuid.New(), uuid.New(), time.Now().UTC()),
	}
}

func TestFanoutDeliversToAll(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{}
	f := NewFanout(a, nil, b)

	require.NoError(t, f.Publish(context.Background(), heartbeat()))
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	f := NewFanout(failing, ok)

	err := f.Publish(context.Background(), heartbeat())
	require.Error(t, err)
	// The healthy destination still received the event.
	require.Len(t, ok.events, 1)
}
