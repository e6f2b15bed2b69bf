package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecodeDispatchesOnEventType(t *testing.T) {
	original := &GreetStarted{
		EventMeta:        NewEventMeta(EventGreetStarted, uuid.New(), uuid.New(), uuid.New(), time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)),
		VehicleTrackID:   "veh-a",
		PersonTrackID:    "per-1",
		ZoneID:           uuid.New(),
		ProximitySeconds: 2.5,
		Confidence:       0.85,
	}

	data, err := EncodeEvent(original)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	greet, ok := decoded.(*GreetStarted)
	require.True(t, ok)
	require.Equal(t, original.EventID, greet.EventID)
	require.Equal(t, "veh-a", greet.VehicleTrackID)
	require.Equal(t, 2.5, greet.ProximitySeconds)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event_type":"teleport"}`))
	require.Error(t, err)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := DecodeEvent([]byte(`{event_type:`))
	require.Error(t, err)
}

func TestEncodeNilEvent(t *testing.T) {
	_, err := EncodeEvent(nil)
	require.Error(t, err)
}

func TestNewEventMetaDefaultsTimestamp(t *testing.T) {
	before := time.Now().UTC()
	meta := NewEventMeta(EventVehicleArrival, uuid.New(), uuid.New(), uuid.New(), time.Time{})
	require.False(t, meta.Timestamp.IsZero())
	require.False(t, meta.Timestamp.Before(before))
	require.NotEqual(t, uuid.Nil, meta.EventID)
}
