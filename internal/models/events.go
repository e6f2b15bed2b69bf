package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the domain events derived from perception primitives.
type EventType string

const (
	EventVehicleArrival    EventType = "vehicle_arrival"
	EventVehicleExit       EventType = "vehicle_exit"
	EventGreetStarted      EventType = "greet_started"
	EventBayEntry          EventType = "bay_entry"
	EventBayExit           EventType = "bay_exit"
	EventLobbyEnter        EventType = "lobby_enter"
	EventLobbyExit         EventType = "lobby_exit"
	EventZoneDwell         EventType = "zone_dwell"
	EventLineCrossing      EventType = "line_crossing"
	EventPerimeterCrossing EventType = "perimeter_crossing"
	EventSystemHeartbeat   EventType = "system_heartbeat"
)

// EventMeta carries the fields common to every domain event. Events are
// immutable once emitted.
type EventMeta struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	TenantID  uuid.UUID `json:"tenant_id"`
	SiteID    uuid.UUID `json:"site_id"`
	CameraID  uuid.UUID `json:"camera_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Meta returns the shared event fields; it also lets embedding structs satisfy Event.
func (m *EventMeta) Meta() *EventMeta { return m }

// Event is the closed set of domain events. Consumers dispatch with a type
// switch over the concrete structs below.
type Event interface {
	Meta() *EventMeta
}

// NewEventMeta stamps a fresh event identity with the given context and timestamp.
func NewEventMeta(t EventType, tenantID, siteID, cameraID uuid.UUID, ts time.Time) EventMeta {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return EventMeta{
		EventID:   uuid.New(),
		EventType: t,
		TenantID:  tenantID,
		SiteID:    siteID,
		CameraID:  cameraID,
		Timestamp: ts,
	}
}

// VehicleArrival fires when a vehicle crosses an entry line into the service lane.
type VehicleArrival struct {
	EventMeta
	TrackID    string    `json:"track_id"`
	LineID     uuid.UUID `json:"line_id"`
	Confidence float64   `json:"confidence"`
}

// VehicleExit fires when a vehicle crosses an exit line out of the service lane.
type VehicleExit struct {
	EventMeta
	TrackID    string    `json:"track_id"`
	LineID     uuid.UUID `json:"line_id"`
	Confidence float64   `json:"confidence"`
}

// GreetStarted fires for each (vehicle, person) pair simultaneously resident in
// a greet zone.
type GreetStarted struct {
	EventMeta
	VehicleTrackID   string    `json:"vehicle_track_id"`
	PersonTrackID    string    `json:"person_track_id"`
	ZoneID           uuid.UUID `json:"zone_id"`
	ProximitySeconds float64   `json:"proximity_seconds"`
	Confidence       float64   `json:"confidence"`
}

// BayEntry fires when a vehicle crosses a bay-entry line. The bay identifier is
// the crossed line's identifier.
type BayEntry struct {
	EventMeta
	TrackID    string    `json:"track_id"`
	BayID      uuid.UUID `json:"bay_id"`
	Confidence float64   `json:"confidence"`
}

// BayExit fires when a vehicle crosses a bay-exit line.
type BayExit struct {
	EventMeta
	TrackID    string    `json:"track_id"`
	BayID      uuid.UUID `json:"bay_id"`
	Confidence float64   `json:"confidence"`
}

// LobbyEnter fires when a person crosses a door line in the forward direction.
type LobbyEnter struct {
	EventMeta
	TrackID    string    `json:"track_id"`
	DoorID     uuid.UUID `json:"door_id"`
	Confidence float64   `json:"confidence"`
}

// LobbyExit fires when a person crosses a door line against the forward direction.
type LobbyExit struct {
	EventMeta
	TrackID    string    `json:"track_id"`
	DoorID     uuid.UUID `json:"door_id"`
	Confidence float64   `json:"confidence"`
}

// ZoneDwell fires when a track has stayed in a zone beyond its dwell threshold.
type ZoneDwell struct {
	EventMeta
	TrackID      string      `json:"track_id"`
	ObjectClass  ObjectClass `json:"object_class"`
	ZoneID       uuid.UUID   `json:"zone_id"`
	DwellSeconds float64     `json:"dwell_seconds"`
	Confidence   float64     `json:"confidence"`
}

// LineCrossing is the generic fallback for crossings without a dedicated event.
type LineCrossing struct {
	EventMeta
	TrackID     string      `json:"track_id"`
	ObjectClass ObjectClass `json:"object_class"`
	LineID      uuid.UUID   `json:"line_id"`
	Direction   string      `json:"direction"`
	Confidence  float64     `json:"confidence"`
}

// PerimeterCrossing reports an after-hours crossing of the lot perimeter.
type PerimeterCrossing struct {
	EventMeta
	TrackID      string      `json:"track_id"`
	ObjectClass  ObjectClass `json:"object_class"`
	PerimeterID  uuid.UUID   `json:"perimeter_id"`
	IsAfterHours bool        `json:"is_after_hours"`
	Confidence   float64     `json:"confidence"`
}

// SystemHeartbeat carries health telemetry from an edge pipeline.
type SystemHeartbeat struct {
	EventMeta
	FPS              float64 `json:"fps"`
	DroppedFramesPct float64 `json:"dropped_frames_pct"`
	UptimeSeconds    int64   `json:"edge_uptime_seconds"`
	PrimitivesSeen   uint64  `json:"primitives_seen"`
}

var eventRegistry = map[EventType]func() Event{
	EventVehicleArrival:    func() Event { return &VehicleArrival{} },
	EventVehicleExit:       func() Event { return &VehicleExit{} },
	EventGreetStarted:      func() Event { return &GreetStarted{} },
	EventBayEntry:          func() Event { return &BayEntry{} },
	EventBayExit:           func() Event { return &BayExit{} },
	EventLobbyEnter:        func() Event { return &LobbyEnter{} },
	EventLobbyExit:         func() Event { return &LobbyExit{} },
	EventZoneDwell:         func() Event { return &ZoneDwell{} },
	EventLineCrossing:      func() Event { return &LineCrossing{} },
	EventPerimeterCrossing: func() Event { return &PerimeterCrossing{} },
	EventSystemHeartbeat:   func() Event { return &SystemHeartbeat{} },
}

// EncodeEvent serialises an event to its JSON wire form.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("encode event: nil event")
	}
	return json.Marshal(ev)
}

// DecodeEvent parses the JSON wire form back into the concrete event type,
// using the event_type envelope field to select the target struct.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		EventType EventType `json:"event_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	ctor, ok := eventRegistry[head.EventType]
	if !ok {
		return nil, fmt.Errorf("decode event: unknown event type %q", head.EventType)
	}
	ev := ctor()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.EventType, err)
	}
	return ev, nil
}
