package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ObjectClass identifies the detected class of a tracked object.
type ObjectClass string

const (
	ObjectClassPerson     ObjectClass = "person"
	ObjectClassVehicle    ObjectClass = "vehicle"
	ObjectClassBicycle    ObjectClass = "bicycle"
	ObjectClassMotorcycle ObjectClass = "motorcycle"
	ObjectClassTruck      ObjectClass = "truck"
	ObjectClassBus        ObjectClass = "bus"
)

// ZoneType describes the business semantics of a configured zone.
type ZoneType string

const (
	ZoneTypeGreetZone   ZoneType = "greet_zone"
	ZoneTypeBay         ZoneType = "bay"
	ZoneTypeLobby       ZoneType = "lobby"
	ZoneTypeWaitingArea ZoneType = "waiting_area"
	ZoneTypePerimeter   ZoneType = "perimeter"
	ZoneTypeParking     ZoneType = "parking"
	ZoneTypeCustom      ZoneType = "custom"
)

// LineType describes the business semantics of a configured line.
type LineType string

const (
	LineTypeEntry     LineType = "entry"
	LineTypeExit      LineType = "exit"
	LineTypeBayEntry  LineType = "bay_entry"
	LineTypeBayExit   LineType = "bay_exit"
	LineTypeDoor      LineType = "door"
	LineTypePerimeter LineType = "perimeter"
	LineTypeCustom    LineType = "custom"
)

// ParseZoneType validates a zone type string from configuration.
func ParseZoneType(s string) (ZoneType, error) {
	switch t := ZoneType(s); t {
	case ZoneTypeGreetZone, ZoneTypeBay, ZoneTypeLobby, ZoneTypeWaitingArea,
		ZoneTypePerimeter, ZoneTypeParking, ZoneTypeCustom:
		return t, nil
	}
	return "", fmt.Errorf("unknown zone type %q", s)
}

// ParseLineType validates a line type string from configuration.
func ParseLineType(s string) (LineType, error) {
	switch t := LineType(s); t {
	case LineTypeEntry, LineTypeExit, LineTypeBayEntry, LineTypeBayExit,
		LineTypeDoor, LineTypePerimeter, LineTypeCustom:
		return t, nil
	}
	return "", fmt.Errorf("unknown line type %q", s)
}

// Point is a pixel coordinate in the camera frame.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Zone is a static polygonal region with business semantics, configured per camera.
type Zone struct {
	ZoneID   uuid.UUID `json:"zone_id"`
	CameraID uuid.UUID `json:"camera_id"`
	Name     string    `json:"name"`
	Type     ZoneType  `json:"zone_type"`
	Points   []Point   `json:"points"`

	// DwellThresholdSeconds overrides the default dwell threshold when > 0.
	DwellThresholdSeconds float64 `json:"dwell_threshold_seconds,omitempty"`
}

// Line is a static crossing line with business semantics, configured per camera.
type Line struct {
	LineID   uuid.UUID `json:"line_id"`
	CameraID uuid.UUID `json:"camera_id"`
	Name     string    `json:"name"`
	Type     LineType  `json:"line_type"`
	Points   []Point   `json:"points"`

	// Direction labels the forward crossing direction, e.g. "northbound".
	Direction string `json:"direction,omitempty"`
}

// PrimitiveKind distinguishes the raw geometric events produced by perception.
type PrimitiveKind string

const (
	PrimitiveLineCrossing PrimitiveKind = "line_crossing"
	PrimitiveZoneEntry    PrimitiveKind = "zone_entry"
	PrimitiveZoneExit     PrimitiveKind = "zone_exit"
)

// Primitive is a raw perception event before semantic interpretation. ReferenceID
// names the line or zone the primitive refers to, depending on Kind.
type Primitive struct {
	TrackID     string        `json:"track_id"`
	Kind        PrimitiveKind `json:"kind"`
	ReferenceID uuid.UUID     `json:"reference_id"`
	Direction   string        `json:"direction,omitempty"`
	Confidence  float64       `json:"confidence"`
	ObjectClass ObjectClass   `json:"object_class"`
	TenantID    uuid.UUID     `json:"tenant_id"`
	SiteID      uuid.UUID     `json:"site_id"`
	CameraID    uuid.UUID     `json:"camera_id"`
	Timestamp   time.Time     `json:"timestamp"`
}
