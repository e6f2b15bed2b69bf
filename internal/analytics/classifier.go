package analytics

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/espressojuice/dealereye/internal/metrics"
	"github.com/espressojuice/dealereye/internal/models"
)

// Classifier maps raw crossing/entry/exit primitives to typed domain events
// using the static semantics of the referenced line. Zone primitives only
// mutate the registry and never produce an event themselves.
type Classifier struct {
	logger   *slog.Logger
	tenantID uuid.UUID
	siteID   uuid.UUID
	cameraID uuid.UUID
	registry *Registry
	zones    map[uuid.UUID]models.Zone
	lines    map[uuid.UUID]models.Line
}

// NewClassifier constructs a classifier bound to one camera's registry.
func NewClassifier(logger *slog.Logger, tenantID, siteID, cameraID uuid.UUID, registry *Registry) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger:   logger,
		tenantID: tenantID,
		siteID:   siteID,
		cameraID: cameraID,
		registry: registry,
		zones:    make(map[uuid.UUID]models.Zone),
		lines:    make(map[uuid.UUID]models.Line),
	}
}

// LoadZones replaces the zone configuration.
func (c *Classifier) LoadZones(zones []models.Zone) {
	c.zones = make(map[uuid.UUID]models.Zone, len(zones))
	for _, zone := range zones {
		c.zones[zone.ZoneID] = zone
	}
}

// LoadLines replaces the line configuration.
func (c *Classifier) LoadLines(lines []models.Line) {
	c.lines = make(map[uuid.UUID]models.Line, len(lines))
	for _, line := range lines {
		c.lines[line.LineID] = line
	}
}

// HandlePrimitive processes one primitive and returns the resulting domain
// event, or nil when the primitive only updated state.
func (c *Classifier) HandlePrimitive(p models.Primitive) models.Event {
	now := p.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}
	metrics.ObservePrimitive(string(p.Kind))

	switch p.Kind {
	case models.PrimitiveLineCrossing:
		return c.onLineCrossing(p, now)
	case models.PrimitiveZoneEntry:
		c.registry.Touch(p.TrackID, p.ObjectClass, now)
		c.registry.EnterZone(p.TrackID, p.ReferenceID, now)
		return nil
	case models.PrimitiveZoneExit:
		c.registry.ExitZone(p.TrackID, p.ReferenceID)
		return nil
	default:
		c.logger.Warn("unknown primitive kind", slog.String("kind", string(p.Kind)))
		return nil
	}
}

func (c *Classifier) onLineCrossing(p models.Primitive, now time.Time) models.Event {
	c.registry.Touch(p.TrackID, p.ObjectClass, now)

	line, ok := c.lines[p.ReferenceID]
	if !ok {
		metrics.IncClassificationMiss()
		c.logger.Debug("crossing references unknown line",
			slog.String("line_id", p.ReferenceID.String()),
			slog.String("track_id", p.TrackID))
		return nil
	}
	c.registry.RecordLineCrossing(p.TrackID, line.LineID)

	meta := func(t models.EventType) models.EventMeta {
		return models.NewEventMeta(t, c.tenantID, c.siteID, c.cameraID, now)
	}

	switch line.Type {
	case models.LineTypeEntry:
		return &models.VehicleArrival{
			EventMeta:  meta(models.EventVehicleArrival),
			TrackID:    p.TrackID,
			LineID:     line.LineID,
			Confidence: p.Confidence,
		}
	case models.LineTypeExit:
		return &models.VehicleExit{
			EventMeta:  meta(models.EventVehicleExit),
			TrackID:    p.TrackID,
			LineID:     line.LineID,
			Confidence: p.Confidence,
		}
	case models.LineTypeBayEntry:
		// The crossed line doubles as the bay identifier.
		return &models.BayEntry{
			EventMeta:  meta(models.EventBayEntry),
			TrackID:    p.TrackID,
			BayID:      line.LineID,
			Confidence: p.Confidence,
		}
	case models.LineTypeBayExit:
		return &models.BayExit{
			EventMeta:  meta(models.EventBayExit),
			TrackID:    p.TrackID,
			BayID:      line.LineID,
			Confidence: p.Confidence,
		}
	case models.LineTypeDoor:
		if p.ObjectClass == models.ObjectClassPerson {
			if p.Direction == "forward" {
				return &models.LobbyEnter{
					EventMeta:  meta(models.EventLobbyEnter),
					TrackID:    p.TrackID,
					DoorID:     line.LineID,
					Confidence: p.Confidence,
				}
			}
			return &models.LobbyExit{
				EventMeta:  meta(models.EventLobbyExit),
				TrackID:    p.TrackID,
				DoorID:     line.LineID,
				Confidence: p.Confidence,
			}
		}
	}

	// Door crossings by non-persons, perimeter and custom lines all fall
	// through to the generic crossing event.
	return &models.LineCrossing{
		EventMeta:   meta(models.EventLineCrossing),
		TrackID:     p.TrackID,
		ObjectClass: p.ObjectClass,
		LineID:      line.LineID,
		Direction:   p.Direction,
		Confidence:  p.Confidence,
	}
}
