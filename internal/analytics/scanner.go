package analytics

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/espressojuice/dealereye/internal/models"
)

const (
	// defaultDwellThresholdSeconds applies when a zone has no override.
	defaultDwellThresholdSeconds = 2.0

	// greetMinPresenceSeconds is how long both parties must be resident in a
	// greet zone before a pair counts as a greet.
	greetMinPresenceSeconds = 1.0

	dwellConfidence = 0.9
	greetConfidence = 0.85
)

// Scanner sweeps the registry on a fixed cadence and emits dwell and
// greet-proximity events independent of new primitives arriving.
type Scanner struct {
	logger       *slog.Logger
	tenantID     uuid.UUID
	siteID       uuid.UUID
	cameraID     uuid.UUID
	registry     *Registry
	zones        map[uuid.UUID]models.Zone
	defaultDwell float64
}

// NewScanner constructs a scanner over the same registry the classifier writes.
// defaultDwell is the fallback threshold in seconds; <= 0 selects the default.
func NewScanner(logger *slog.Logger, tenantID, siteID, cameraID uuid.UUID, registry *Registry, zones []models.Zone, defaultDwell float64) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultDwell <= 0 {
		defaultDwell = defaultDwellThresholdSeconds
	}
	zoneMap := make(map[uuid.UUID]models.Zone, len(zones))
	for _, zone := range zones {
		zoneMap[zone.ZoneID] = zone
	}
	return &Scanner{
		logger:       logger,
		tenantID:     tenantID,
		siteID:       siteID,
		cameraID:     cameraID,
		registry:     registry,
		zones:        zoneMap,
		defaultDwell: defaultDwell,
	}
}

// Sweep runs both periodic checks against the registry at the given instant.
// Greet proximity runs first: the dwell check resets entry times when it
// fires, which would zero the residency the greet pairing reads.
func (s *Scanner) Sweep(now time.Time) []models.Event {
	events := s.CheckGreetProximity(now)
	return append(events, s.CheckDwell(now)...)
}

// CheckDwell emits a ZoneDwell event for every (track, zone) residency that
// reached its threshold, then resets the entry time to now. The reset re-arms
// the check so a resident track fires once per threshold interval instead of
// once per tick.
func (s *Scanner) CheckDwell(now time.Time) []models.Event {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	var events []models.Event
	for trackID, obj := range s.registry.tracks {
		for zoneID, entry := range obj.ZoneEntryTimes {
			zone, ok := s.zones[zoneID]
			if !ok {
				continue
			}
			threshold := zone.DwellThresholdSeconds
			if threshold <= 0 {
				threshold = s.defaultDwell
			}
			dwell := now.Sub(entry).Seconds()
			if dwell < threshold {
				continue
			}

			events = append(events, &models.ZoneDwell{
				EventMeta:    models.NewEventMeta(models.EventZoneDwell, s.tenantID, s.siteID, s.cameraID, now),
				TrackID:      trackID,
				ObjectClass:  obj.ObjectClass,
				ZoneID:       zoneID,
				DwellSeconds: dwell,
				Confidence:   dwellConfidence,
			})
			obj.ZoneEntryTimes[zoneID] = now
		}
	}
	return events
}

// CheckGreetProximity emits a GreetStarted event for every (vehicle, person)
// pair simultaneously resident in a greet zone for at least the minimum
// presence. Deliberately a full cross product: two vehicles and two persons
// yield four events per tick, one per pair.
func (s *Scanner) CheckGreetProximity(now time.Time) []models.Event {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	var events []models.Event
	for zoneID, zone := range s.zones {
		if zone.Type != models.ZoneTypeGreetZone {
			continue
		}

		var vehicles, persons []*TrackedObject
		for _, obj := range s.registry.tracks {
			if _, resident := obj.ZoneEntryTimes[zoneID]; !resident {
				continue
			}
			switch obj.ObjectClass {
			case models.ObjectClassVehicle:
				vehicles = append(vehicles, obj)
			case models.ObjectClassPerson:
				persons = append(persons, obj)
			}
		}

		for _, vehicle := range vehicles {
			vehicleDwell := now.Sub(vehicle.ZoneEntryTimes[zoneID]).Seconds()
			for _, person := range persons {
				personDwell := now.Sub(person.ZoneEntryTimes[zoneID]).Seconds()
				proximity := vehicleDwell
				if personDwell < proximity {
					proximity = personDwell
				}
				if proximity < greetMinPresenceSeconds {
					continue
				}

				events = append(events, &models.GreetStarted{
					EventMeta:        models.NewEventMeta(models.EventGreetStarted, s.tenantID, s.siteID, s.cameraID, now),
					VehicleTrackID:   vehicle.TrackID,
					PersonTrackID:    person.TrackID,
					ZoneID:           zoneID,
					ProximitySeconds: proximity,
					Confidence:       greetConfidence,
				})
			}
		}
	}
	return events
}
