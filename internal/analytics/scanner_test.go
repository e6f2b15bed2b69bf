package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/espressojuice/dealereye/internal/models"
)

func newScannerFixture(t *testing.T, zones []models.Zone) (*Scanner, *Registry) {
	t.Helper()
	reg := NewRegistry()
	scanner := NewScanner(nil, uuid.New(), uuid.New(), uuid.New(), reg, zones, 0)
	return scanner, reg
}

func TestDwellRearm(t *testing.T) {
	zone := models.Zone{ZoneID: uuid.New(), Type: models.ZoneTypeBay, DwellThresholdSeconds: 2.0}
	scanner, reg := newScannerFixture(t, []models.Zone{zone})

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.Touch("v1", models.ObjectClassVehicle, t0)
	reg.EnterZone("v1", zone.ZoneID, t0)

	// Scan every second for five seconds: the reset after each firing means
	// exactly two dwell events, at t+2s and t+4s.
	var fired []models.Event
	for i := 1; i <= 5; i++ {
		fired = append(fired, scanner.CheckDwell(t0.Add(time.Duration(i)*time.Second))...)
	}

	require.Len(t, fired, 2)
	first := fired[0].(*models.ZoneDwell)
	require.Equal(t, "v1", first.TrackID)
	require.Equal(t, zone.ZoneID, first.ZoneID)
	require.InDelta(t, 2.0, first.DwellSeconds, 1e-9)
	require.Equal(t, t0.Add(2*time.Second), first.Timestamp)

	second := fired[1].(*models.ZoneDwell)
	require.Equal(t, t0.Add(4*time.Second), second.Timestamp)
}

func TestDwellUsesDefaultThreshold(t *testing.T) {
	zone := models.Zone{ZoneID: uuid.New(), Type: models.ZoneTypeWaitingArea}
	scanner, reg := newScannerFixture(t, []models.Zone{zone})

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.Touch("p1", models.ObjectClassPerson, t0)
	reg.EnterZone("p1", zone.ZoneID, t0)

	require.Empty(t, scanner.CheckDwell(t0.Add(1*time.Second)))
	require.Len(t, scanner.CheckDwell(t0.Add(2*time.Second)), 1)
}

func TestDwellIgnoresUnknownZones(t *testing.T) {
	scanner, reg := newScannerFixture(t, nil)

	t0 := time.Now().UTC()
	reg.Touch("v1", models.ObjectClassVehicle, t0)
	reg.EnterZone("v1", uuid.New(), t0)

	require.Empty(t, scanner.CheckDwell(t0.Add(time.Minute)))
}

func TestGreetCrossProduct(t *testing.T) {
	zone := models.Zone{ZoneID: uuid.New(), Type: models.ZoneTypeGreetZone}
	scanner, reg := newScannerFixture(t, []models.Zone{zone})

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"veh-a", "veh-b"} {
		reg.Touch(id, models.ObjectClassVehicle, t0)
		reg.EnterZone(id, zone.ZoneID, t0)
	}
	reg.Touch("per-a", models.ObjectClassPerson, t0)
	reg.EnterZone("per-a", zone.ZoneID, t0)

	// 2 vehicles x 1 person resident >= 1s: exactly one event per pair.
	events := scanner.CheckGreetProximity(t0.Add(1500 * time.Millisecond))
	require.Len(t, events, 2)

	vehicles := map[string]bool{}
	for _, ev := range events {
		greet := ev.(*models.GreetStarted)
		require.Equal(t, "per-a", greet.PersonTrackID)
		require.Equal(t, zone.ZoneID, greet.ZoneID)
		require.InDelta(t, 1.5, greet.ProximitySeconds, 1e-9)
		vehicles[greet.VehicleTrackID] = true
	}
	require.True(t, vehicles["veh-a"])
	require.True(t, vehicles["veh-b"])
}

func TestGreetRequiresMinimumPresence(t *testing.T) {
	zone := models.Zone{ZoneID: uuid.New(), Type: models.ZoneTypeGreetZone}
	scanner, reg := newScannerFixture(t, []models.Zone{zone})

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.Touch("veh-a", models.ObjectClassVehicle, t0)
	reg.EnterZone("veh-a", zone.ZoneID, t0)
	// The person arrived moments ago; min(vehicle, person) dwell < 1s.
	reg.Touch("per-a", models.ObjectClassPerson, t0)
	reg.EnterZone("per-a", zone.ZoneID, t0.Add(4*time.Second))

	require.Empty(t, scanner.CheckGreetProximity(t0.Add(4500*time.Millisecond)))
	require.Len(t, scanner.CheckGreetProximity(t0.Add(5*time.Second)), 1)
}

func TestGreetIgnoresNonGreetZones(t *testing.T) {
	zone := models.Zone{ZoneID: uuid.New(), Type: models.ZoneTypeLobby}
	scanner, reg := newScannerFixture(t, []models.Zone{zone})

	t0 := time.Now().UTC()
	reg.Touch("veh-a", models.ObjectClassVehicle, t0)
	reg.EnterZone("veh-a", zone.ZoneID, t0)
	reg.Touch("per-a", models.ObjectClassPerson, t0)
	reg.EnterZone("per-a", zone.ZoneID, t0)

	require.Empty(t, scanner.CheckGreetProximity(t0.Add(time.Minute)))
}

func TestSweepCombinesChecks(t *testing.T) {
	greet := models.Zone{ZoneID: uuid.New(), Type: models.ZoneTypeGreetZone, DwellThresholdSeconds: 2.0}
	scanner, reg := newScannerFixture(t, []models.Zone{greet})

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.Touch("veh-a", models.ObjectClassVehicle, t0)
	reg.EnterZone("veh-a", greet.ZoneID, t0)
	reg.Touch("per-a", models.ObjectClassPerson, t0)
	reg.EnterZone("per-a", greet.ZoneID, t0)

	events := scanner.Sweep(t0.Add(3 * time.Second))

	var dwells, greets int
	for _, ev := range events {
		switch ev.(type) {
		case *models.ZoneDwell:
			dwells++
		case *models.GreetStarted:
			greets++
		}
	}
	require.Equal(t, 2, dwells) // one per resident track
	require.Equal(t, 1, greets)
}
