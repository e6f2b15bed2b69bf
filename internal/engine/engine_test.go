package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/espressojuice/dealereye/internal/models"
)

type captureSink struct {
	values []models.MetricValue
}

func (s *captureSink) Record(mv models.MetricValue) {
	s.values = append(s.values, mv)
}

var baseTime = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

type eventBuilder struct {
	tenantID uuid.UUID
	siteID   uuid.UUID
	cameraID uuid.UUID
}

func newBuilder() eventBuilder {
	return eventBuilder{tenantID: uuid.New(), siteID: uuid.New(), cameraID: uuid.New()}
}

func (b eventBuilder) meta(t models.EventType, ts time.Time) models.EventMeta {
	return models.NewEventMeta(t, b.tenantID, b.siteID, b.cameraID, ts)
}

func (b eventBuilder) arrival(track string, ts time.Time) *models.VehicleArrival {
	return &models.VehicleArrival{EventMeta: b.meta(models.EventVehicleArrival, ts), TrackID: track, LineID: uuid.New(), Confidence: 0.9}
}

func (b eventBuilder) greet(vehicleTrack string, ts time.Time) *models.GreetStarted {
	return &models.GreetStarted{EventMeta: b.meta(models.EventGreetStarted, ts), VehicleTrackID: vehicleTrack, PersonTrackID: "staff-1", ZoneID: uuid.New(), ProximitySeconds: 1.5, Confidence: 0.85}
}

func (b eventBuilder) bayEntry(track string, bay uuid.UUID, ts time.Time) *models.BayEntry {
	return &models.BayEntry{EventMeta: b.meta(models.EventBayEntry, ts), TrackID: track, BayID: bay, Confidence: 0.9}
}

func (b eventBuilder) bayExit(track string, bay uuid.UUID, ts time.Time) *models.BayExit {
	return &models.BayExit{EventMeta: b.meta(models.EventBayExit, ts), TrackID: track, BayID: bay, Confidence: 0.9}
}

func (b eventBuilder) lobbyEnter(ts time.Time) *models.LobbyEnter {
	return &models.LobbyEnter{EventMeta: b.meta(models.EventLobbyEnter, ts), TrackID: "p1", DoorID: uuid.New(), Confidence: 0.9}
}

func (b eventBuilder) lobbyExit(ts time.Time) *models.LobbyExit {
	return &models.LobbyExit{EventMeta: b.meta(models.EventLobbyExit, ts), TrackID: "p1", DoorID: uuid.New(), Confidence: 0.9}
}

func TestTTGNearestPrecedingArrival(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})

	// Arrivals for the same track at t=0s and t=90s; the greet at t=100s
	// must match the nearest preceding arrival, not the first.
	eng.Process(b.arrival("veh-a", baseTime))
	eng.Process(b.arrival("veh-a", baseTime.Add(90*time.Second)))

	values := eng.Process(b.greet("veh-a", baseTime.Add(100*time.Second)))
	require.Len(t, values, 1)
	mv := values[0]
	require.Equal(t, models.MetricTimeToGreet, mv.Name)
	require.InDelta(t, 10.0, mv.Value, 1e-9)
	require.Equal(t, "seconds", mv.Unit)
	require.False(t, mv.IsEstimated)
	require.Equal(t, b.siteID, mv.SiteID)
}

func TestTTGOutsideMatchWindow(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})

	eng.Process(b.arrival("veh-a", baseTime))
	// 400s later is beyond the 5 minute window: no metric.
	values := eng.Process(b.greet("veh-a", baseTime.Add(400*time.Second)))
	require.Empty(t, values)
}

func TestTTGIgnoresOtherTracksAndLaterArrivals(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})

	eng.Process(b.arrival("veh-other", baseTime.Add(50*time.Second)))
	// Arrival after the greet must not match either.
	eng.Process(b.arrival("veh-a", baseTime.Add(120*time.Second)))

	values := eng.Process(b.greet("veh-a", baseTime.Add(60*time.Second)))
	require.Empty(t, values)
}

func TestRackTimeLastEntryWins(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})
	bay := uuid.New()

	eng.Process(b.bayEntry("veh-a", bay, baseTime))
	eng.Process(b.bayEntry("veh-a", bay, baseTime.Add(5*time.Minute)))

	values := eng.Process(b.bayExit("veh-a", bay, baseTime.Add(8*time.Minute)))
	require.Len(t, values, 1)
	mv := values[0]
	require.Equal(t, models.MetricRackTime, mv.Name)
	// exit - second entry, not the first.
	require.InDelta(t, 180.0, mv.Value, 1e-9)
	require.True(t, mv.IsEstimated)
	require.Equal(t, bay.String(), mv.Dimensions["bay_id"])
}

func TestRackTimeUnmatchedExit(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})

	values := eng.Process(b.bayExit("veh-a", uuid.New(), baseTime))
	require.Empty(t, values)

	// The entry is consumed on exit: a second exit has nothing to match.
	eng.Process(b.bayEntry("veh-b", uuid.New(), baseTime))
	require.Len(t, eng.Process(b.bayExit("veh-b", uuid.New(), baseTime.Add(time.Minute))), 1)
	require.Empty(t, eng.Process(b.bayExit("veh-b", uuid.New(), baseTime.Add(2*time.Minute))))
}

func TestLobbyOccupancyFloorsAtZero(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})

	for i := 0; i < 3; i++ {
		values := eng.Process(b.lobbyExit(baseTime.Add(time.Duration(i) * time.Second)))
		require.Len(t, values, 1)
		require.Equal(t, 0.0, values[0].Value)
	}
	require.Equal(t, 0, eng.LobbyOccupancy(b.siteID))
}

func TestLobbyOccupancyPointSamples(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})

	first := eng.Process(b.lobbyEnter(baseTime))
	require.Equal(t, 1.0, first[0].Value)
	require.Equal(t, models.MetricLobbyOccupancy, first[0].Name)
	require.Equal(t, "persons", first[0].Unit)

	second := eng.Process(b.lobbyEnter(baseTime.Add(time.Second)))
	require.Equal(t, 2.0, second[0].Value)

	third := eng.Process(b.lobbyExit(baseTime.Add(2 * time.Second)))
	require.Equal(t, 1.0, third[0].Value)
	require.Equal(t, 1, eng.LobbyOccupancy(b.siteID))
}

func TestThroughputCountsDistinctTracks(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{})

	eng.Process(b.arrival("veh-a", baseTime.Add(1*time.Minute)))
	eng.Process(b.arrival("veh-a", baseTime.Add(2*time.Minute))) // tracking handoff re-entry
	eng.Process(b.arrival("veh-b", baseTime.Add(3*time.Minute)))
	eng.Process(b.arrival("veh-c", baseTime.Add(30*time.Minute)))

	count := eng.Throughput(b.siteID, baseTime, baseTime.Add(10*time.Minute))
	require.Equal(t, 2, count)

	// Closed range: boundary arrivals count.
	count = eng.Throughput(b.siteID, baseTime.Add(3*time.Minute), baseTime.Add(30*time.Minute))
	require.Equal(t, 2, count)
}

func TestArrivalBufferPrunedOnWrite(t *testing.T) {
	b := newBuilder()
	eng := New(nil, nil, Config{ArrivalRetention: 10 * time.Minute})

	eng.Process(b.arrival("veh-old", baseTime))
	eng.Process(b.arrival("veh-new", baseTime.Add(15*time.Minute)))

	// veh-old fell out of the retention horizon when veh-new arrived.
	require.Equal(t, 0, eng.Throughput(b.siteID, baseTime, baseTime.Add(time.Minute)))
	require.Equal(t, 1, eng.Throughput(b.siteID, baseTime, baseTime.Add(20*time.Minute)))
}

func TestMalformedEventSkipped(t *testing.T) {
	b := newBuilder()
	sink := &captureSink{}
	eng := New(nil, sink, Config{})

	missingSite := b.arrival("veh-a", baseTime)
	missingSite.SiteID = uuid.Nil
	require.Empty(t, eng.Process(missingSite))

	missingTime := b.greet("veh-a", baseTime)
	missingTime.Timestamp = time.Time{}
	require.Empty(t, eng.Process(missingTime))

	require.Empty(t, sink.values)

	// Processing continues after bad events.
	eng.Process(b.arrival("veh-a", baseTime))
	require.Len(t, eng.Process(b.greet("veh-a", baseTime.Add(30*time.Second))), 1)
	require.Len(t, sink.values, 1)
}

func TestSinkReceivesValues(t *testing.T) {
	b := newBuilder()
	sink := &captureSink{}
	eng := New(nil, sink, Config{})

	eng.Process(b.lobbyEnter(baseTime))
	require.Len(t, sink.values, 1)
	require.Equal(t, models.MetricLobbyOccupancy, sink.values[0].Name)
}

func TestSitesIsolated(t *testing.T) {
	b1 := newBuilder()
	b2 := newBuilder()
	eng := New(nil, nil, Config{})

	eng.Process(b1.arrival("veh-a", baseTime))
	require.Equal(t, 0, eng.Throughput(b2.siteID, baseTime.Add(-time.Minute), baseTime.Add(time.Minute)))
	require.Equal(t, 1, eng.Throughput(b1.siteID, baseTime.Add(-time.Minute), baseTime.Add(time.Minute)))
}
