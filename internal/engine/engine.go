// Package engine correlates domain events across time to derive business
// metrics: time-to-greet, rack time, lobby occupancy and drive throughput.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/espressojuice/dealereye/internal/metrics"
	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/utils"
)

const (
	defaultTTGMatchWindow   = 5 * time.Minute
	defaultArrivalRetention = time.Hour
)

// Sink receives computed metric values. Record must not block; delivery is
// best-effort from the engine's perspective.
type Sink interface {
	Record(models.MetricValue)
}

// Config tunes the correlation windows. Zero values select the defaults.
type Config struct {
	TTGMatchWindow   time.Duration
	ArrivalRetention time.Duration
}

type arrivalRecord struct {
	trackID string
	at      time.Time
}

// siteState holds the correlation buffers for one site. Guarded by its own
// mutex because events from all cameras at the site, and from both producers
// (classifier and scanner), land here.
type siteState struct {
	mu         sync.Mutex
	arrivals   []arrivalRecord
	bayEntries map[string]*models.BayEntry
	lobbyCount int
}

// Engine is the per-site metrics correlation engine. A single malformed or
// uncorrelatable event never halts processing.
type Engine struct {
	logger           *slog.Logger
	sink             Sink
	ttgMatchWindow   time.Duration
	arrivalRetention time.Duration

	mu    sync.RWMutex
	sites map[uuid.UUID]*siteState
}

// New constructs an engine that hands computed metrics to sink. A nil sink is
// allowed; Process still returns the computed values.
func New(logger *slog.Logger, sink Sink, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTGMatchWindow <= 0 {
		cfg.TTGMatchWindow = defaultTTGMatchWindow
	}
	if cfg.ArrivalRetention <= 0 {
		cfg.ArrivalRetention = defaultArrivalRetention
	}
	return &Engine{
		logger:           logger,
		sink:             sink,
		ttgMatchWindow:   cfg.TTGMatchWindow,
		arrivalRetention: cfg.ArrivalRetention,
		sites:            make(map[uuid.UUID]*siteState),
	}
}

// Process consumes one domain event and returns any metrics it produced.
// Computed values are also handed to the sink.
func (e *Engine) Process(ev models.Event) []models.MetricValue {
	if ev == nil {
		return nil
	}
	meta := ev.Meta()
	if meta.Timestamp.IsZero() || meta.TenantID == uuid.Nil || meta.SiteID == uuid.Nil {
		metrics.IncMalformedEvent()
		e.logger.Warn("skipping malformed event",
			slog.String("event_id", meta.EventID.String()),
			slog.String("event_type", string(meta.EventType)))
		return nil
	}

	st := e.site(meta.SiteID)
	st.mu.Lock()
	defer st.mu.Unlock()

	var values []models.MetricValue
	switch event := ev.(type) {
	case *models.VehicleArrival:
		st.bufferArrival(event, e.arrivalRetention)
	case *models.GreetStarted:
		if mv, ok := st.timeToGreet(event, e.ttgMatchWindow, e.logger); ok {
			values = append(values, mv)
		}
	case *models.BayEntry:
		// Last entry wins: a vehicle rolling through bays before an exit
		// replaces any earlier open entry for the same track.
		st.bayEntries[event.TrackID] = event
	case *models.BayExit:
		if mv, ok := st.rackTime(event, e.logger); ok {
			values = append(values, mv)
		}
	case *models.LobbyEnter:
		st.lobbyCount++
		values = append(values, st.occupancySample(&event.EventMeta, event.DoorID))
	case *models.LobbyExit:
		if st.lobbyCount > 0 {
			st.lobbyCount--
		}
		values = append(values, st.occupancySample(&event.EventMeta, event.DoorID))
	case *models.VehicleExit, *models.ZoneDwell, *models.LineCrossing,
		*models.PerimeterCrossing, *models.SystemHeartbeat:
		// Stored and forwarded elsewhere; no correlation here.
	}

	if e.sink != nil {
		for _, mv := range values {
			e.sink.Record(mv)
		}
	}
	return values
}

// Throughput counts distinct arriving tracks for the site within the closed
// range [start, end], from the buffered arrivals.
func (e *Engine) Throughput(siteID uuid.UUID, start, end time.Time) int {
	st := e.site(siteID)
	st.mu.Lock()
	defer st.mu.Unlock()

	seen := make(map[string]struct{})
	for _, arrival := range st.arrivals {
		if arrival.at.Before(start) || arrival.at.After(end) {
			continue
		}
		seen[arrival.trackID] = struct{}{}
	}
	return len(seen)
}

// LobbyOccupancy returns the site's current lobby headcount.
func (e *Engine) LobbyOccupancy(siteID uuid.UUID) int {
	st := e.site(siteID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lobbyCount
}

func (e *Engine) site(siteID uuid.UUID) *siteState {
	e.mu.RLock()
	st, ok := e.sites[siteID]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.sites[siteID]; !ok {
		st = &siteState{bayEntries: make(map[string]*models.BayEntry)}
		e.sites[siteID] = st
	}
	return st
}

// bufferArrival appends the arrival and prunes entries beyond the retention
// horizon. Pruning happens on every write; there is no background timer.
func (st *siteState) bufferArrival(event *models.VehicleArrival, retention time.Duration) {
	st.arrivals = append(st.arrivals, arrivalRecord{trackID: event.TrackID, at: event.Timestamp})

	cutoff := event.Timestamp.Add(-retention)
	kept := st.arrivals[:0]
	for _, arrival := range st.arrivals {
		if arrival.at.After(cutoff) {
			kept = append(kept, arrival)
		}
	}
	st.arrivals = kept
}

// timeToGreet matches the greet against the nearest preceding arrival for the
// same vehicle track inside the match window.
func (st *siteState) timeToGreet(event *models.GreetStarted, window time.Duration, logger *slog.Logger) (models.MetricValue, bool) {
	var (
		matched  bool
		minDelta time.Duration
	)
	for _, arrival := range st.arrivals {
		if arrival.trackID != event.VehicleTrackID {
			continue
		}
		delta := event.Timestamp.Sub(arrival.at)
		if delta <= 0 || delta >= window {
			continue
		}
		if !matched || delta < minDelta {
			matched = true
			minDelta = delta
		}
	}

	if !matched {
		// Expected under normal churn, e.g. a restart inside the window.
		metrics.IncUnmatchedGreet()
		logger.Warn("no matching arrival for greet",
			slog.String("vehicle_track_id", event.VehicleTrackID),
			slog.String("site_id", event.SiteID.String()))
		return models.MetricValue{}, false
	}

	return models.MetricValue{
		MetricID:    event.EventID,
		TenantID:    event.TenantID,
		SiteID:      event.SiteID,
		Name:        models.MetricTimeToGreet,
		WindowStart: event.Timestamp,
		WindowSize:  models.WindowOneMinute,
		Value:       minDelta.Seconds(),
		Unit:        "seconds",
		Dimensions: map[string]string{
			"camera_id": event.CameraID.String(),
			"zone_id":   event.ZoneID.String(),
		},
		CreatedAt: time.Now().UTC(),
	}, true
}

// rackTime closes the open bay entry for the exiting track, if any.
func (st *siteState) rackTime(event *models.BayExit, logger *slog.Logger) (models.MetricValue, bool) {
	entry, ok := st.bayEntries[event.TrackID]
	if !ok {
		metrics.IncUnmatchedBayExit()
		logger.Warn("no open bay entry for exit",
			slog.String("track_id", event.TrackID),
			slog.String("site_id", event.SiteID.String()))
		return models.MetricValue{}, false
	}
	delete(st.bayEntries, event.TrackID)

	return models.MetricValue{
		MetricID:    event.EventID,
		TenantID:    event.TenantID,
		SiteID:      event.SiteID,
		Name:        models.MetricRackTime,
		WindowStart: event.Timestamp,
		WindowSize:  models.WindowOneMinute,
		Value:       utils.DurationSeconds(entry.Timestamp, event.Timestamp),
		Unit:        "seconds",
		Dimensions:  map[string]string{"bay_id": event.BayID.String()},
		IsEstimated: true,
		CreatedAt:   time.Now().UTC(),
	}, true
}

// occupancySample is a point sample of the lobby counter at this instant.
func (st *siteState) occupancySample(meta *models.EventMeta, doorID uuid.UUID) models.MetricValue {
	return models.MetricValue{
		MetricID:    meta.EventID,
		TenantID:    meta.TenantID,
		SiteID:      meta.SiteID,
		Name:        models.MetricLobbyOccupancy,
		WindowStart: meta.Timestamp,
		WindowSize:  models.WindowOneMinute,
		Value:       float64(st.lobbyCount),
		Unit:        "persons",
		Dimensions:  map[string]string{"door_id": doorID.String()},
		CreatedAt:   time.Now().UTC(),
	}
}
