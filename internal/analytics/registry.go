// Package analytics turns raw perception primitives into typed domain events.
// It owns the per-camera track state that the classifier and the dwell/greet
// scanner share.
package analytics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/espressojuice/dealereye/internal/models"
)

// TrackedObject is the state kept for one upstream track while under observation.
type TrackedObject struct {
	TrackID     string
	ObjectClass models.ObjectClass
	FirstSeen   time.Time
	LastSeen    time.Time

	// ZoneEntryTimes maps zone id to the entry timestamp; presence means the
	// track is currently considered inside the zone.
	ZoneEntryTimes map[uuid.UUID]time.Time

	// LinesCrossed records crossed line ids in order, advisory only.
	LinesCrossed []uuid.UUID
}

// Registry is the authoritative, camera-scoped record of observed tracks and
// their zone residency. The single mutex makes it safe for the scanner to run
// concurrently with primitive consumption on the same camera.
type Registry struct {
	mu     sync.Mutex
	tracks map[string]*TrackedObject
}

// NewRegistry returns an empty track registry.
func NewRegistry() *Registry {
	return &Registry{tracks: make(map[string]*TrackedObject)}
}

// Touch creates the track entry if absent, otherwise updates its last-seen time.
func (r *Registry) Touch(trackID string, class models.ObjectClass, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if obj, ok := r.tracks[trackID]; ok {
		obj.LastSeen = now
		return
	}
	r.tracks[trackID] = &TrackedObject{
		TrackID:        trackID,
		ObjectClass:    class,
		FirstSeen:      now,
		LastSeen:       now,
		ZoneEntryTimes: make(map[uuid.UUID]time.Time),
	}
}

// EnterZone records zone entry for a known track. Idempotent: a second entry
// before an exit keeps the original entry timestamp.
func (r *Registry) EnterZone(trackID string, zoneID uuid.UUID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.tracks[trackID]
	if !ok {
		return
	}
	if _, resident := obj.ZoneEntryTimes[zoneID]; !resident {
		obj.ZoneEntryTimes[zoneID] = now
	}
}

// ExitZone clears zone residency. An exit without a matching entry is a no-op;
// upstream tracking can lose and regain a track mid-zone.
func (r *Registry) ExitZone(trackID string, zoneID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if obj, ok := r.tracks[trackID]; ok {
		delete(obj.ZoneEntryTimes, zoneID)
	}
}

// RecordLineCrossing appends the line to the track's crossing history once.
func (r *Registry) RecordLineCrossing(trackID string, lineID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.tracks[trackID]
	if !ok {
		return
	}
	for _, crossed := range obj.LinesCrossed {
		if crossed == lineID {
			return
		}
	}
	obj.LinesCrossed = append(obj.LinesCrossed, lineID)
}

// Reap evicts every track not seen within maxAge. Must be called on every
// processing cycle to bound memory.
func (r *Registry) Reap(maxAge time.Duration, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for trackID, obj := range r.tracks {
		if now.Sub(obj.LastSeen) > maxAge {
			delete(r.tracks, trackID)
		}
	}
}

// Len returns the number of tracks currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracks)
}

// ZoneEntry returns the recorded entry time for (track, zone), if resident.
func (r *Registry) ZoneEntry(trackID string, zoneID uuid.UUID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.tracks[trackID]
	if !ok {
		return time.Time{}, false
	}
	entry, resident := obj.ZoneEntryTimes[zoneID]
	return entry, resident
}
