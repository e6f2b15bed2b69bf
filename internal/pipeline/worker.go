// Package pipeline runs one worker per camera: it consumes perception
// primitives, classifies them into domain events, and drives the periodic
// dwell/greet sweep and track reaping.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/espressojuice/dealereye/internal/analytics"
	"github.com/espressojuice/dealereye/internal/metrics"
	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/sitecfg"
	"github.com/espressojuice/dealereye/internal/transport"
)

// Options tunes one camera worker. Zero values select the defaults.
type Options struct {
	ScanInterval      time.Duration
	DefaultDwell      float64
	MaxTrackAge       time.Duration
	PrimitiveBuffer   int
	HeartbeatInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.ScanInterval <= 0 {
		o.ScanInterval = time.Second
	}
	if o.MaxTrackAge <= 0 {
		o.MaxTrackAge = 60 * time.Second
	}
	if o.PrimitiveBuffer <= 0 {
		o.PrimitiveBuffer = 256
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
}

// Worker owns the processing loop for a single camera.
type Worker struct {
	logger     *slog.Logger
	tenantID   uuid.UUID
	siteID     uuid.UUID
	cameraID   uuid.UUID
	registry   *analytics.Registry
	classifier *analytics.Classifier
	scanner    *analytics.Scanner
	publisher  transport.Publisher
	opts       Options

	primitives     chan models.Primitive
	lastHeartbeat  time.Time
	started        time.Time
	primitivesSeen uint64
}

// NewWorker wires the classifier and scanner for one camera over a shared
// registry and publishes the resulting events.
func NewWorker(logger *slog.Logger, tenantID, siteID uuid.UUID, camera sitecfg.Camera, publisher transport.Publisher, opts Options) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()

	registry := analytics.NewRegistry()
	classifier := analytics.NewClassifier(logger, tenantID, siteID, camera.CameraID, registry)
	classifier.LoadZones(camera.Zones)
	classifier.LoadLines(camera.Lines)
	scanner := analytics.NewScanner(logger, tenantID, siteID, camera.CameraID, registry, camera.Zones, opts.DefaultDwell)

	return &Worker{
		logger:     logger.With(slog.String("camera_id", camera.CameraID.String())),
		tenantID:   tenantID,
		siteID:     siteID,
		cameraID:   camera.CameraID,
		registry:   registry,
		classifier: classifier,
		scanner:    scanner,
		publisher:  publisher,
		opts:       opts,
		primitives: make(chan models.Primitive, opts.PrimitiveBuffer),
	}
}

// Submit offers a primitive to the worker without blocking the caller. When
// the buffer is full the primitive is dropped and counted; perception output
// is a lossy stream and stalling the producer would back up every camera.
func (w *Worker) Submit(p models.Primitive) bool {
	select {
	case w.primitives <- p:
		return true
	default:
		metrics.IncPrimitiveDropped()
		return false
	}
}

// Run processes primitives and scan ticks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.ScanInterval)
	defer ticker.Stop()
	if w.started.IsZero() {
		w.started = time.Now().UTC()
	}

	w.logger.Info("camera worker started",
		slog.Duration("scan_interval", w.opts.ScanInterval),
		slog.Duration("max_track_age", w.opts.MaxTrackAge))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("camera worker stopping")
			return
		case p := <-w.primitives:
			w.handle(ctx, p)
		case now := <-ticker.C:
			w.tick(ctx, now.UTC())
		}
	}
}

// handle classifies one primitive and publishes the resulting event, if any.
func (w *Worker) handle(ctx context.Context, p models.Primitive) {
	w.primitivesSeen++
	ev := w.classifier.HandlePrimitive(p)
	if ev == nil {
		return
	}
	w.publish(ctx, ev)
}

// tick runs the periodic sweep, reaps stale tracks and emits heartbeats.
func (w *Worker) tick(ctx context.Context, now time.Time) {
	for _, ev := range w.scanner.Sweep(now) {
		w.publish(ctx, ev)
	}
	w.registry.Reap(w.opts.MaxTrackAge, now)

	if now.Sub(w.lastHeartbeat) >= w.opts.HeartbeatInterval {
		w.lastHeartbeat = now
		uptime := int64(0)
		if !w.started.IsZero() {
			uptime = int64(now.Sub(w.started).Seconds())
		}
		w.publish(ctx, &models.SystemHeartbeat{
			EventMeta:      models.NewEventMeta(models.EventSystemHeartbeat, w.tenantID, w.siteID, w.cameraID, now),
			UptimeSeconds:  uptime,
			PrimitivesSeen: w.primitivesSeen,
		})
	}
}

func (w *Worker) publish(ctx context.Context, ev models.Event) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		metrics.IncPublishFailure()
		w.logger.Error("event publish failed",
			slog.String("event_type", string(ev.Meta().EventType)),
			slog.Any("error", err))
		return
	}
	metrics.ObserveEventEmitted(string(ev.Meta().EventType))
}

// TrackCount reports the live track count, for diagnostics.
func (w *Worker) TrackCount() int {
	return w.registry.Len()
}
