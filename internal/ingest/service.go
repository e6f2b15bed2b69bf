// Package ingest is the control-plane entry point: every domain event, local
// or from the broker, passes through the Service for correlation and
// persistence.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/espressojuice/dealereye/internal/alerts"
	"github.com/espressojuice/dealereye/internal/engine"
	"github.com/espressojuice/dealereye/internal/metrics"
	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/store"
	"github.com/espressojuice/dealereye/internal/utils"
)

// EventStore persists events, metric values and alerts.
type EventStore interface {
	InsertEvent(ctx context.Context, ev models.Event) error
	InsertMetric(ctx context.Context, mv models.MetricValue) error
	InsertAlert(ctx context.Context, a store.StoredAlert) error
}

// Service feeds incoming events through the correlation engine and persists
// both the events and whatever metrics they produce.
type Service struct {
	logger    *slog.Logger
	engine    *engine.Engine
	store     EventStore
	latencies *utils.LatencyTracker
}

// NewService constructs the ingest facade. store may be nil for dry runs.
func NewService(logger *slog.Logger, eng *engine.Engine, st EventStore) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:    logger,
		engine:    eng,
		store:     st,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Handle processes one event end to end: persist, correlate, record latency.
// Persistence failures are logged but never block correlation; the metrics
// stream degrades to best-effort history rather than halting.
func (s *Service) Handle(ctx context.Context, ev models.Event) error {
	if ev == nil {
		return nil
	}

	start := time.Now()
	if s.store != nil {
		if err := s.store.InsertEvent(ctx, ev); err != nil {
			s.logger.Error("event persist failed",
				slog.String("event_id", ev.Meta().EventID.String()),
				slog.Any("error", err))
		}
	}
	s.engine.Process(ev)
	duration := time.Since(start)

	metrics.ObserveEventProcessing(duration)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("event processing latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
	return nil
}

// Publish lets the service stand in as the event destination when no broker
// is configured: camera pipelines publish straight into Handle.
func (s *Service) Publish(ctx context.Context, ev models.Event) error {
	return s.Handle(ctx, ev)
}

// LatencyP95 returns the current p95 event processing latency.
func (s *Service) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// MetricRecorder is the engine's sink: computed metric values are persisted,
// evaluated against the alert rules, and any fired alerts stored.
type MetricRecorder struct {
	logger *slog.Logger
	store  EventStore
	rules  *alerts.RuleEngine
}

// NewMetricRecorder wires the sink. Both store and rules may be nil.
func NewMetricRecorder(logger *slog.Logger, st EventStore, rules *alerts.RuleEngine) *MetricRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricRecorder{logger: logger, store: st, rules: rules}
}

// Record persists the metric value and evaluates alert rules against it.
func (r *MetricRecorder) Record(mv models.MetricValue) {
	ctx := context.Background()
	if r.store != nil {
		if err := r.store.InsertMetric(ctx, mv); err != nil {
			r.logger.Error("metric persist failed",
				slog.String("metric", string(mv.Name)),
				slog.Any("error", err))
		}
	}
	for _, alert := range r.rules.Evaluate(mv) {
		if r.store == nil {
			continue
		}
		if err := r.store.InsertAlert(ctx, alert); err != nil {
			r.logger.Error("alert persist failed",
				slog.String("rule_id", alert.RuleID),
				slog.Any("error", err))
		}
	}
}
