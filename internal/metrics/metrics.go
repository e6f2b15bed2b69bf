package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	primitivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "primitives_total",
			Help:      "Perception primitives consumed, partitioned by kind.",
		},
		[]string{"kind"},
	)

	primitivesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "primitives_dropped_total",
			Help:      "Primitives dropped because a camera worker queue was full.",
		},
	)

	eventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "events_emitted_total",
			Help:      "Domain events emitted, partitioned by event type.",
		},
		[]string{"event_type"},
	)

	classificationMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "classification_misses_total",
			Help:      "Primitives referencing a line or zone absent from configuration.",
		},
	)

	unmatchedGreetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "unmatched_greets_total",
			Help:      "Greet events with no arrival inside the TTG match window.",
		},
	)

	unmatchedBayExitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "unmatched_bay_exits_total",
			Help:      "Bay-exit events with no open bay entry for the same track.",
		},
	)

	malformedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "malformed_events_total",
			Help:      "Events skipped by the correlation engine due to missing required fields.",
		},
	)

	publishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "publish_failures_total",
			Help:      "Broker publishes that ultimately failed after client retries.",
		},
	)

	alertsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealereye",
			Name:      "alerts_fired_total",
			Help:      "Alert rule firings, partitioned by severity.",
		},
		[]string{"severity"},
	)

	eventProcessingSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dealereye",
			Name:      "event_processing_seconds",
			Help:      "Ingest latency per domain event in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)
)

// Register attaches the dealereye collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		primitivesTotal,
		primitivesDroppedTotal,
		eventsEmittedTotal,
		classificationMissesTotal,
		unmatchedGreetsTotal,
		unmatchedBayExitsTotal,
		malformedEventsTotal,
		publishFailuresTotal,
		alertsFiredTotal,
		eventProcessingSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrimitive counts one consumed primitive of the given kind.
func ObservePrimitive(kind string) {
	primitivesTotal.WithLabelValues(kind).Inc()
}

// IncPrimitiveDropped counts a primitive rejected by a full worker queue.
func IncPrimitiveDropped() { primitivesDroppedTotal.Inc() }

// ObserveEventEmitted counts one emitted domain event.
func ObserveEventEmitted(eventType string) {
	eventsEmittedTotal.WithLabelValues(eventType).Inc()
}

// IncClassificationMiss counts a primitive that referenced unknown configuration.
func IncClassificationMiss() { classificationMissesTotal.Inc() }

// IncUnmatchedGreet counts a greet with no matching arrival.
func IncUnmatchedGreet() { unmatchedGreetsTotal.Inc() }

// IncUnmatchedBayExit counts a bay exit with no open entry.
func IncUnmatchedBayExit() { unmatchedBayExitsTotal.Inc() }

// IncMalformedEvent counts an event dropped for missing required fields.
func IncMalformedEvent() { malformedEventsTotal.Inc() }

// IncPublishFailure counts a failed broker publish.
func IncPublishFailure() { publishFailuresTotal.Inc() }

// ObserveAlertFired counts an alert rule firing.
func ObserveAlertFired(severity string) {
	alertsFiredTotal.WithLabelValues(severity).Inc()
}

// ObserveEventProcessing records ingest latency for one event.
func ObserveEventProcessing(d time.Duration) {
	if d < 0 {
		d = 0
	}
	eventProcessingSeconds.Observe(d.Seconds())
}
