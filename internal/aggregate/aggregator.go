// Package aggregate rolls stored metric values up into summary statistics for
// the query API.
package aggregate

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/espressojuice/dealereye/internal/models"
)

// Store abstracts the metric history the aggregator reads.
type Store interface {
	MetricValues(ctx context.Context, siteID uuid.UUID, name models.MetricName, start, end time.Time) ([]models.MetricValue, error)
}

// Aggregator computes rollups over persisted metric values.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// New constructs an Aggregator over the given metric history.
func New(logger *slog.Logger, store Store) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, logger: logger}
}

// Summarise aggregates one metric for a site over [start, end].
func (a *Aggregator) Summarise(ctx context.Context, siteID uuid.UUID, name models.MetricName, start, end time.Time) (models.Aggregation, error) {
	values, err := a.store.MetricValues(ctx, siteID, name, start, end)
	if err != nil {
		return models.Aggregation{}, err
	}
	samples := make([]float64, 0, len(values))
	for _, mv := range values {
		samples = append(samples, mv.Value)
	}
	return Aggregate(samples), nil
}

// Aggregate computes summary statistics over raw samples. An empty input
// yields the zero aggregation with Count 0.
func Aggregate(samples []float64) models.Aggregation {
	if len(samples) == 0 {
		return models.Aggregation{}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return models.Aggregation{
		Count:  len(sorted),
		Mean:   sum / float64(len(sorted)),
		Median: quantile(sorted, 0.5),
		P95:    quantile(sorted, 0.95),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

// quantile reads the q-th quantile from an ascending slice using linear
// interpolation between adjacent ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
