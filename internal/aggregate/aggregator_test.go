package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/espressojuice/dealereye/internal/models"
)

type stubStore struct {
	values []models.MetricValue
}

func (s *stubStore) MetricValues(_ context.Context, _ uuid.UUID, _ models.MetricName, _, _ time.Time) ([]models.MetricValue, error) {
	return s.values, nil
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil)
	require.Equal(t, 0, agg.Count)
	require.Equal(t, 0.0, agg.Mean)
}

func TestAggregateSingleSample(t *testing.T) {
	agg := Aggregate([]float64{42})
	require.Equal(t, 1, agg.Count)
	require.Equal(t, 42.0, agg.Mean)
	require.Equal(t, 42.0, agg.Median)
	require.Equal(t, 42.0, agg.P95)
	require.Equal(t, 42.0, agg.Min)
	require.Equal(t, 42.0, agg.Max)
}

func TestAggregateStatistics(t *testing.T) {
	// Unsorted on purpose; the input order must not matter.
	agg := Aggregate([]float64{30, 10, 50, 20, 40})

	require.Equal(t, 5, agg.Count)
	require.InDelta(t, 30.0, agg.Mean, 1e-9)
	require.InDelta(t, 30.0, agg.Median, 1e-9)
	require.InDelta(t, 48.0, agg.P95, 1e-9)
	require.Equal(t, 10.0, agg.Min)
	require.Equal(t, 50.0, agg.Max)
}

func TestAggregateMedianEvenCount(t *testing.T) {
	agg := Aggregate([]float64{1, 2, 3, 4})
	require.InDelta(t, 2.5, agg.Median, 1e-9)
}

func TestSummariseReadsStore(t *testing.T) {
	st := &stubStore{values: []models.MetricValue{
		{Value: 100}, {Value: 200}, {Value: 300},
	}}
	a := New(nil, st)

	agg, err := a.Summarise(context.Background(), uuid.New(), models.MetricRackTime, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Equal(t, 3, agg.Count)
	require.InDelta(t, 200.0, agg.Mean, 1e-9)
}
