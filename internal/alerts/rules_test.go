package alerts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/espressojuice/dealereye/internal/models"
)

const rulePack = `
rules:
  - id: ttg-slow
    name: Slow greeting
    metric: time_to_greet
    operator: gt
    threshold: 180
    severity: warning
    cooldown: 10m
  - id: lobby-empty
    name: Lobby unattended
    metric: lobby_occupancy
    operator: lt
    threshold: 1
    severity: info
`

func writeRulePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alerts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func metricValue(name models.MetricName, value float64, at time.Time) models.MetricValue {
	return models.MetricValue{
		MetricID:    uuid.New(),
		TenantID:    uuid.New(),
		SiteID:      uuid.New(),
		Name:        name,
		WindowStart: at,
		WindowSize:  models.WindowOneMinute,
		Value:       value,
		Unit:        "seconds",
	}
}

func TestThresholdBreach(t *testing.T) {
	eng, err := NewRuleEngine(writeRulePack(t, rulePack), nil)
	require.NoError(t, err)
	require.NotNil(t, eng)

	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	fired := eng.Evaluate(metricValue(models.MetricTimeToGreet, 210, at))
	require.Len(t, fired, 1)
	require.Equal(t, "ttg-slow", fired[0].RuleID)
	require.Equal(t, "warning", fired[0].Severity)
	require.Equal(t, 210.0, fired[0].Value)
	require.Equal(t, 180.0, fired[0].Threshold)

	// At or below the threshold: no alert.
	require.Empty(t, eng.Evaluate(metricValue(models.MetricTimeToGreet, 180, at)))
}

func TestLessThanOperator(t *testing.T) {
	eng, err := NewRuleEngine(writeRulePack(t, rulePack), nil)
	require.NoError(t, err)

	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	fired := eng.Evaluate(metricValue(models.MetricLobbyOccupancy, 0, at))
	require.Len(t, fired, 1)
	require.Equal(t, "lobby-empty", fired[0].RuleID)
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	eng, err := NewRuleEngine(writeRulePack(t, rulePack), nil)
	require.NoError(t, err)

	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	mv := metricValue(models.MetricTimeToGreet, 300, at)

	require.Len(t, eng.Evaluate(mv), 1)

	// Same site inside the 10m cooldown: suppressed.
	mv.WindowStart = at.Add(5 * time.Minute)
	require.Empty(t, eng.Evaluate(mv))

	// Past the cooldown: fires again.
	mv.WindowStart = at.Add(11 * time.Minute)
	require.Len(t, eng.Evaluate(mv), 1)
}

func TestCooldownIsPerSite(t *testing.T) {
	eng, err := NewRuleEngine(writeRulePack(t, rulePack), nil)
	require.NoError(t, err)

	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.Len(t, eng.Evaluate(metricValue(models.MetricTimeToGreet, 300, at)), 1)
	// A different site is unaffected by the first site's cooldown.
	require.Len(t, eng.Evaluate(metricValue(models.MetricTimeToGreet, 300, at)), 1)
}

func TestMissingRulePackDisablesEngine(t *testing.T) {
	eng, err := NewRuleEngine(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	require.Nil(t, eng)

	// Nil engine is evaluate-safe.
	require.Empty(t, eng.Evaluate(metricValue(models.MetricTimeToGreet, 999, time.Now())))
}
