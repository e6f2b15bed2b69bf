package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Address)
	require.Equal(t, time.Second, cfg.Analytics.ScanInterval)
	require.Equal(t, 2.0, cfg.Analytics.DefaultDwellThreshold)
	require.Equal(t, 60*time.Second, cfg.Analytics.MaxTrackAge)
	require.Equal(t, 5*time.Minute, cfg.Engine.TTGMatchWindow)
	require.Equal(t, time.Hour, cfg.Engine.ArrivalRetention)
	require.False(t, cfg.Kafka.Enabled)
	require.Equal(t, "dealereye.events", cfg.Kafka.Topic)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  address: ":9090"
engine:
  ttgMatchWindow: 2m
kafka:
  enabled: true
  brokers: ["broker-1:9092", "broker-2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Address)
	require.Equal(t, 2*time.Minute, cfg.Engine.TTGMatchWindow)
	require.True(t, cfg.Kafka.Enabled)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	// Untouched sections keep defaults.
	require.Equal(t, time.Hour, cfg.Engine.ArrivalRetention)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DEALEREYE_SERVER_ADDRESS", ":7070")
	t.Setenv("DEALEREYE_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("DEALEREYE_MAX_TRACK_AGE", "90s")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":7070", cfg.Server.Address)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 90*time.Second, cfg.Analytics.MaxTrackAge)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
