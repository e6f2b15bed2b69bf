package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the analytics service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Site      SiteConfig      `yaml:"site"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Engine    EngineConfig    `yaml:"engine"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// SiteConfig points at the zone/line layout for this deployment.
type SiteConfig struct {
	LayoutPath string `yaml:"layoutPath"`
}

// AnalyticsConfig tunes the per-camera classifier and scanner.
type AnalyticsConfig struct {
	ScanInterval          time.Duration `yaml:"scanInterval"`
	DefaultDwellThreshold float64       `yaml:"defaultDwellThresholdSeconds"`
	MaxTrackAge           time.Duration `yaml:"maxTrackAge"`
	PrimitiveBuffer       int           `yaml:"primitiveBuffer"`
	HeartbeatInterval     time.Duration `yaml:"heartbeatInterval"`
}

// EngineConfig tunes the metrics correlation engine.
type EngineConfig struct {
	TTGMatchWindow   time.Duration `yaml:"ttgMatchWindow"`
	ArrivalRetention time.Duration `yaml:"arrivalRetention"`
}

// KafkaConfig controls the broker transport. When disabled, domain events are
// fed to the local ingest service directly.
type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	Group    string   `yaml:"group"`
	ClientID string   `yaml:"clientID"`
}

// StoreConfig controls event/metric persistence. An empty path selects an
// in-memory database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Redis-backed caching of query responses.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	ThroughputTTL time.Duration `yaml:"throughputTTL"`
}

// AlertsConfig controls rule-pack loading for the alert evaluator.
type AlertsConfig struct {
	Path string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DEALEREYE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Site:    SiteConfig{LayoutPath: "configs/site.yaml"},
		Analytics: AnalyticsConfig{
			ScanInterval:          time.Second,
			DefaultDwellThreshold: 2.0,
			MaxTrackAge:           60 * time.Second,
			PrimitiveBuffer:       256,
			HeartbeatInterval:     30 * time.Second,
		},
		Engine: EngineConfig{
			TTGMatchWindow:   5 * time.Minute,
			ArrivalRetention: time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled:  false,
			Topic:    "dealereye.events",
			Group:    "dealereye-control-plane",
			ClientID: "dealereye",
		},
		Cache: CacheConfig{
			Enabled:       false,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			ThroughputTTL: 30 * time.Second,
		},
		Alerts: AlertsConfig{Path: "configs/alerts.yaml"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEALEREYE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DEALEREYE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("DEALEREYE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DEALEREYE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DEALEREYE_SITE_LAYOUT"); v != "" {
		cfg.Site.LayoutPath = v
	}
	if v := os.Getenv("DEALEREYE_ALERTS_PATH"); v != "" {
		cfg.Alerts.Path = v
	}
	if v := os.Getenv("DEALEREYE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DEALEREYE_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("DEALEREYE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	if v := os.Getenv("DEALEREYE_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("DEALEREYE_KAFKA_GROUP"); v != "" {
		cfg.Kafka.Group = v
	}
	if v := os.Getenv("DEALEREYE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("DEALEREYE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("DEALEREYE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("DEALEREYE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("DEALEREYE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("DEALEREYE_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analytics.ScanInterval = d
		}
	}
	if v := os.Getenv("DEALEREYE_MAX_TRACK_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analytics.MaxTrackAge = d
		}
	}
	if v := os.Getenv("DEALEREYE_TTG_MATCH_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.TTGMatchWindow = d
		}
	}
	if v := os.Getenv("DEALEREYE_ARRIVAL_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.ArrivalRetention = d
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
