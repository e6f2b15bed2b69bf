package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/espressojuice/dealereye/internal/aggregate"
	"github.com/espressojuice/dealereye/internal/alerts"
	"github.com/espressojuice/dealereye/internal/api"
	"github.com/espressojuice/dealereye/internal/cache"
	"github.com/espressojuice/dealereye/internal/config"
	"github.com/espressojuice/dealereye/internal/engine"
	"github.com/espressojuice/dealereye/internal/ingest"
	"github.com/espressojuice/dealereye/internal/metrics"
	"github.com/espressojuice/dealereye/internal/pipeline"
	"github.com/espressojuice/dealereye/internal/sitecfg"
	"github.com/espressojuice/dealereye/internal/store"
	"github.com/espressojuice/dealereye/internal/transport"
	"github.com/espressojuice/dealereye/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting dealereye", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	eventStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer eventStore.Close()

	ruleEngine, err := alerts.NewRuleEngine(cfg.Alerts.Path, logger)
	if err != nil {
		logger.Error("failed to load alert rules", slog.Any("error", err))
		os.Exit(1)
	}
	if ruleEngine == nil {
		logger.Info("no alert rule pack configured")
	}

	recorder := ingest.NewMetricRecorder(logger, eventStore, ruleEngine)
	correlator := engine.New(logger, recorder, engine.Config{
		TTGMatchWindow:   cfg.Engine.TTGMatchWindow,
		ArrivalRetention: cfg.Engine.ArrivalRetention,
	})
	ingestService := ingest.NewService(logger, correlator, eventStore)

	// Camera pipelines publish either straight into the ingest service or
	// through Kafka, in which case a subscriber feeds the service back.
	destinations := []transport.Publisher{ingestService}
	var kafkaSubscriber *transport.KafkaSubscriber
	if cfg.Kafka.Enabled {
		kafkaCfg := transport.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			Group:    cfg.Kafka.Group,
			ClientID: cfg.Kafka.ClientID,
		}
		kafkaPublisher, err := transport.NewKafkaPublisher(logger, kafkaCfg)
		if err != nil {
			logger.Error("failed to connect kafka producer", slog.Any("error", err))
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		// With a broker configured the topic is the only destination; the
		// subscriber below feeds the ingest service from it.
		destinations = []transport.Publisher{kafkaPublisher}

		kafkaSubscriber, err = transport.NewKafkaSubscriber(logger, kafkaCfg, ingestService)
		if err != nil {
			logger.Error("failed to connect kafka consumer", slog.Any("error", err))
			os.Exit(1)
		}
		defer kafkaSubscriber.Close()
		go func() {
			if err := kafkaSubscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("kafka subscriber exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	layout, err := sitecfg.Load(cfg.Site.LayoutPath)
	if err != nil {
		logger.Error("failed to load site layout", slog.String("path", cfg.Site.LayoutPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("site layout loaded",
		slog.String("site_id", layout.SiteID.String()),
		slog.Int("cameras", len(layout.Cameras)))

	publisher := transport.NewFanout(destinations...)
	for _, camera := range layout.Cameras {
		worker := pipeline.NewWorker(logger, layout.TenantID, layout.SiteID, camera, publisher, pipeline.Options{
			ScanInterval:      cfg.Analytics.ScanInterval,
			DefaultDwell:      cfg.Analytics.DefaultDwellThreshold,
			MaxTrackAge:       cfg.Analytics.MaxTrackAge,
			PrimitiveBuffer:   cfg.Analytics.PrimitiveBuffer,
			HeartbeatInterval: cfg.Analytics.HeartbeatInterval,
		})
		go worker.Run(ctx)
	}

	aggregator := aggregate.New(logger, eventStore)
	handlers := api.NewHandlers(logger, correlator, eventStore, aggregator, cacheProvider, cfg.Cache.ThroughputTTL)

	server, err := api.NewServer(cfg.Server, handlers.Routes())
	if err != nil {
		logger.Error("failed to create query server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("query server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("dealereye stopped")
}
