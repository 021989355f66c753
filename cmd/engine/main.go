package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/AutomataControls/nexus-engine/internal/alert"
	"github.com/AutomataControls/nexus-engine/internal/cache"
	"github.com/AutomataControls/nexus-engine/internal/config"
	"github.com/AutomataControls/nexus-engine/internal/datafactory"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/AutomataControls/nexus-engine/internal/pipeline/processor"
	"github.com/AutomataControls/nexus-engine/internal/pipeline/publisher"
	"github.com/AutomataControls/nexus-engine/internal/store/influx"
	"github.com/AutomataControls/nexus-engine/internal/store/postgres"
	redispkg "github.com/AutomataControls/nexus-engine/internal/store/redis"
	"github.com/AutomataControls/nexus-engine/internal/tracing"
)

// processorGroup is one (location, equipment type) batch of units sharing a
// tick loop.
type processorGroup struct {
	locationID string
	eqType     model.EquipmentType
	units      []processor.Unit
	interval   time.Duration
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if len(channels) == 0 {
		logger.Warn("no alert channels configured, alerts will be dropped")
		return &alert.NoopAlerter{}
	}
	cooldown := time.Duration(cfg.CooldownMin) * time.Minute
	return alert.NewMultiAlerter(cooldown, logger, channels...)
}

// buildGroups folds the location profiles into per-(location, type) processor
// groups. A group ticks at the fastest interval any of its units asks for.
func buildGroups(locations []config.LocationProfile, fast, staged time.Duration) []processorGroup {
	type key struct {
		locationID string
		eqType     model.EquipmentType
	}
	index := map[key]*processorGroup{}
	var order []key

	for _, loc := range locations {
		for _, eq := range loc.Equipment {
			k := key{loc.ID, eq.EquipmentType()}
			g, ok := index[k]
			if !ok {
				g = &processorGroup{
					locationID: loc.ID,
					eqType:     eq.EquipmentType(),
					interval:   eq.Interval(fast, staged),
				}
				index[k] = g
				order = append(order, k)
			}
			if iv := eq.Interval(fast, staged); iv < g.interval {
				g.interval = iv
			}
			g.units = append(g.units, processor.Unit{
				Equipment: eq.Model(loc.ID),
				Config:    eq.StrategyConfig(),
			})
		}
	}

	groups := make([]processorGroup, 0, len(order))
	for _, k := range order {
		groups = append(groups, *index[k])
	}
	return groups
}

func analyzerUnits(loc config.LocationProfile) []datafactory.Unit {
	units := make([]datafactory.Unit, 0, len(loc.Equipment))
	for _, eq := range loc.Equipment {
		units = append(units, datafactory.Unit{
			Equipment: eq.Model(loc.ID),
			Config:    eq.StrategyConfig(),
		})
	}
	return units
}

func runMetricsServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}()

	logger.Info("metrics server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting nexus-engine",
		"redis_url", cfg.Redis.URL,
		"influx_url", cfg.Influx.URL,
		"influx_database", cfg.Influx.Database,
		"locations_profile", cfg.Locations.ProfilePath,
		"fast_interval_sec", cfg.Engine.FastIntervalSec,
		"staged_interval_sec", cfg.Engine.StagedIntervalSec,
	)

	shutdownTracing, err := tracing.Init(context.Background(), "nexus-engine", cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	telemetry, err := redispkg.NewTelemetrySource(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer telemetry.Close()
	logger.Info("connected to telemetry store")

	alerter := buildAlerter(cfg.Alerts, logger)

	sink, err := influx.New(influx.Config{
		URL:             cfg.Influx.URL,
		Database:        cfg.Influx.Database,
		Token:           cfg.Influx.Token,
		Timeout:         time.Duration(cfg.Influx.TimeoutSec) * time.Second,
		WritesPerSecond: cfg.Influx.WritesPerSecond,
		WriteBurst:      cfg.Influx.WriteBurst,
		Alerter:         alerter,
	}, logger)
	if err != nil {
		logger.Error("failed to build influx client", "error", err)
		os.Exit(1)
	}

	locations, err := config.LoadLocations(cfg.Locations.ProfilePath)
	if err != nil {
		logger.Error("failed to load locations profile", "error", err)
		os.Exit(1)
	}
	if len(locations) == 0 {
		logger.Error("locations profile registers no locations")
		os.Exit(1)
	}

	commandRepo := postgres.NewCommandRepo(db, cfg.Engine.CommandLookback)
	ctrlRepo := postgres.NewControllerStateRepo(db)
	stageRepo := postgres.NewStagingStateRepo(db)
	cmdCache := cache.NewCommandCache(cfg.Engine.CommandCacheSize, cfg.Engine.CommandCacheTTL)
	pub := publisher.New(sink, logger)

	fast := time.Duration(cfg.Engine.FastIntervalSec) * time.Second
	staged := time.Duration(cfg.Engine.StagedIntervalSec) * time.Second
	groups := buildGroups(locations, fast, staged)

	processors := make([]*processor.Processor, 0, len(groups))
	for _, g := range groups {
		processors = append(processors, processor.New(
			processor.Config{
				LocationID:      g.locationID,
				EquipmentType:   g.eqType,
				Units:           g.units,
				Interval:        g.interval,
				TickTimeout:     time.Duration(cfg.Engine.TickTimeoutSec) * time.Second,
				TelemetryMaxAge: cfg.Engine.TelemetryMaxAge,
			},
			telemetry, commandRepo, ctrlRepo, stageRepo,
			pub, cmdCache, alerter, logger,
		))
		logger.Info("processor registered",
			"location", g.locationID,
			"equipment_type", string(g.eqType),
			"units", len(g.units),
			"interval", g.interval.String(),
		)
	}

	analyzers := make([]*datafactory.Analyzer, 0, len(locations))
	for _, loc := range locations {
		analyzers = append(analyzers, datafactory.New(
			loc.ID, analyzerUnits(loc), cfg.Engine.AnalyticsInterval,
			telemetry, stageRepo, sink, alerter, logger,
		))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runMetricsServer(gCtx, cfg.Server.MetricsPort, logger)
	})

	for _, p := range processors {
		p := p
		g.Go(func() error {
			return p.Run(gCtx)
		})
	}
	for _, a := range analyzers {
		a := a
		g.Go(func() error {
			return a.Run(gCtx)
		})
	}

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("engine exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("engine shut down gracefully")
}
