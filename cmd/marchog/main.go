// Marchog Ops Core - display screen fleet coordination.
//
// This is the main entry point. It wires the screen registry, websocket
// gateway, bus bridge, scene engine, health monitor, telemetry, and the
// HTTP API together, then waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/marchog/ops-core/migrations"

	"github.com/marchog/ops-core/internal/api"
	"github.com/marchog/ops-core/internal/automation"
	"github.com/marchog/ops-core/internal/bus"
	"github.com/marchog/ops-core/internal/gateway"
	"github.com/marchog/ops-core/internal/health"
	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/infrastructure/database"
	"github.com/marchog/ops-core/internal/infrastructure/logging"
	"github.com/marchog/ops-core/internal/infrastructure/telemetry"
	"github.com/marchog/ops-core/internal/location"
	"github.com/marchog/ops-core/internal/page"
	"github.com/marchog/ops-core/internal/scene"
	"github.com/marchog/ops-core/internal/screen"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Marchog Ops Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database and migrations.
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories.
	sceneRepo := scene.NewSQLiteRepository(db.DB)
	locationRepo := location.NewSQLiteRepository(db.DB)
	pageRepo := page.NewSQLiteRepository(db.DB)
	automationRepo := automation.NewSQLiteRepository(db.DB)

	// Register pages dropped into the pages directory since last start.
	if cfg.Site.PagesDir != "" {
		discovered, scanErr := pageRepo.Scan(ctx, cfg.Site.PagesDir)
		if scanErr != nil {
			log.Warn("page scan failed", "dir", cfg.Site.PagesDir, "error", scanErr)
		} else if len(discovered) > 0 {
			log.Info("pages discovered", "count", len(discovered))
		}
	}

	// Screen registry and bus bridge. The bridge owns the broker
	// connection in its own goroutine; everything else hands it work
	// through channels.
	registry := screen.NewRegistry()
	registry.SetLogger(log)

	bridge := bus.New(cfg.MQTT, registry)
	bridge.SetLogger(log)

	busCtx, busCancel := context.WithCancel(ctx)
	defer busCancel()
	go func() {
		if runErr := bridge.Run(busCtx); runErr != nil && busCtx.Err() == nil {
			log.Error("bus bridge stopped", "error", runErr)
		}
	}()
	log.Info("bus bridge starting", "broker", bridge.Broker())

	// Websocket gateway for screen connections.
	gw := gateway.New(cfg.WebSocket, registry, sceneRepo, locationRepo)
	gw.SetLogger(log)
	gw.SetStatusPublisher(bridge)
	bridge.SetNavigator(gw)

	// Scene engine pushes assignments on activation and announces it on the bus.
	sceneEngine := scene.NewEngine(sceneRepo, gw, bridge)
	sceneEngine.SetLogger(log)

	runner := automation.NewRunner(automationRepo, bridge, gw)
	runner.SetLogger(log)

	// Telemetry (optional).
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to telemetry: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	// Health monitor sweeps for stale screens.
	monitor := health.NewMonitor(cfg.Health, registry, bridge)
	monitor.SetLogger(log)
	go func() {
		if runErr := monitor.Run(ctx); runErr != nil && ctx.Err() == nil {
			log.Error("health monitor stopped", "error", runErr)
		}
	}()

	if telemetryClient != nil {
		go recordFleetMetrics(ctx, cfg.Health, registry, bridge, telemetryClient)
	}

	// HTTP API, including the screen websocket endpoint.
	server, err := api.New(api.Deps{
		Config:         cfg.API,
		Logger:         log,
		Registry:       registry,
		Gateway:        gw,
		Pusher:         gw,
		ScreenWS:       gw.HandleScreen,
		Bus:            bridge,
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		SceneRepo:      sceneRepo,
		SceneEngine:    sceneEngine,
		LocationRepo:   locationRepo,
		PageRepo:       pageRepo,
		PagesDir:       cfg.Site.PagesDir,
		AutomationRepo: automationRepo,
		Runner:         runner,
		StaleThreshold: monitor.Threshold(),
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Marchog Ops Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MARCHOG_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("MARCHOG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// recordFleetMetrics samples fleet state into telemetry on the health
// check interval.
func recordFleetMetrics(ctx context.Context, cfg config.HealthConfig, registry *screen.Registry, bridge *bus.Bridge, client *telemetry.Client) {
	interval := time.Duration(cfg.CheckInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			screens := registry.All()
			client.RecordFleetSize(len(screens), bridge.Connected())
			now := time.Now()
			for _, scr := range screens {
				if scr.LastSeen.IsZero() {
					continue
				}
				client.RecordHeartbeatAge(scr.ID, scr.Meta.DeviceType, now.Sub(scr.LastSeen))
			}
		}
	}
}
