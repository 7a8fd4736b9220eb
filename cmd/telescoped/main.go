// telescoped - Telescope Camera Control Core
//
// This is the main entry point for the telescope camera control service.
// It manages a dual-camera rig (wide-field finder plus main imaging
// camera) over a digital-twin driver backend:
//   - Device discovery and singleton camera instances
//   - Capture, streaming and disconnect recovery
//   - Microsecond-aligned synchronized dual captures
//   - Event fan-out to MQTT, InfluxDB and the SQLite event log
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/argusobs/telescope-core/migrations"

	"github.com/argusobs/telescope-core/internal/camera"
	"github.com/argusobs/telescope-core/internal/driver/twin"
	"github.com/argusobs/telescope-core/internal/history"
	"github.com/argusobs/telescope-core/internal/infrastructure/config"
	"github.com/argusobs/telescope-core/internal/infrastructure/database"
	"github.com/argusobs/telescope-core/internal/infrastructure/influxdb"
	"github.com/argusobs/telescope-core/internal/infrastructure/logging"
	"github.com/argusobs/telescope-core/internal/infrastructure/mqtt"
	"github.com/argusobs/telescope-core/internal/observability"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting telescoped",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Event history repository
	events := history.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event recorder fans camera events out to the configured sinks.
	// Typed nils must not reach the interface fields.
	recOpts := observability.Options{
		Logger: log,
		Events: events,
		QoS:    byte(cfg.MQTT.QoS),
	}
	if mqttClient != nil {
		recOpts.MQTT = mqttClient
	}
	if influxClient != nil {
		recOpts.Metrics = influxClient
	}
	recorder := observability.New(recOpts)

	// Digital twin driver backend
	drv := twin.New(twin.Config{
		Source:           twin.Source(cfg.Driver.Twin.Source),
		Path:             cfg.Driver.Twin.Path,
		NoCycle:          !cfg.Driver.Twin.Cycle,
		Watch:            cfg.Driver.Twin.Watch,
		SimulateExposure: cfg.Driver.Twin.SimulateExposure,
		Logger:           log,
	})
	log.Info("driver initialised",
		"backend", cfg.Driver.Backend,
		"source", cfg.Driver.Twin.Source,
	)

	// Camera registry with per-role configuration
	roleByID := map[int]config.CameraRoleConfig{
		cfg.Cameras.Finder.ID: cfg.Cameras.Finder,
		cfg.Cameras.Main.ID:   cfg.Cameras.Main,
	}
	overlay := &camera.OverlayConfig{
		Crosshair:   cfg.Cameras.Overlay.Crosshair,
		Grid:        cfg.Cameras.Overlay.Grid,
		GridSpacing: cfg.Cameras.Overlay.GridSpacing,
	}

	registry := camera.NewRegistry(drv)
	registry.SetLogger(log)
	registry.SetConfigure(func(cam *camera.Camera) {
		cam.SetHooks(recorder.CameraHooks())
		cam.SetRenderer(camera.CrosshairRenderer{})
		cam.SetOverlay(overlay)
		if role, ok := roleByID[cam.ID()]; ok {
			cam.SetDefaults(role.Gain, role.ExposureUs)
		}
	})
	defer registry.Shutdown()

	// Bring up the rig
	finder, err := registry.Get(cfg.Cameras.Finder.ID, camera.GetOptions{
		Name:        cfg.Cameras.Finder.Name,
		AutoConnect: true,
	})
	if err != nil {
		return fmt.Errorf("connecting finder camera: %w", err)
	}
	mainCam, err := registry.Get(cfg.Cameras.Main.ID, camera.GetOptions{
		Name:        cfg.Cameras.Main.Name,
		AutoConnect: true,
	})
	if err != nil {
		return fmt.Errorf("connecting main camera: %w", err)
	}

	controller := camera.NewController()
	controller.SetLogger(log)
	if err := controller.Add(finder.Name(), finder, false); err != nil {
		return fmt.Errorf("registering finder camera: %w", err)
	}
	if err := controller.Add(mainCam.Name(), mainCam, false); err != nil {
		return fmt.Errorf("registering main camera: %w", err)
	}
	log.Info("dual-camera rig ready",
		"finder", finder.Name(),
		"main", mainCam.Name(),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Camera registry
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("telescoped stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TELESCOPED_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TELESCOPED_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
