package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the telescope core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Observatory ObservatoryConfig `yaml:"observatory"`
	Driver      DriverConfig      `yaml:"driver"`
	Cameras     CamerasConfig     `yaml:"cameras"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ObservatoryConfig contains site-specific information.
type ObservatoryConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for pointing calculations.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DriverConfig selects and configures the camera driver backend.
type DriverConfig struct {
	// Backend names the driver implementation. Currently "twin".
	Backend string `yaml:"backend"`

	Twin TwinConfig `yaml:"twin"`
}

// TwinConfig configures the digital twin camera backend.
type TwinConfig struct {
	// Source selects the frame source: "synthetic", "file" or "directory".
	Source string `yaml:"source"`

	// Path is the fixture file or directory for non-synthetic sources.
	Path string `yaml:"path"`

	// Cycle restarts a directory source from the first frame after the
	// last. When false the last frame repeats.
	Cycle bool `yaml:"cycle"`

	// Watch reloads a directory source when its contents change.
	Watch bool `yaml:"watch"`

	// SimulateExposure makes captures block for the exposure duration.
	SimulateExposure bool `yaml:"simulate_exposure"`
}

// CamerasConfig contains the dual-camera roles and shared capture settings.
type CamerasConfig struct {
	Finder CameraRoleConfig `yaml:"finder"`
	Main   CameraRoleConfig `yaml:"main"`

	Stream  StreamConfig  `yaml:"stream"`
	Overlay OverlayConfig `yaml:"overlay"`
}

// CameraRoleConfig binds one controller role to a physical camera id
// with its default settings.
type CameraRoleConfig struct {
	ID         int    `yaml:"id"`
	Name       string `yaml:"name"`
	Gain       int    `yaml:"gain"`
	ExposureUs int64  `yaml:"exposure_us"`
}

// StreamConfig contains video streaming settings.
type StreamConfig struct {
	MaxFPS float64 `yaml:"max_fps"`
}

// OverlayConfig contains frame annotation settings for the finder.
type OverlayConfig struct {
	Crosshair   bool `yaml:"crosshair"`
	Grid        bool `yaml:"grid"`
	GridSpacing int  `yaml:"grid_spacing"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for capture metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TELESCOPED_SECTION_KEY
// For example: TELESCOPED_DATABASE_PATH, TELESCOPED_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults. The camera ids
// and defaults mirror the twin backend's built-in pair.
func defaultConfig() *Config {
	return &Config{
		Observatory: ObservatoryConfig{
			ID:       "obs-001",
			Name:     "Argus Observatory",
			Timezone: "UTC",
		},
		Driver: DriverConfig{
			Backend: "twin",
			Twin: TwinConfig{
				Source: "synthetic",
				Cycle:  true,
			},
		},
		Cameras: CamerasConfig{
			Finder: CameraRoleConfig{
				ID:         0,
				Name:       "finder",
				Gain:       50,
				ExposureUs: 100_000,
			},
			Main: CameraRoleConfig{
				ID:         1,
				Name:       "main",
				Gain:       50,
				ExposureUs: 100_000,
			},
			Stream: StreamConfig{
				MaxFPS: 10,
			},
			Overlay: OverlayConfig{
				Crosshair:   true,
				GridSpacing: 100,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/telescoped.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "telescoped-core",
			},
			QoS:         1,
			TopicPrefix: "telescope",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TELESCOPED_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("TELESCOPED_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Driver
	if v := os.Getenv("TELESCOPED_DRIVER_SOURCE"); v != "" {
		cfg.Driver.Twin.Source = v
	}
	if v := os.Getenv("TELESCOPED_DRIVER_PATH"); v != "" {
		cfg.Driver.Twin.Path = v
	}

	// MQTT
	if v := os.Getenv("TELESCOPED_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TELESCOPED_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TELESCOPED_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("TELESCOPED_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("TELESCOPED_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Stream rate, useful for demos without editing the file.
	if v := os.Getenv("TELESCOPED_STREAM_MAX_FPS"); v != "" {
		if fps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cameras.Stream.MaxFPS = fps
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Observatory.ID == "" {
		errs = append(errs, "observatory.id is required")
	}

	switch c.Driver.Backend {
	case "twin":
	default:
		errs = append(errs, fmt.Sprintf("driver.backend %q is not supported (use \"twin\")", c.Driver.Backend))
	}
	switch c.Driver.Twin.Source {
	case "synthetic", "file", "directory":
	default:
		errs = append(errs, "driver.twin.source must be synthetic, file or directory")
	}
	if c.Driver.Twin.Source != "synthetic" && c.Driver.Twin.Path == "" {
		errs = append(errs, "driver.twin.path is required for file and directory sources")
	}

	if c.Cameras.Finder.ID < 0 || c.Cameras.Main.ID < 0 {
		errs = append(errs, "camera ids must not be negative")
	}
	if c.Cameras.Finder.ID == c.Cameras.Main.ID {
		errs = append(errs, "cameras.finder.id and cameras.main.id must differ")
	}
	if c.Cameras.Stream.MaxFPS <= 0 {
		errs = append(errs, "cameras.stream.max_fps must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set TELESCOPED_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetBusyTimeout returns the SQLite busy timeout as a Duration.
func (c *Config) GetBusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeout) * time.Second
}

// GetFlushInterval returns the InfluxDB flush interval as a Duration.
func (c *Config) GetFlushInterval() time.Duration {
	return time.Duration(c.InfluxDB.FlushInterval) * time.Second
}
