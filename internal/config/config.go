// Package config loads the camera bridge configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/ayusman/camerabridge/internal/device"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAddr     = "CAMERABRIDGE_ADDR"
	EnvAdapter  = "CAMERABRIDGE_ADAPTER"
	EnvJournal  = "CAMERABRIDGE_JOURNAL"
	EnvLogLevel = "CAMERABRIDGE_LOG_LEVEL"
)

// Config is the whole application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Camera  CameraConfig  `yaml:"camera"`
	Queue   QueueConfig   `yaml:"queue"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
	Tray    TrayConfig    `yaml:"tray"`
}

// ServerConfig configures the diagnostics HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// EngineConfig configures the host tick loop.
type EngineConfig struct {
	// TickRate is the number of Update calls per second.
	TickRate int `yaml:"tick_rate"`
}

// TickInterval returns the time between two ticks.
func (e EngineConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(e.TickRate)
}

// CameraConfig selects the platform adapter and the capture to start with.
type CameraConfig struct {
	Adapter     string `yaml:"adapter"`
	FrontDevice int    `yaml:"front_device"`
	BackDevice  int    `yaml:"back_device"`
	FPS         int    `yaml:"fps"`
	Autostart   bool   `yaml:"autostart"`
	Type        string `yaml:"type"`
	Quality     string `yaml:"quality"`
}

// CameraType parses Type.
func (c CameraConfig) CameraType() (capture.CameraType, error) {
	return capture.ParseCameraType(c.Type)
}

// CaptureQuality parses Quality.
func (c CameraConfig) CaptureQuality() (capture.CaptureQuality, error) {
	return capture.ParseCaptureQuality(c.Quality)
}

// QueueConfig sizes the lifecycle message queue.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// JournalConfig configures the SQLite session journal. An empty path keeps
// the journal in memory.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// TrayConfig configures the system tray icon.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration that runs on any machine: a synthetic
// camera, the server on localhost and an in-memory journal.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8088",
		},
		Engine: EngineConfig{
			TickRate: 60,
		},
		Camera: CameraConfig{
			Adapter:     device.KindSynthetic,
			FrontDevice: 0,
			BackDevice:  -1,
			FPS:         device.DefaultFPS,
			Autostart:   false,
			Type:        "front",
			Quality:     "medium",
		},
		Queue: QueueConfig{
			Capacity: capture.DefaultQueueCapacity,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Server.Addr = getEnvOrDefault(EnvAddr, cfg.Server.Addr)
	cfg.Camera.Adapter = getEnvOrDefault(EnvAdapter, cfg.Camera.Adapter)
	cfg.Journal.Path = getEnvOrDefault(EnvJournal, cfg.Journal.Path)
	cfg.Log.Level = getEnvOrDefault(EnvLogLevel, cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Enabled && c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required when the server is enabled"))
	}
	if c.Engine.TickRate <= 0 || c.Engine.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("engine.tick_rate must be in 1..1000, got %d", c.Engine.TickRate))
	}
	switch c.Camera.Adapter {
	case device.KindWebcam, device.KindSynthetic, device.KindNull:
	default:
		errs = append(errs, fmt.Errorf("camera.adapter %q is not one of webcam, synthetic, null", c.Camera.Adapter))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS))
	}
	if _, err := c.Camera.CameraType(); err != nil {
		errs = append(errs, fmt.Errorf("camera.type: %w", err))
	}
	if _, err := c.Camera.CaptureQuality(); err != nil {
		errs = append(errs, fmt.Errorf("camera.quality: %w", err))
	}
	if c.Queue.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

// getEnvOrDefault returns the environment value for key, or defaultValue
// when it is unset or empty.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
