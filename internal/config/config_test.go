package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camerabridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.Adapter != "synthetic" {
		t.Errorf("Camera.Adapter = %q, want synthetic", cfg.Camera.Adapter)
	}
	if cfg.Queue.Capacity != capture.DefaultQueueCapacity {
		t.Errorf("Queue.Capacity = %d, want %d", cfg.Queue.Capacity, capture.DefaultQueueCapacity)
	}
	if cfg.Journal.Path != "" {
		t.Errorf("Journal.Path = %q, want in-memory", cfg.Journal.Path)
	}
	if got := cfg.Engine.TickInterval(); got != time.Second/60 {
		t.Errorf("TickInterval() = %v, want %v", got, time.Second/60)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  enabled: false
engine:
  tick_rate: 30
camera:
  adapter: webcam
  front_device: 2
  back_device: 3
  fps: 10
  autostart: true
  type: back
  quality: high
queue:
  capacity: 8
journal:
  enabled: true
  path: /tmp/journal.db
log:
  level: debug
  development: true
tray:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Enabled {
		t.Error("Server.Enabled = true, want false")
	}
	if cfg.Server.Addr != "127.0.0.1:8088" {
		t.Errorf("Server.Addr = %q, want default kept", cfg.Server.Addr)
	}
	if cfg.Engine.TickRate != 30 {
		t.Errorf("Engine.TickRate = %d, want 30", cfg.Engine.TickRate)
	}
	if cfg.Camera.Adapter != "webcam" || cfg.Camera.FrontDevice != 2 || cfg.Camera.BackDevice != 3 {
		t.Errorf("Camera = %+v", cfg.Camera)
	}
	if ct, _ := cfg.Camera.CameraType(); ct != capture.CameraTypeBack {
		t.Errorf("CameraType() = %v, want back", ct)
	}
	if q, _ := cfg.Camera.CaptureQuality(); q != capture.QualityHigh {
		t.Errorf("CaptureQuality() = %v, want high", q)
	}
	if !cfg.Camera.Autostart || !cfg.Tray.Enabled || !cfg.Log.Development {
		t.Errorf("bool flags not loaded: %+v", cfg)
	}
	if cfg.Queue.Capacity != 8 || cfg.Journal.Path != "/tmp/journal.db" || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, "0.0.0.0:9000")
	t.Setenv(EnvAdapter, "null")
	t.Setenv(EnvJournal, "bridge.db")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, "camera:\n  adapter: webcam\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Camera.Adapter != "null" {
		t.Errorf("Camera.Adapter = %q, env should win over file", cfg.Camera.Adapter)
	}
	if cfg.Journal.Path != "bridge.db" || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{name: "missing file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }},
		{name: "bad yaml", path: func(t *testing.T) string { return writeConfig(t, "server: [") }},
		{name: "invalid value", path: func(t *testing.T) string { return writeConfig(t, "engine:\n  tick_rate: 0\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path(t)); err == nil {
				t.Error("Load() error = nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "server without addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: "server.addr"},
		{name: "server disabled without addr", mutate: func(c *Config) { c.Server.Enabled = false; c.Server.Addr = "" }},
		{name: "tick rate", mutate: func(c *Config) { c.Engine.TickRate = -1 }, wantErr: "tick_rate"},
		{name: "adapter", mutate: func(c *Config) { c.Camera.Adapter = "v4l2" }, wantErr: "camera.adapter"},
		{name: "fps", mutate: func(c *Config) { c.Camera.FPS = 0 }, wantErr: "camera.fps"},
		{name: "type", mutate: func(c *Config) { c.Camera.Type = "side" }, wantErr: "camera.type"},
		{name: "quality", mutate: func(c *Config) { c.Camera.Quality = "ultra" }, wantErr: "camera.quality"},
		{name: "queue", mutate: func(c *Config) { c.Queue.Capacity = 0 }, wantErr: "queue.capacity"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
