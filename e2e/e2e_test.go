package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/camerabridge/internal/app"
	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/ayusman/camerabridge/internal/config"
	"github.com/ayusman/camerabridge/internal/device"
	"github.com/ayusman/camerabridge/internal/extension"
	"github.com/ayusman/camerabridge/internal/journal"
	"github.com/ayusman/camerabridge/internal/server"
)

// bridge wires the stack the way cmd/camerabridge does, from a YAML file.
type bridge struct {
	cfg     *config.Config
	journal *journal.Journal
	app     *app.App
	server  *httptest.Server
}

func newBridge(t *testing.T, yaml string) *bridge {
	t.Helper()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "camerabridge.yaml")
	yaml = strings.ReplaceAll(yaml, "$DIR", tmpDir)
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	adapter, err := device.New(device.Config{
		Kind:        cfg.Camera.Adapter,
		FrontDevice: cfg.Camera.FrontDevice,
		BackDevice:  cfg.Camera.BackDevice,
		FPS:         cfg.Camera.FPS,
	})
	if err != nil {
		t.Fatalf("device.New() error = %v", err)
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		t.Fatalf("journal.Open() error = %v", err)
	}

	cameraType, _ := cfg.Camera.CameraType()
	quality, _ := cfg.Camera.CaptureQuality()
	a := app.New(app.Config{
		Extension: extension.New(extension.Config{
			Adapter:       adapter,
			Binder:        device.BinderFor(cfg.Camera.Adapter),
			QueueCapacity: cfg.Queue.Capacity,
		}),
		Journal:      j,
		TickInterval: cfg.Engine.TickInterval(),
		Autostart:    cfg.Camera.Autostart,
		CameraType:   cameraType,
		Quality:      quality,
	})
	if err := a.Start(); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}

	srv := server.New(server.Config{Bridge: a.Bridge(), Journal: j})
	ts := httptest.NewServer(srv)

	t.Cleanup(func() {
		srv.Shutdown(t.Context())
		ts.Close()
		a.Stop()
		j.Close()
	})
	return &bridge{cfg: cfg, journal: j, app: a, server: ts}
}

func (b *bridge) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := b.server.Client().Get(b.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (b *bridge) post(t *testing.T, path, body string) int {
	t.Helper()
	resp, err := b.server.Client().Post(b.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	b := newBridge(t, `
engine:
  tick_rate: 120
camera:
  adapter: synthetic
  fps: 30
journal:
  path: $DIR/journal.db
`)

	t.Run("StartCapture", func(t *testing.T) {
		body := `{"type":"front","quality":"low"}`
		if code := b.post(t, "/api/capture/start", body); code != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", code, http.StatusAccepted)
		}
		eventually(t, "frame handle", func() bool { return b.app.Bridge().Frame() != nil })
	})

	t.Run("FrameHasPortraitShape", func(t *testing.T) {
		var info struct {
			Width         int    `json:"width"`
			Height        int    `json:"height"`
			BytesPerPixel int    `json:"bytes_per_pixel"`
			Type          string `json:"type"`
		}
		if code := b.get(t, "/api/info", &info); code != http.StatusOK {
			t.Fatalf("status = %d, want %d", code, http.StatusOK)
		}
		if info.Width > info.Height {
			t.Errorf("info = %dx%d, want portrait", info.Width, info.Height)
		}
		if info.BytesPerPixel != capture.BytesPerPixel || info.Type != "front" {
			t.Errorf("info = %+v", info)
		}

		buf := b.app.Bridge().Frame()
		eventually(t, "converted frame", func() bool { return buf.Frames() > 0 })
		if buf.Len() != info.Width*info.Height*capture.BytesPerPixel {
			t.Errorf("Len() = %d, want %d", buf.Len(), info.Width*info.Height*capture.BytesPerPixel)
		}

		// Colour bars: the frame is not uniform.
		pixels := buf.Snapshot()
		colours := make(map[[3]byte]bool)
		for i := 0; i+2 < len(pixels); i += capture.BytesPerPixel {
			colours[[3]byte{pixels[i], pixels[i+1], pixels[i+2]}] = true
		}
		if len(colours) < 2 {
			t.Errorf("frame has %d distinct colours, want several bars", len(colours))
		}
	})

	t.Run("StopCapture", func(t *testing.T) {
		if code := b.post(t, "/api/capture/stop", ""); code != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", code, http.StatusAccepted)
		}
		eventually(t, "journaled session", func() bool {
			sessions, _ := b.journal.Sessions().List(0)
			return len(sessions) == 1 && sessions[0].Status == journal.StatusStopped
		})
		if b.app.Bridge().Frame() != nil {
			t.Error("frame handle still published after STOPPED")
		}
	})

	t.Run("RestartGetsNewHandle", func(t *testing.T) {
		sessions, _ := b.journal.Sessions().List(0)
		first := sessions[0].ID

		if code := b.post(t, "/api/capture/start", `{"type":"front","quality":"medium"}`); code != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", code, http.StatusAccepted)
		}
		eventually(t, "second handle", func() bool { return b.app.Bridge().Frame() != nil })
		if id := b.app.Bridge().Frame().ID().String(); id == first {
			t.Errorf("restart reused handle %s", id)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		if code := b.get(t, "/api/health", nil); code != http.StatusOK {
			t.Errorf("health check failed after capture")
		}
	})
}

func TestE2E_BackCameraMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	b := newBridge(t, `
camera:
  adapter: "null"
`)

	if code := b.post(t, "/api/capture/start", `{"type":"back"}`); code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	eventually(t, "error event", func() bool {
		events, _ := b.journal.Events().Recent(1)
		return len(events) == 1 && events[0].Message == "error"
	})
	if code := b.get(t, "/api/info", nil); code != http.StatusNotFound {
		t.Errorf("info status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestE2E_ConstantsMatchMessages(t *testing.T) {
	consts := extension.Constants()

	tests := []struct {
		name string
		want int
	}{
		{name: "CAMERA_TYPE_FRONT", want: 0},
		{name: "CAMERA_TYPE_BACK", want: 1},
		{name: "CAPTURE_QUALITY_LOW", want: 0},
		{name: "CAPTURE_QUALITY_HIGH", want: 2},
		{name: "CAMERA_STARTED", want: 0},
		{name: "CAMERA_SHOW_PERMISSION_RATIONALE", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := consts[tt.name]; !ok || got != tt.want {
				t.Errorf("%s = %d (present %v), want %d", tt.name, got, ok, tt.want)
			}
		})
	}
}
