package device

import (
	"errors"
	"testing"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		want    string
		wantErr bool
	}{
		{name: "webcam", kind: KindWebcam, want: "*device.Webcam"},
		{name: "synthetic", kind: KindSynthetic, want: "*device.Synthetic"},
		{name: "default", kind: "", want: "*device.Synthetic"},
		{name: "null", kind: KindNull, want: "device.Null"},
		{name: "unknown", kind: "v4l2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(Config{Kind: tt.kind})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			var got string
			switch a.(type) {
			case *Webcam:
				got = "*device.Webcam"
			case *Synthetic:
				got = "*device.Synthetic"
			case Null:
				got = "device.Null"
			}
			if got != tt.want {
				t.Errorf("New(%q) = %T, want %s", tt.kind, a, tt.want)
			}
		})
	}
}

func TestPreviewSize(t *testing.T) {
	tests := []struct {
		quality capture.CaptureQuality
		w, h    int
	}{
		{capture.QualityLow, 320, 240},
		{capture.QualityMedium, 640, 480},
		{capture.QualityHigh, 1280, 720},
	}
	for _, tt := range tests {
		w, h := PreviewSize(tt.quality)
		if w != tt.w || h != tt.h {
			t.Errorf("PreviewSize(%v) = %dx%d, want %dx%d", tt.quality, w, h, tt.w, tt.h)
		}
	}
}

func TestBinderFor(t *testing.T) {
	if _, ok := BinderFor(KindWebcam).(OSThreadBinder); !ok {
		t.Error("webcam should pin OS threads")
	}
	if _, ok := BinderFor(KindSynthetic).(capture.NopBinder); !ok {
		t.Error("synthetic should not pin OS threads")
	}

	b, err := OSThreadBinder{}.Attach()
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	b.Detach()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNull_StartFails(t *testing.T) {
	s := capture.NewSession(capture.SessionConfig{Adapter: Null{}})
	var got []capture.Message
	s.SetCallback(func(_ *capture.FrameBuffer, m capture.Message) {
		got = append(got, m)
	})

	if err := s.Start(capture.CameraTypeFront, capture.QualityLow); !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Errorf("Start() error = %v, want ErrDeviceUnavailable", err)
	}
	s.Update()
	if len(got) != 1 || got[0] != capture.MessageError {
		t.Errorf("messages = %v, want [error]", got)
	}
}
