// Package device provides the platform camera adapters a capture session
// can drive: a gocv desktop webcam, a synthetic NV21 test pattern and a
// null adapter for hosts without camera support.
package device

import (
	"fmt"

	"github.com/ayusman/camerabridge/internal/capture"
	"go.uber.org/zap"
)

// Adapter names accepted by New.
const (
	KindWebcam    = "webcam"
	KindSynthetic = "synthetic"
	KindNull      = "null"
)

// Default capture settings.
const (
	DefaultFPS = 15
)

// Config selects and configures an adapter.
type Config struct {
	Kind        string
	FrontDevice int
	BackDevice  int
	FPS         int
	Logger      *zap.Logger
}

// New returns the adapter named by cfg.Kind.
func New(cfg Config) (capture.Adapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}

	switch cfg.Kind {
	case KindWebcam:
		return NewWebcam(WebcamConfig{
			FrontDevice: cfg.FrontDevice,
			BackDevice:  cfg.BackDevice,
			FPS:         cfg.FPS,
			Logger:      cfg.Logger,
		}), nil
	case KindSynthetic, "":
		return NewSynthetic(SyntheticConfig{
			FPS:    cfg.FPS,
			Logger: cfg.Logger,
		}), nil
	case KindNull:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("unknown camera adapter %q", cfg.Kind)
	}
}

// PreviewSize returns the landscape resolution requested from the device
// for q.
func PreviewSize(q capture.CaptureQuality) (width, height int) {
	switch q {
	case capture.QualityLow:
		return 320, 240
	case capture.QualityHigh:
		return 1280, 720
	default:
		return 640, 480
	}
}
