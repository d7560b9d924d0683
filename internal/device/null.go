package device

import (
	"github.com/ayusman/camerabridge/internal/capture"
)

// Null is the adapter for hosts without a camera stack. It binds without
// finding any camera, so every capture attempt fails with
// ErrDeviceUnavailable and reports ERROR.
type Null struct{}

func (Null) Bind(capture.Sink) ([]capture.Device, error) {
	return nil, nil
}

func (Null) Open(capture.CameraType, capture.CaptureQuality) (capture.Format, error) {
	return capture.Format{}, capture.ErrDeviceUnavailable
}

func (Null) Start() error {
	return capture.ErrDeviceUnavailable
}

func (Null) Stop() error {
	return nil
}

func (Null) Unbind() error {
	return nil
}
