package app

import (
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/ayusman/camerabridge/internal/extension"
	"go.uber.org/zap"
)

// run is the engine loop. Update is only ever called from here, which keeps
// conversion and dispatch on one goroutine.
func (a *App) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			a.ext.Update()
			a.ticks.Add(1)
		}
	}
}

// Bridge adapts the extension's scripting surface to the controls used by
// the HTTP server and the tray. Status callbacks registered through Start
// log each lifecycle message.
type Bridge struct {
	app *App
}

// Start requests a capture. It reports whether the request was accepted.
func (b *Bridge) Start(t capture.CameraType, q capture.CaptureQuality) bool {
	return b.app.ext.StartCapture(t, q, b.onStatus)
}

// Stop requests the running capture to stop.
func (b *Bridge) Stop() bool {
	return b.app.ext.StopCapture()
}

// Toggle starts a capture with the configured camera when idle and stops
// the running one otherwise. It returns whether capture was requested on.
func (b *Bridge) Toggle() bool {
	if b.app.ext.Capturing() {
		b.Stop()
		return false
	}
	return b.Start(b.app.config.CameraType, b.app.config.Quality)
}

// Frame returns the retained frame handle, or nil when not capturing.
func (b *Bridge) Frame() *capture.FrameBuffer {
	return b.app.ext.GetFrame()
}

// Info returns the last camera info.
func (b *Bridge) Info() (extension.Info, bool) {
	return b.app.ext.GetInfo()
}

// Capturing reports whether a capture is running.
func (b *Bridge) Capturing() bool {
	return b.app.ext.Capturing()
}

// Stats returns the frame counters of the current session.
func (b *Bridge) Stats() capture.Stats {
	return b.app.ext.Stats()
}

// Observe registers fn for every dispatched lifecycle message.
func (b *Bridge) Observe(fn extension.Observer) func() {
	return b.app.ext.Observe(fn)
}

func (b *Bridge) onStatus(buf *capture.FrameBuffer, msg capture.Message) {
	fields := []zap.Field{zap.Stringer("message", msg)}
	if buf != nil {
		fields = append(fields,
			zap.String("buffer", buf.ID().String()),
			zap.Int("width", buf.Width()),
			zap.Int("height", buf.Height()))
	}

	switch msg {
	case capture.MessageError, capture.MessageNotPermitted:
		b.app.logger.Warn("capture status", fields...)
	default:
		b.app.logger.Info("capture status", fields...)
	}
}
