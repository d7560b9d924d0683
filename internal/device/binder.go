package device

import (
	"runtime"

	"github.com/ayusman/camerabridge/internal/capture"
)

// OSThreadBinder pins the calling goroutine to its OS thread for the
// duration of a device call. OpenCV backends such as AVFoundation and
// V4L2 expect open and release to happen on the same thread.
type OSThreadBinder struct{}

// Attach locks the current goroutine to its thread.
func (OSThreadBinder) Attach() (capture.Binding, error) {
	runtime.LockOSThread()
	return osThread{}, nil
}

type osThread struct{}

// Detach unlocks the goroutine from its thread.
func (osThread) Detach() {
	runtime.UnlockOSThread()
}

// BinderFor returns the thread binder an adapter kind needs.
func BinderFor(kind string) capture.ThreadBinder {
	if kind == KindWebcam {
		return OSThreadBinder{}
	}
	return capture.NopBinder{}
}
