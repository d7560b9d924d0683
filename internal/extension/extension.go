// Package extension exposes a capture session to a host engine: the
// AppInit/Init/Update/Finalize lifecycle hooks and the start_capture,
// stop_capture, get_frame and get_info calls scripts make.
package extension

import (
	"errors"
	"sync"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusFunc is the script callback registered by StartCapture. buf is the
// frame handle for STARTED and STOPPED and nil otherwise.
type StatusFunc func(buf *capture.FrameBuffer, msg capture.Message)

// Status is a dispatched lifecycle message as seen by observers. Info and
// BufferID describe the capture the message belongs to; Stats holds its
// final counters on STOPPED.
type Status struct {
	Message  capture.Message
	BufferID uuid.UUID
	Info     capture.CameraInfo
	Stats    capture.Stats
	Time     time.Time
}

// Observer is notified after the script callback for every dispatched
// message. It runs on the engine tick and must not block.
type Observer func(Status)

// Info is the get_info result.
type Info struct {
	Width         uint32             `json:"width"`
	Height        uint32             `json:"height"`
	BytesPerPixel int                `json:"bytes_per_pixel"`
	Type          capture.CameraType `json:"type"`
}

// Config holds the collaborators of an Extension.
type Config struct {
	Adapter       capture.Adapter
	Binder        capture.ThreadBinder
	QueueCapacity int
	Logger        *zap.Logger
}

// Extension owns the capture session for one host.
type Extension struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	session   *capture.Session
	onStatus  StatusFunc
	frame     *capture.FrameBuffer
	observers map[int]Observer
	nextObs   int
}

// New creates an extension. Nothing touches the camera until Init.
func New(cfg Config) *Extension {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extension{
		cfg:       cfg,
		logger:    logger.Named("extension"),
		observers: make(map[int]Observer),
	}
}

// AppInit runs once when the host application starts.
func (e *Extension) AppInit() error {
	if e.cfg.Adapter == nil {
		e.logger.Info("registered camera extension without a platform adapter")
		return nil
	}
	e.logger.Info("registered camera extension")
	return nil
}

// Init creates the capture session and binds the platform adapter. A host
// without cameras still initializes; capture attempts then report ERROR.
func (e *Extension) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return nil
	}

	s := capture.NewSession(capture.SessionConfig{
		Adapter:       e.cfg.Adapter,
		Binder:        e.cfg.Binder,
		Logger:        e.logger,
		QueueCapacity: e.cfg.QueueCapacity,
	})
	s.SetEventHandler(e.dispatch)

	if err := s.Initialize(); err != nil {
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			return err
		}
		e.logger.Warn("no camera available", zap.Error(err))
	}
	e.session = s
	return nil
}

// Update drives one engine tick. It must be called from a single goroutine.
func (e *Extension) Update() {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s != nil {
		s.Update()
	}
}

// Finalize stops capture, flushes the final messages to the callback and
// releases the session. The callback and every frame handle are dropped.
func (e *Extension) Finalize() {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil {
		return
	}
	s.Deinitialize()
	s.Update()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frame != nil {
		e.frame.Release()
		e.frame = nil
	}
	e.onStatus = nil
	e.session = nil
}

// AppFinalize runs once when the host application exits.
func (e *Extension) AppFinalize() {
	e.logger.Info("camera extension unregistered")
}

// StartCapture replaces the status callback and starts the camera. It
// reports whether the request was accepted; the outcome arrives as a
// lifecycle message on a later tick.
func (e *Extension) StartCapture(t capture.CameraType, q capture.CaptureQuality, onStatus StatusFunc) bool {
	e.mu.Lock()
	s := e.session
	if s == nil {
		e.mu.Unlock()
		e.logger.Error("start_capture", zap.Error(capture.ErrNotInitialized))
		return false
	}
	e.onStatus = onStatus
	e.mu.Unlock()

	if err := s.Start(t, q); err != nil {
		e.logger.Warn("start_capture failed", zap.Stringer("camera", t), zap.Error(err))
		return false
	}
	return true
}

// StopCapture stops the camera. STOPPED arrives on the next tick.
func (e *Extension) StopCapture() bool {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil {
		e.logger.Error("stop_capture", zap.Error(capture.ErrNotInitialized))
		return false
	}
	if err := s.Stop(); err != nil {
		e.logger.Warn("stop_capture failed", zap.Error(err))
		return false
	}
	return true
}

// GetFrame returns the frame handle published by STARTED, or nil before
// STARTED and after STOPPED.
func (e *Extension) GetFrame() *capture.FrameBuffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// GetInfo returns the geometry of the last started capture. ok is false
// until a capture has started.
func (e *Extension) GetInfo() (Info, bool) {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil {
		return Info{}, false
	}
	ci, _ := s.Info()
	if ci.Width == 0 {
		return Info{}, false
	}
	return Info{
		Width:         ci.Width,
		Height:        ci.Height,
		BytesPerPixel: capture.BytesPerPixel,
		Type:          ci.Type,
	}, true
}

// Capturing reports whether a capture is running.
func (e *Extension) Capturing() bool {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	return s != nil && s.State() == capture.StateCapturing
}

// Stats returns the session counters, or zero stats before Init.
func (e *Extension) Stats() capture.Stats {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil {
		return capture.Stats{}
	}
	return s.Stats()
}

// Observe registers fn for every dispatched message and returns a function
// that removes it.
func (e *Extension) Observe(fn Observer) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

// dispatch is the session event handler. It publishes or withdraws the
// frame handle, then calls the script and the observers without holding
// the extension lock so they may call back in.
func (e *Extension) dispatch(ev capture.Event) {
	cb, observers, info := e.track(ev)

	if cb != nil {
		e.callScript(cb, ev.Buffer, ev.Message)
	}

	st := Status{Message: ev.Message, Info: info, Stats: ev.Stats, Time: time.Now()}
	if ev.Buffer != nil {
		st.BufferID = ev.Buffer.ID()
	}
	for _, o := range observers {
		o(st)
	}
}

// track updates the published frame handle for ev and snapshots what
// dispatch needs under the extension lock.
func (e *Extension) track(ev capture.Event) (StatusFunc, []Observer, capture.CameraInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := ev.Buffer
	switch {
	case buf == nil:
	case ev.Message == capture.MessageStarted:
		if e.frame != nil {
			e.frame.Release()
		}
		buf.Retain()
		e.frame = buf
	case ev.Message == capture.MessageStopped:
		if e.frame == buf {
			e.frame.Release()
			e.frame = nil
		}
	}

	observers := make([]Observer, 0, len(e.observers))
	for _, o := range e.observers {
		observers = append(observers, o)
	}

	info := ev.Info
	if buf == nil && e.session != nil {
		info, _ = e.session.Info()
	}
	return e.onStatus, observers, info
}

// callScript shields the tick from a panicking script callback.
func (e *Extension) callScript(cb StatusFunc, buf *capture.FrameBuffer, msg capture.Message) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("status callback panicked", zap.Stringer("message", msg), zap.Any("panic", r))
		}
	}()
	cb(buf, msg)
}
