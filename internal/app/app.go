// Package app is the host engine of the camera bridge. It owns the
// extension, drives its Update hook once per tick on a single goroutine and
// records lifecycle messages in the journal.
package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/ayusman/camerabridge/internal/extension"
	"github.com/ayusman/camerabridge/internal/journal"
	"go.uber.org/zap"
)

// DefaultTickInterval is used when Config.TickInterval is zero.
const DefaultTickInterval = time.Second / 60

// ErrAlreadyRunning is returned by Start on a running App.
var ErrAlreadyRunning = errors.New("app already running")

// Config holds configuration options for the application.
type Config struct {
	Extension    *extension.Extension
	Journal      *journal.Journal
	TickInterval time.Duration

	// Autostart begins a capture with CameraType and Quality right after
	// the extension is initialized.
	Autostart  bool
	CameraType capture.CameraType
	Quality    capture.CaptureQuality

	Logger *zap.Logger
}

// App runs the engine tick and exposes the capture controls to the server
// and the tray.
type App struct {
	config Config
	ext    *extension.Extension
	logger *zap.Logger

	mu        sync.Mutex
	stopCh    chan struct{}
	done      chan struct{}
	cancelRec func()
	ticks     atomic.Uint64
	bridge    *Bridge
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		config: config,
		ext:    config.Extension,
		logger: logger.Named("app"),
	}
	a.bridge = &Bridge{app: a}
	return a
}

// Bridge returns the capture controls for the server and the tray.
func (a *App) Bridge() *Bridge {
	return a.bridge
}

// Start initializes the extension and begins ticking.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return ErrAlreadyRunning
	}

	if err := a.ext.AppInit(); err != nil {
		return err
	}
	if err := a.ext.Init(); err != nil {
		a.ext.AppFinalize()
		return err
	}

	if a.config.Journal != nil {
		rec := newRecorder(a.config.Journal, a.logger)
		a.cancelRec = a.ext.Observe(rec.observe)
	}

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.stopCh, a.done)

	a.logger.Info("engine started", zap.Duration("tick", a.config.TickInterval))

	if a.config.Autostart {
		if !a.bridge.Start(a.config.CameraType, a.config.Quality) {
			a.logger.Warn("autostart capture was not accepted",
				zap.Stringer("camera", a.config.CameraType),
				zap.Stringer("quality", a.config.Quality))
		}
	}
	return nil
}

// Stop halts the tick loop, then finalizes the extension. Messages still
// queued are dispatched by the final Update inside Finalize.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh == nil {
		return
	}
	close(a.stopCh)
	<-a.done
	a.stopCh = nil
	a.done = nil

	a.ext.Finalize()
	if a.cancelRec != nil {
		a.cancelRec()
		a.cancelRec = nil
	}
	a.ext.AppFinalize()

	a.logger.Info("engine stopped")
}

// Running reports whether the tick loop is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Ticks returns the number of completed engine ticks.
func (a *App) Ticks() uint64 {
	return a.ticks.Load()
}
