package device

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"go.uber.org/zap"
)

// SyntheticConfig configures a Synthetic camera.
type SyntheticConfig struct {
	FPS int
	// DenyPermission makes Open fail the way a refused OS prompt does.
	DenyPermission bool
	// AskRationale posts SHOW_PERMISSION_RATIONALE before the decision.
	AskRationale bool
	// BackOnly hides the front camera from enumeration.
	BackOnly bool
	Logger   *zap.Logger
}

// Synthetic is a camera without hardware. It produces a moving NV21 colour
// bar pattern on its own goroutine, which makes the whole pipeline runnable
// on machines with no webcam.
type Synthetic struct {
	cfg    SyntheticConfig
	logger *zap.Logger

	mu     sync.Mutex
	sink   capture.Sink
	format capture.Format
	opened bool
	stop   chan struct{}
	done   chan struct{}

	sent atomic.Uint64
}

// NewSynthetic creates a synthetic camera.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthetic{
		cfg:    cfg,
		logger: logger.Named("synthetic"),
	}
}

// Sent returns how many frames the generator has offered to the sink.
func (s *Synthetic) Sent() uint64 {
	return s.sent.Load()
}

func (s *Synthetic) Bind(sink capture.Sink) ([]capture.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sink = sink
	devices := []capture.Device{
		{ID: "synthetic-back", Name: "Synthetic Back", Type: capture.CameraTypeBack},
	}
	if !s.cfg.BackOnly {
		devices = append(devices, capture.Device{ID: "synthetic-front", Name: "Synthetic Front", Type: capture.CameraTypeFront})
	}
	return devices, nil
}

func (s *Synthetic) Open(t capture.CameraType, q capture.CaptureQuality) (capture.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.AskRationale && s.sink != nil {
		s.sink.PostMessage(capture.MessageShowPermissionRationale)
	}
	if s.cfg.DenyPermission {
		return capture.Format{}, capture.ErrPermissionDenied
	}

	w, h := PreviewSize(q)
	s.format = capture.Format{Encoding: capture.EncodingYUV420SP, Width: w, Height: h}
	s.opened = true
	return s.format, nil
}

func (s *Synthetic) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened || s.sink == nil {
		return ErrCameraNotOpen
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.format, s.sink, s.stop, s.done)
	return nil
}

func (s *Synthetic) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.opened = false
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (s *Synthetic) Unbind() error {
	err := s.Stop()

	s.mu.Lock()
	s.sink = nil
	s.mu.Unlock()
	return err
}

func (s *Synthetic) run(f capture.Format, sink capture.Sink, stop, done chan struct{}) {
	defer close(done)

	data := make([]byte, f.RawLen())
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ColorBars(data, f.Width, f.Height, seq)
		s.sent.Add(1)
		sink.DeliverFrame(capture.RawFrame{
			Encoding: capture.EncodingYUV420SP,
			Width:    f.Width,
			Height:   f.Height,
			Data:     data,
		})
	}
}

// barChroma holds Cb/Cr pairs for the classic colour bars: white, yellow,
// cyan, green, magenta, red, blue, black.
var barChroma = [8][2]byte{
	{128, 128}, {16, 146}, {166, 16}, {54, 34},
	{202, 222}, {90, 240}, {240, 110}, {128, 128},
}

var barLuma = [8]byte{235, 210, 170, 145, 106, 81, 41, 16}

// ColorBars fills an NV21 frame with eight vertical bars shifted right by
// seq pixels.
func ColorBars(dst []byte, width, height, seq int) {
	size := width * height
	barWidth := width / len(barLuma)
	if barWidth == 0 {
		barWidth = 1
	}
	bar := func(x int) int {
		b := ((x + seq) % width) / barWidth
		if b >= len(barLuma) {
			b = len(barLuma) - 1
		}
		return b
	}

	for y := 0; y < height; y++ {
		row := dst[y*width : (y+1)*width]
		for x := range row {
			row[x] = barLuma[bar(x)]
		}
	}
	for y := 0; y < height/2; y++ {
		for x := 0; x < width/2; x++ {
			c := barChroma[bar(x*2)]
			i := size + y*width + x*2
			dst[i] = c[0]
			dst[i+1] = c[1]
		}
	}
}
