package device

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// maxReadFailures is how many consecutive empty reads end the read loop.
// The loop posts ERROR and exits; the device stays open until Stop.
const maxReadFailures = 30

// ErrCameraNotOpen is returned when starting a webcam that was not opened.
var ErrCameraNotOpen = errors.New("camera is not open")

// WebcamConfig configures a Webcam. A negative device index disables that
// camera type.
type WebcamConfig struct {
	FrontDevice int
	BackDevice  int
	FPS         int
	Logger      *zap.Logger
}

// Webcam captures from a desktop camera through GoCV (OpenCV). Frames are
// read on a dedicated goroutine and delivered as packed pixel words.
type Webcam struct {
	cfg    WebcamConfig
	logger *zap.Logger

	mu       sync.Mutex
	sink     capture.Sink
	capture  *gocv.VideoCapture
	format   capture.Format
	deviceID int
	stop     chan struct{}
	done     chan struct{}
}

// NewWebcam creates a Webcam. Nothing is opened until Open.
func NewWebcam(cfg WebcamConfig) *Webcam {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webcam{
		cfg:    cfg,
		logger: logger.Named("webcam"),
	}
}

// FPS returns the configured frame rate.
func (w *Webcam) FPS() int {
	return w.cfg.FPS
}

// Bind lists the configured device indices. OpenCV has no portable way to
// enumerate cameras, so availability is only checked on Open.
func (w *Webcam) Bind(sink capture.Sink) ([]capture.Device, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sink = sink

	var devices []capture.Device
	if w.cfg.FrontDevice >= 0 {
		devices = append(devices, webcamDevice(w.cfg.FrontDevice, capture.CameraTypeFront))
	}
	if w.cfg.BackDevice >= 0 {
		devices = append(devices, webcamDevice(w.cfg.BackDevice, capture.CameraTypeBack))
	}
	return devices, nil
}

func webcamDevice(id int, t capture.CameraType) capture.Device {
	return capture.Device{
		ID:   strconv.Itoa(id),
		Name: fmt.Sprintf("video%d", id),
		Type: t,
	}
}

// Open opens the device for t and requests the preview size for q. The
// format reports the size the driver actually accepted.
func (w *Webcam) Open(t capture.CameraType, q capture.CaptureQuality) (capture.Format, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture != nil {
		return w.format, nil
	}

	id := w.cfg.FrontDevice
	if t == capture.CameraTypeBack {
		id = w.cfg.BackDevice
	}
	if id < 0 {
		return capture.Format{}, fmt.Errorf("%w: no %s webcam configured", capture.ErrDeviceUnavailable, t)
	}

	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return capture.Format{}, fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return capture.Format{}, fmt.Errorf("%w: video%d did not open", capture.ErrDeviceUnavailable, id)
	}

	width, height := PreviewSize(q)
	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	vc.Set(gocv.VideoCaptureFPS, float64(w.cfg.FPS))

	if got := int(vc.Get(gocv.VideoCaptureFrameWidth)); got > 0 {
		width = got
	}
	if got := int(vc.Get(gocv.VideoCaptureFrameHeight)); got > 0 {
		height = got
	}

	w.capture = vc
	w.deviceID = id
	w.format = capture.Format{Encoding: capture.EncodingPackedARGB, Width: width, Height: height}
	w.logger.Info("webcam opened",
		zap.Int("device", id),
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return w.format, nil
}

// Start launches the read loop.
func (w *Webcam) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return ErrCameraNotOpen
	}
	if w.stop != nil {
		return nil
	}
	if w.sink == nil {
		return fmt.Errorf("webcam not bound")
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.capture, w.format, w.sink, w.stop, w.done)
	return nil
}

// Stop ends the read loop, waits for it to exit and closes the device.
func (w *Webcam) Stop() error {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil
	}
	err := w.capture.Close()
	w.capture = nil
	return err
}

// Unbind stops any capture and forgets the sink.
func (w *Webcam) Unbind() error {
	err := w.Stop()

	w.mu.Lock()
	w.sink = nil
	w.mu.Unlock()
	return err
}

func (w *Webcam) run(vc *gocv.VideoCapture, f capture.Format, sink capture.Sink, stop, done chan struct{}) {
	defer close(done)

	mat := gocv.NewMat()
	defer mat.Close()
	scaled := gocv.NewMat()
	defer scaled.Close()

	pixels := make([]uint32, f.Width*f.Height)
	ticker := time.NewTicker(time.Second / time.Duration(w.cfg.FPS))
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if ok := vc.Read(&mat); !ok || mat.Empty() {
			failures++
			if failures >= maxReadFailures {
				w.logger.Error("webcam stopped delivering frames", zap.Int("device", w.deviceID))
				sink.PostMessage(capture.MessageError)
				return
			}
			continue
		}
		failures = 0

		src := mat
		if mat.Cols() != f.Width || mat.Rows() != f.Height {
			gocv.Resize(mat, &scaled, image.Point{X: f.Width, Y: f.Height}, 0, 0, gocv.InterpolationLinear)
			src = scaled
		}

		if err := PackBGR(pixels, src.ToBytes()); err != nil {
			w.logger.Debug("skipping webcam frame", zap.Error(err))
			continue
		}
		if !sink.DeliverFrame(capture.RawFrame{
			Encoding: capture.EncodingPackedARGB,
			Width:    f.Width,
			Height:   f.Height,
			Pixels:   pixels,
		}) {
			w.logger.Debug("frame dropped")
		}
	}
}

// PackBGR converts OpenCV BGR triplets into packed words with red in the
// low byte, green in the second and blue in the third.
func PackBGR(dst []uint32, bgr []byte) error {
	if len(bgr) != len(dst)*3 {
		return fmt.Errorf("%w: %d BGR bytes for %d pixels", capture.ErrConversionFault, len(bgr), len(dst))
	}
	for i := range dst {
		b, g, r := bgr[i*3], bgr[i*3+1], bgr[i*3+2]
		dst[i] = 0xFF000000 | uint32(r) | uint32(g)<<8 | uint32(b)<<16
	}
	return nil
}
