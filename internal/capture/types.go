// Package capture implements the camera frame pipeline: the single-slot
// handoff between a platform capture thread and the engine tick, the
// YUV/packed-pixel to RGB conversion, the lifecycle message queue and the
// capture session state machine that ties them together.
package capture

import "fmt"

// CameraType selects which physical camera to open.
type CameraType int

const (
	// CameraTypeFront is the user-facing (selfie) camera.
	CameraTypeFront CameraType = iota
	// CameraTypeBack is the world-facing camera.
	CameraTypeBack
)

func (t CameraType) String() string {
	switch t {
	case CameraTypeFront:
		return "front"
	case CameraTypeBack:
		return "back"
	default:
		return fmt.Sprintf("CameraType(%d)", int(t))
	}
}

// Valid reports whether t is a known camera type.
func (t CameraType) Valid() bool {
	return t == CameraTypeFront || t == CameraTypeBack
}

// ParseCameraType converts "front" or "back" into a CameraType.
func ParseCameraType(s string) (CameraType, error) {
	switch s {
	case "front":
		return CameraTypeFront, nil
	case "back":
		return CameraTypeBack, nil
	default:
		return 0, fmt.Errorf("unknown camera type %q", s)
	}
}

// CaptureQuality is a hint passed to the platform adapter. It never changes
// the shape of the data flowing through the pipeline.
type CaptureQuality int

const (
	QualityLow CaptureQuality = iota
	QualityMedium
	QualityHigh
)

func (q CaptureQuality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	default:
		return fmt.Sprintf("CaptureQuality(%d)", int(q))
	}
}

// Valid reports whether q is a known quality level.
func (q CaptureQuality) Valid() bool {
	return q >= QualityLow && q <= QualityHigh
}

// ParseCaptureQuality converts "low", "medium" or "high" into a CaptureQuality.
func ParseCaptureQuality(s string) (CaptureQuality, error) {
	switch s {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	default:
		return 0, fmt.Errorf("unknown capture quality %q", s)
	}
}

// Message is a lifecycle status event reported to the consumer.
type Message int

const (
	MessageStarted Message = iota
	MessageStopped
	MessageNotPermitted
	// MessageError does not change the session state. A capture that fails
	// while running stays capturing until Stop is called.
	MessageError
	// MessageShowPermissionRationale is optional; adapters that never ask
	// the user for permission never emit it.
	MessageShowPermissionRationale
)

func (m Message) String() string {
	switch m {
	case MessageStarted:
		return "started"
	case MessageStopped:
		return "stopped"
	case MessageNotPermitted:
		return "not_permitted"
	case MessageError:
		return "error"
	case MessageShowPermissionRationale:
		return "show_permission_rationale"
	default:
		return fmt.Sprintf("Message(%d)", int(m))
	}
}

// Event is one entry of the message queue. Buffer and Info are set for
// STARTED and STOPPED events enqueued by the session and zero otherwise.
// Stats holds the final counters of the capture a STOPPED event ends.
type Event struct {
	Message Message
	Buffer  *FrameBuffer
	Info    CameraInfo
	Stats   Stats
}

// BytesPerPixel is the fixed size of one RGB pixel in a FrameBuffer.
const BytesPerPixel = 3

// CameraInfo describes the frames of the running capture. Width never
// exceeds Height.
type CameraInfo struct {
	Width  uint32
	Height uint32
	Type   CameraType
}

// NormalizePortrait swaps width and height when the device reports a
// landscape size so that the result always satisfies width <= height.
func NormalizePortrait(width, height uint32) (uint32, uint32) {
	if width > height {
		return height, width
	}
	return width, height
}

// Encoding identifies the layout of a raw platform frame.
type Encoding int

const (
	// EncodingPackedARGB is one 32-bit word per pixel. The red channel is
	// the low byte, green the second byte and blue the third.
	EncodingPackedARGB Encoding = iota
	// EncodingYUV420SP is a width*height luma plane followed by interleaved
	// chroma pairs subsampled 2x2 (NV21 style).
	EncodingYUV420SP
)

func (e Encoding) String() string {
	switch e {
	case EncodingPackedARGB:
		return "packed-argb"
	case EncodingYUV420SP:
		return "yuv420sp"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Format is the raw frame geometry an adapter negotiated with the device.
// It stays fixed for the lifetime of a capture.
type Format struct {
	Encoding Encoding
	Width    int
	Height   int
}

// Validate checks that the format can be converted. YUV frames need even
// dimensions for 2x2 chroma subsampling.
func (f Format) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFormat, f.Width, f.Height)
	}
	switch f.Encoding {
	case EncodingPackedARGB:
	case EncodingYUV420SP:
		if f.Width%2 != 0 || f.Height%2 != 0 {
			return fmt.Errorf("%w: yuv420sp needs even dimensions, got %dx%d", ErrInvalidFormat, f.Width, f.Height)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, f.Encoding)
	}
	return nil
}

// Landscape reports whether frames arrive wider than they are tall.
func (f Format) Landscape() bool {
	return f.Width > f.Height
}

// RawLen returns the expected length of a raw frame: words for packed
// frames, bytes for YUV frames.
func (f Format) RawLen() int {
	switch f.Encoding {
	case EncodingPackedARGB:
		return f.Width * f.Height
	case EncodingYUV420SP:
		return f.Width * f.Height * 3 / 2
	default:
		return 0
	}
}

// RawFrame is platform pixel data as delivered by an adapter. Only the
// field matching Encoding is populated. The producer keeps ownership: the
// channel copies what it accepts.
type RawFrame struct {
	Encoding Encoding
	Width    int
	Height   int
	Pixels   []uint32
	Data     []byte
}
