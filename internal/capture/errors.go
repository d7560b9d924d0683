package capture

import "errors"

var (
	// ErrDeviceUnavailable is returned when no camera matches the request.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrPermissionDenied is returned by adapters when the OS refused camera
	// access. The session reports it as a NOT_PERMITTED message.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrAlreadyCapturing is returned when starting while a capture is active.
	ErrAlreadyCapturing = errors.New("capture already active")

	// ErrNotCapturing is returned when stopping without an active capture.
	ErrNotCapturing = errors.New("capture not active")

	// ErrConversionFault is returned when a raw frame or destination buffer
	// does not have the size the format requires.
	ErrConversionFault = errors.New("frame conversion fault")

	// ErrBufferReleased is returned when writing to a retired FrameBuffer.
	ErrBufferReleased = errors.New("frame buffer released")

	// ErrNotInitialized is returned by capture calls made before the host
	// ran Init or after Finalize.
	ErrNotInitialized = errors.New("camera bridge not initialized")

	// ErrInvalidFormat is returned when an adapter negotiates an unusable format.
	ErrInvalidFormat = errors.New("invalid frame format")
)
