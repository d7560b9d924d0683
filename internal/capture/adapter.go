package capture

// Sink is the producer side of a session. Adapters call it from their own
// capture thread; neither method blocks on the engine tick.
type Sink interface {
	// DeliverFrame offers a raw frame. It returns false when the frame was
	// dropped because the previous one is still pending or capture stopped.
	DeliverFrame(f RawFrame) bool

	// PostMessage queues an asynchronous lifecycle event, such as a
	// permission decision arriving after Start returned. STARTED and
	// STOPPED belong to the session and are dropped; ERROR leaves the
	// session capturing until Stop.
	PostMessage(m Message)
}

// Device is a camera an adapter can open.
type Device struct {
	ID   string
	Name string
	Type CameraType
}

// Adapter binds the session to one platform camera stack.
type Adapter interface {
	// Bind enumerates the available cameras and registers the sink frames
	// and messages are delivered to.
	Bind(sink Sink) ([]Device, error)

	// Open selects the camera of type t, applies the quality hint and
	// reports the raw frame format the device will deliver. It returns
	// ErrPermissionDenied when the OS refuses access.
	Open(t CameraType, q CaptureQuality) (Format, error)

	// Start begins frame delivery.
	Start() error

	// Stop halts delivery and closes the opened camera.
	Stop() error

	// Unbind releases everything Bind acquired.
	Unbind() error
}

// ThreadBinder attaches the calling goroutine to the platform runtime
// before device calls, the way a JNI environment must be attached to the
// current thread.
type ThreadBinder interface {
	Attach() (Binding, error)
}

// Binding is an attached platform thread scope. Detach must run on every
// exit path.
type Binding interface {
	Detach()
}

// NopBinder is the ThreadBinder for platforms without thread affinity.
type NopBinder struct{}

// Attach returns a binding whose Detach does nothing.
func (NopBinder) Attach() (Binding, error) {
	return nopBinding{}, nil
}

type nopBinding struct{}

func (nopBinding) Detach() {}
