package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateCapturing
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Callback receives lifecycle messages on the engine tick. buf is the
// session's FrameBuffer for STARTED and STOPPED and nil otherwise.
type Callback func(buf *FrameBuffer, msg Message)

// EventHandler receives whole queue entries on the engine tick.
type EventHandler func(e Event)

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	Adapter       Adapter
	Binder        ThreadBinder
	Logger        *zap.Logger
	QueueCapacity int
}

// Stats is a snapshot of session counters for the current capture.
type Stats struct {
	State      State
	Delivered  uint64
	Dropped    uint64
	Converted  uint64
	Faults     uint64
	Dispatched uint64
	Pending    int
}

// Session drives one platform camera through
// Idle -> Initializing -> Capturing -> Stopping -> Idle.
//
// Start, Stop, Update and Deinitialize are consumer-side calls and are
// serialized by the session mutex. The adapter's capture thread only
// touches the Channel and the MessageQueue through the Sink, so it never
// waits on the tick.
type Session struct {
	adapter Adapter
	binder  ThreadBinder
	logger  *zap.Logger
	channel *Channel
	queue   *MessageQueue

	mu        sync.Mutex
	state     State
	bound     bool
	devices   []Device
	handler   EventHandler
	format    Format
	info      CameraInfo
	buffer    *FrameBuffer
	scratch   []byte
	converted uint64
	faults    uint64

	dispatched atomic.Uint64
}

// NewSession creates an idle session bound to cfg.Adapter.
func NewSession(cfg SessionConfig) *Session {
	binder := cfg.Binder
	if binder == nil {
		binder = NopBinder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		adapter: cfg.Adapter,
		binder:  binder,
		logger:  logger,
		channel: NewChannel(),
		queue:   NewMessageQueue(cfg.QueueCapacity),
		state:   StateIdle,
	}
}

// Sink returns the producer handle adapters deliver into.
func (s *Session) Sink() Sink {
	return sink{s: s}
}

// SetCallback registers the message callback. A nil callback discards
// messages on dispatch.
func (s *Session) SetCallback(cb Callback) {
	if cb == nil {
		s.SetEventHandler(nil)
		return
	}
	s.SetEventHandler(func(e Event) { cb(e.Buffer, e.Message) })
}

// SetEventHandler is SetCallback for consumers that need the camera info
// and final counters carried by each event.
func (s *Session) SetEventHandler(h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Devices returns the cameras found by the last Initialize.
func (s *Session) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Device(nil), s.devices...)
}

// Info returns the portrait frame geometry of the last started capture and
// whether a capture is running now.
func (s *Session) Info() (CameraInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.state == StateCapturing
}

// Buffer returns the FrameBuffer of the running capture, or nil.
func (s *Session) Buffer() *FrameBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// Stats returns the counters of the current or last capture.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() Stats {
	cs := s.channel.Stats()
	return Stats{
		State:      s.state,
		Delivered:  cs.Delivered,
		Dropped:    cs.Dropped,
		Converted:  s.converted,
		Faults:     s.faults,
		Dispatched: s.dispatched.Load(),
		Pending:    s.queue.Len(),
	}
}

// Initialize binds the adapter and enumerates cameras. It does nothing
// when already bound.
func (s *Session) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked()
}

func (s *Session) initializeLocked() error {
	if s.bound {
		return nil
	}
	if s.adapter == nil {
		return fmt.Errorf("%w: no platform adapter", ErrDeviceUnavailable)
	}

	binding, err := s.binder.Attach()
	if err != nil {
		return fmt.Errorf("attach platform thread: %w", err)
	}
	defer binding.Detach()

	devices, err := s.adapter.Bind(s.Sink())
	if err != nil {
		return fmt.Errorf("bind camera adapter: %w", err)
	}
	if len(devices) == 0 {
		if err := s.adapter.Unbind(); err != nil {
			s.logger.Warn("unbind after empty enumeration failed", zap.Error(err))
		}
		return ErrDeviceUnavailable
	}

	s.devices = devices
	s.bound = true
	s.logger.Info("camera adapter bound", zap.Int("devices", len(devices)))
	return nil
}

// Start opens the camera of type t and begins capture. A permission
// refusal is not a call failure: it is reported as NOT_PERMITTED on the
// next tick and the session stays idle. Any other failure enqueues ERROR,
// returns the session to idle and leaves earlier buffers untouched.
func (s *Session) Start(t CameraType, q CaptureQuality) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyCapturing
	}
	s.state = StateInitializing

	if err := s.startLocked(t, q); err != nil {
		s.state = StateIdle
		if errors.Is(err, ErrPermissionDenied) {
			s.logger.Warn("camera permission denied", zap.Stringer("camera", t))
			s.queue.Enqueue(Event{Message: MessageNotPermitted})
			return nil
		}
		s.logger.Error("start capture failed", zap.Stringer("camera", t), zap.Error(err))
		s.queue.Enqueue(Event{Message: MessageError})
		return err
	}

	s.state = StateCapturing
	s.queue.Enqueue(Event{Message: MessageStarted, Buffer: s.buffer, Info: s.info})
	s.logger.Info("capture started",
		zap.Stringer("camera", t),
		zap.Stringer("quality", q),
		zap.Stringer("encoding", s.format.Encoding),
		zap.Uint32("width", s.info.Width),
		zap.Uint32("height", s.info.Height),
	)
	return nil
}

func (s *Session) startLocked(t CameraType, q CaptureQuality) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, t)
	}
	if err := s.initializeLocked(); err != nil {
		return err
	}
	if !s.hasDevice(t) {
		return fmt.Errorf("%w: no %s camera", ErrDeviceUnavailable, t)
	}

	binding, err := s.binder.Attach()
	if err != nil {
		return fmt.Errorf("attach platform thread: %w", err)
	}
	defer binding.Detach()

	format, err := s.adapter.Open(t, q)
	if err != nil {
		return fmt.Errorf("open %s camera: %w", t, err)
	}
	if err := format.Validate(); err != nil {
		s.closeAdapter()
		return err
	}

	w, h := NormalizePortrait(uint32(format.Width), uint32(format.Height))
	buf := NewFrameBuffer(int(w), int(h))

	s.channel.Reset(format)
	if err := s.adapter.Start(); err != nil {
		s.channel.Close()
		buf.retire()
		s.closeAdapter()
		return fmt.Errorf("start %s camera: %w", t, err)
	}

	s.format = format
	s.info = CameraInfo{Width: w, Height: h, Type: t}
	s.buffer = buf
	s.scratch = nil
	if format.Encoding == EncodingYUV420SP && format.Landscape() {
		s.scratch = make([]byte, buf.Len())
	}
	s.converted = 0
	s.faults = 0
	return nil
}

func (s *Session) hasDevice(t CameraType) bool {
	for _, d := range s.devices {
		if d.Type == t {
			return true
		}
	}
	return false
}

func (s *Session) closeAdapter() {
	if err := s.adapter.Stop(); err != nil {
		s.logger.Warn("closing camera after failed start", zap.Error(err))
	}
}

// Update runs once per engine tick. It converts a pending raw frame into
// the FrameBuffer, then dispatches queued messages to the callback in
// FIFO order. The callback runs without the session lock held, so it may
// call Start or Stop; messages those calls enqueue are dispatched on the
// following tick.
func (s *Session) Update() {
	s.mu.Lock()
	if s.state == StateCapturing {
		s.convertPending()
	}
	h := s.handler
	s.mu.Unlock()

	var n int
	if h == nil {
		n = s.queue.Drain(nil)
	} else {
		n = s.queue.Drain(h)
	}
	s.dispatched.Add(uint64(n))
}

func (s *Session) convertPending() {
	consumed, err := s.channel.Consume(func(f RawFrame) error {
		return s.buffer.write(func(dst []byte) error {
			return s.convert(dst, f)
		})
	})
	if err != nil {
		s.faults++
		s.logger.Warn("dropping frame", zap.Error(err))
		return
	}
	if consumed {
		s.converted++
	}
}

func (s *Session) convert(dst []byte, f RawFrame) error {
	if f.Encoding != s.format.Encoding || f.Width != s.format.Width || f.Height != s.format.Height {
		return fmt.Errorf("%w: got %s %dx%d, capture is %s %dx%d", ErrConversionFault,
			f.Encoding, f.Width, f.Height, s.format.Encoding, s.format.Width, s.format.Height)
	}

	w, h := f.Width, f.Height
	switch f.Encoding {
	case EncodingPackedARGB:
		// Only sources that are already portrait skip the remap.
		if w >= h {
			return ConvertPacked(dst, f.Pixels, w, h)
		}
		return ConvertPackedRaster(dst, f.Pixels, w, h)
	case EncodingYUV420SP:
		if s.format.Landscape() {
			if err := ConvertYUV420SP(s.scratch, f.Data, w, h); err != nil {
				return err
			}
			return RotatePortrait(dst, s.scratch, w, h)
		}
		return ConvertYUV420SP(dst, f.Data, w, h)
	default:
		return fmt.Errorf("%w: unknown encoding %s", ErrConversionFault, f.Encoding)
	}
}

// Stop halts the camera, retires the FrameBuffer and enqueues STOPPED.
// No write reaches the buffer after Stop returns.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return ErrNotCapturing
	}
	s.stopLocked()
	return nil
}

func (s *Session) stopLocked() {
	s.state = StateStopping
	s.channel.Close()

	binding, err := s.binder.Attach()
	if err != nil {
		s.logger.Error("attach platform thread for stop", zap.Error(err))
		s.queue.Enqueue(Event{Message: MessageError})
	} else {
		if err := s.adapter.Stop(); err != nil {
			s.logger.Error("stop camera failed", zap.Error(err))
			s.queue.Enqueue(Event{Message: MessageError})
		}
		binding.Detach()
	}

	buf := s.buffer
	buf.retire()
	s.buffer = nil
	s.scratch = nil
	s.state = StateIdle
	final := s.statsLocked()
	s.queue.Enqueue(Event{Message: MessageStopped, Buffer: buf, Info: s.info, Stats: final})

	s.logger.Info("capture stopped",
		zap.Uint64("delivered", final.Delivered),
		zap.Uint64("dropped", final.Dropped),
		zap.Uint64("converted", final.Converted),
		zap.Uint64("faults", final.Faults),
	)
}

// Deinitialize stops a running capture and releases the adapter bindings.
// It is safe to call repeatedly.
func (s *Session) Deinitialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCapturing {
		s.stopLocked()
	}
	if !s.bound {
		return
	}

	binding, err := s.binder.Attach()
	if err != nil {
		s.logger.Error("attach platform thread for unbind", zap.Error(err))
	} else {
		if err := s.adapter.Unbind(); err != nil {
			s.logger.Warn("unbind camera adapter", zap.Error(err))
		}
		binding.Detach()
	}
	s.bound = false
	s.devices = nil
}

// sink is the producer handle given to adapters.
type sink struct {
	s *Session
}

func (k sink) DeliverFrame(f RawFrame) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			k.s.logger.Error("frame delivery panicked", zap.Any("panic", r))
			k.s.queue.Enqueue(Event{Message: MessageError})
			ok = false
		}
	}()
	return k.s.channel.Offer(f)
}

// PostMessage queues m. STARTED and STOPPED carry a frame handle and are
// only ever enqueued by the session itself, so adapters cannot post them.
func (k sink) PostMessage(m Message) {
	if m == MessageStarted || m == MessageStopped {
		k.s.logger.Warn("ignoring lifecycle message posted by adapter", zap.Stringer("message", m))
		return
	}
	k.s.queue.Enqueue(Event{Message: m})
}
