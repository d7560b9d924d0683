package extension

import (
	"errors"
	"testing"

	"github.com/ayusman/camerabridge/internal/capture"
)

type scriptLog struct {
	msgs []capture.Message
	bufs []*capture.FrameBuffer
}

func (l *scriptLog) onStatus(buf *capture.FrameBuffer, msg capture.Message) {
	l.msgs = append(l.msgs, msg)
	l.bufs = append(l.bufs, buf)
}

func newTestExtension(t *testing.T) (*Extension, *capture.MockAdapter) {
	t.Helper()
	adapter := capture.NewMockAdapter(capture.Format{Encoding: capture.EncodingPackedARGB, Width: 4, Height: 2})
	ext := New(Config{Adapter: adapter})
	if err := ext.AppInit(); err != nil {
		t.Fatalf("AppInit() error = %v", err)
	}
	if err := ext.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return ext, adapter
}

func TestExtension_NotInitialized(t *testing.T) {
	ext := New(Config{})

	if ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, nil) {
		t.Error("StartCapture() before Init = true")
	}
	if ext.StopCapture() {
		t.Error("StopCapture() before Init = true")
	}
	if ext.GetFrame() != nil {
		t.Error("GetFrame() before Init should be nil")
	}
	if _, ok := ext.GetInfo(); ok {
		t.Error("GetInfo() before Init ok = true")
	}
	ext.Update()
	ext.Finalize()
}

func TestExtension_CaptureLifecycle(t *testing.T) {
	ext, _ := newTestExtension(t)
	log := &scriptLog{}

	if !ext.StartCapture(capture.CameraTypeBack, capture.QualityMedium, log.onStatus) {
		t.Fatal("StartCapture() = false")
	}
	if ext.GetFrame() != nil {
		t.Error("GetFrame() should stay nil until STARTED is dispatched")
	}

	ext.Update()

	frame := ext.GetFrame()
	if frame == nil {
		t.Fatal("GetFrame() = nil after STARTED")
	}
	if len(log.msgs) != 1 || log.msgs[0] != capture.MessageStarted || log.bufs[0] != frame {
		t.Fatalf("script saw %v, want STARTED with the frame", log.msgs)
	}

	info, ok := ext.GetInfo()
	if !ok {
		t.Fatal("GetInfo() ok = false after STARTED")
	}
	want := Info{Width: 2, Height: 4, BytesPerPixel: 3, Type: capture.CameraTypeBack}
	if info != want {
		t.Errorf("GetInfo() = %+v, want %+v", info, want)
	}
	if !ext.Capturing() {
		t.Error("Capturing() = false")
	}

	if !ext.StopCapture() {
		t.Fatal("StopCapture() = false")
	}
	ext.Update()

	if ext.GetFrame() != nil {
		t.Error("GetFrame() after STOPPED should be nil")
	}
	if !frame.Released() {
		t.Error("frame storage kept after STOPPED with no script reference")
	}
	if log.msgs[1] != capture.MessageStopped || log.bufs[1] != frame {
		t.Errorf("script saw %v, want STOPPED with the frame", log.msgs)
	}
}

func TestExtension_ScriptReferenceOutlivesStop(t *testing.T) {
	ext, _ := newTestExtension(t)

	var held *capture.FrameBuffer
	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, func(buf *capture.FrameBuffer, msg capture.Message) {
		if msg == capture.MessageStarted {
			buf.Retain()
			held = buf
		}
	})
	ext.Update()
	ext.StopCapture()
	ext.Update()

	if held.Released() {
		t.Fatal("frame freed while the script holds it")
	}
	if !held.Retired() {
		t.Error("frame still writable after stop")
	}
	held.Release()
	if !held.Released() {
		t.Error("frame not freed after the script let go")
	}
}

func TestExtension_StartReplacesCallback(t *testing.T) {
	ext, _ := newTestExtension(t)
	first, second := &scriptLog{}, &scriptLog{}

	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, first.onStatus)
	if ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, second.onStatus) {
		t.Error("second StartCapture() while capturing = true")
	}
	ext.Update()

	if len(first.msgs) != 0 {
		t.Errorf("replaced callback received %v", first.msgs)
	}
	if len(second.msgs) != 1 || second.msgs[0] != capture.MessageStarted {
		t.Errorf("current callback received %v, want [started]", second.msgs)
	}
}

func TestExtension_PermissionDenied(t *testing.T) {
	ext, adapter := newTestExtension(t)
	adapter.OpenErr = capture.ErrPermissionDenied
	log := &scriptLog{}

	if !ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, log.onStatus) {
		t.Error("StartCapture() = false, permission is reported asynchronously")
	}
	ext.Update()

	if len(log.msgs) != 1 || log.msgs[0] != capture.MessageNotPermitted {
		t.Errorf("script saw %v, want [not_permitted]", log.msgs)
	}
	if ext.GetFrame() != nil {
		t.Error("GetFrame() should be nil")
	}
}

func TestExtension_StopWhileIdle(t *testing.T) {
	ext, _ := newTestExtension(t)

	if ext.StopCapture() {
		t.Error("StopCapture() while idle = true")
	}
}

func TestExtension_CallbackMayStop(t *testing.T) {
	ext, _ := newTestExtension(t)
	log := &scriptLog{}

	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, func(buf *capture.FrameBuffer, msg capture.Message) {
		log.onStatus(buf, msg)
		if msg == capture.MessageStarted {
			ext.StopCapture()
		}
	})
	ext.Update()
	ext.Update()

	if len(log.msgs) != 2 || log.msgs[1] != capture.MessageStopped {
		t.Errorf("script saw %v, want [started stopped]", log.msgs)
	}
}

func TestExtension_PanickingCallback(t *testing.T) {
	ext, _ := newTestExtension(t)
	var seen []capture.Message
	ext.Observe(func(st Status) { seen = append(seen, st.Message) })

	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, func(*capture.FrameBuffer, capture.Message) {
		panic("script error")
	})
	ext.Update()

	if len(seen) != 1 {
		t.Errorf("observers saw %v after a script panic", seen)
	}
	if ext.GetFrame() == nil {
		t.Error("frame not published after a script panic")
	}
}

func TestExtension_Observe(t *testing.T) {
	ext, _ := newTestExtension(t)

	var got []Status
	cancel := ext.Observe(func(st Status) { got = append(got, st) })

	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, nil)
	ext.Update()

	if len(got) != 1 || got[0].Message != capture.MessageStarted {
		t.Fatalf("observer saw %+v", got)
	}
	if got[0].BufferID != ext.GetFrame().ID() {
		t.Error("status carries the wrong buffer ID")
	}
	if got[0].Info.Width != 2 || got[0].Info.Height != 4 {
		t.Errorf("status info = %+v", got[0].Info)
	}

	cancel()
	ext.StopCapture()
	ext.Update()
	if len(got) != 1 {
		t.Errorf("cancelled observer still notified: %+v", got)
	}
}

func TestExtension_Finalize(t *testing.T) {
	ext, adapter := newTestExtension(t)
	log := &scriptLog{}
	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, log.onStatus)
	ext.Update()
	frame := ext.GetFrame()

	ext.Finalize()
	ext.AppFinalize()

	if adapter.Unbinds != 1 {
		t.Errorf("adapter.Unbinds = %d, want 1", adapter.Unbinds)
	}
	if !frame.Released() {
		t.Error("frame still alive after Finalize")
	}
	if last := log.msgs[len(log.msgs)-1]; last != capture.MessageStopped {
		t.Errorf("last message = %v, want stopped", last)
	}
	if ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, nil) {
		t.Error("StartCapture() after Finalize = true")
	}
}

func TestExtension_InitWithoutCameras(t *testing.T) {
	adapter := capture.NewMockAdapter(capture.Format{Encoding: capture.EncodingPackedARGB, Width: 2, Height: 2})
	adapter.SetDevices(nil)
	ext := New(Config{Adapter: adapter})

	if err := ext.Init(); err != nil {
		t.Fatalf("Init() error = %v, want nil on a host without cameras", err)
	}

	log := &scriptLog{}
	if ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, log.onStatus) {
		t.Error("StartCapture() = true without cameras")
	}
	ext.Update()
	if len(log.msgs) != 1 || log.msgs[0] != capture.MessageError {
		t.Errorf("script saw %v, want [error]", log.msgs)
	}
}

func TestExtension_InitBindFailure(t *testing.T) {
	adapter := capture.NewMockAdapter(capture.Format{Encoding: capture.EncodingPackedARGB, Width: 2, Height: 2})
	bindErr := errors.New("camera service crashed")
	adapter.BindErr = bindErr
	ext := New(Config{Adapter: adapter})

	if err := ext.Init(); !errors.Is(err, bindErr) {
		t.Errorf("Init() error = %v, want %v", err, bindErr)
	}
}

func TestConstants(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"CAMERA_TYPE_FRONT", 0},
		{"CAMERA_TYPE_BACK", 1},
		{"CAPTURE_QUALITY_LOW", 0},
		{"CAPTURE_QUALITY_MEDIUM", 1},
		{"CAPTURE_QUALITY_HIGH", 2},
		{"CAMERA_STARTED", 0},
		{"CAMERA_STOPPED", 1},
		{"CAMERA_NOT_PERMITTED", 2},
		{"CAMERA_ERROR", 3},
		{"CAMERA_SHOW_PERMISSION_RATIONALE", 4},
	}

	c := Constants()
	for _, tt := range tests {
		got, ok := c[tt.name]
		if !ok || got != tt.want {
			t.Errorf("Constants()[%s] = %d, %v; want %d", tt.name, got, ok, tt.want)
		}
	}
}

func TestExtension_AdapterPostedLifecycleIgnored(t *testing.T) {
	ext, adapter := newTestExtension(t)
	log := &scriptLog{}
	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, log.onStatus)
	ext.Update()
	frame := ext.GetFrame()

	for _, msg := range []capture.Message{capture.MessageStarted, capture.MessageStopped} {
		if err := adapter.Post(msg); err != nil {
			t.Fatalf("Post(%v) error = %v", msg, err)
		}
	}
	ext.Update()

	if len(log.msgs) != 1 {
		t.Errorf("script saw %v, want only the session's STARTED", log.msgs)
	}
	if ext.GetFrame() != frame {
		t.Error("posted lifecycle messages replaced the frame handle")
	}
	if !ext.Capturing() {
		t.Error("Capturing() = false after posted STOPPED")
	}

	// The extension lock must not be left held.
	if !ext.StopCapture() {
		t.Fatal("StopCapture() = false")
	}
	ext.Update()
	if ext.GetFrame() != nil {
		t.Error("GetFrame() after STOPPED should be nil")
	}
}

func TestExtension_DispatchWithoutBuffer(t *testing.T) {
	ext, _ := newTestExtension(t)

	var got []Status
	ext.Observe(func(st Status) { got = append(got, st) })

	for _, msg := range []capture.Message{capture.MessageStarted, capture.MessageStopped} {
		ext.dispatch(capture.Event{Message: msg})
	}

	if len(got) != 2 {
		t.Fatalf("observer saw %d statuses, want 2", len(got))
	}
	if ext.GetFrame() != nil {
		t.Error("GetFrame() published a handle without a buffer")
	}
}

func TestExtension_SameTickRestart(t *testing.T) {
	ext, adapter := newTestExtension(t)

	var got []Status
	ext.Observe(func(st Status) { got = append(got, st) })

	ext.StartCapture(capture.CameraTypeFront, capture.QualityLow, nil)
	adapter.Deliver(capture.RawFrame{
		Encoding: capture.EncodingPackedARGB, Width: 4, Height: 2, Pixels: make([]uint32, 8),
	})
	ext.StopCapture()
	adapter.SetFormat(capture.Format{Encoding: capture.EncodingPackedARGB, Width: 6, Height: 2})
	ext.StartCapture(capture.CameraTypeBack, capture.QualityHigh, nil)
	ext.Update()

	tests := []struct {
		msg       capture.Message
		camera    capture.CameraType
		height    uint32
		delivered uint64
	}{
		{msg: capture.MessageStarted, camera: capture.CameraTypeFront, height: 4},
		{msg: capture.MessageStopped, camera: capture.CameraTypeFront, height: 4, delivered: 1},
		{msg: capture.MessageStarted, camera: capture.CameraTypeBack, height: 6},
	}

	if len(got) != len(tests) {
		t.Fatalf("observer saw %d statuses, want %d", len(got), len(tests))
	}
	for i, tt := range tests {
		st := got[i]
		if st.Message != tt.msg || st.Info.Type != tt.camera || st.Info.Height != tt.height {
			t.Errorf("status %d = %v %v %dx%d, want %v %v height %d",
				i, st.Message, st.Info.Type, st.Info.Width, st.Info.Height, tt.msg, tt.camera, tt.height)
		}
		if tt.msg == capture.MessageStopped && st.Stats.Delivered != tt.delivered {
			t.Errorf("STOPPED stats.Delivered = %d, want %d", st.Stats.Delivered, tt.delivered)
		}
	}

	if got[0].BufferID != got[1].BufferID {
		t.Error("STOPPED carries a different buffer ID than its STARTED")
	}
	if got[2].BufferID == got[0].BufferID {
		t.Error("restart reused the buffer ID")
	}
	if frame := ext.GetFrame(); frame == nil || frame.ID() != got[2].BufferID {
		t.Error("GetFrame() is not the restarted capture's handle")
	}
}
