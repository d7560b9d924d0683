package capture

import (
	"errors"
	"sync"
)

// MockAdapter is a scripted Adapter for tests. Frames are pushed by the
// test through Deliver instead of a capture thread.
type MockAdapter struct {
	mu      sync.Mutex
	devices []Device
	format  Format
	sink    Sink
	running bool

	BindErr  error
	OpenErr  error
	StartErr error
	StopErr  error

	Binds   int
	Opens   int
	Starts  int
	Stops   int
	Unbinds int

	LastType    CameraType
	LastQuality CaptureQuality
}

// NewMockAdapter creates a mock with a front and a back camera that
// delivers frames in the given format.
func NewMockAdapter(format Format) *MockAdapter {
	return &MockAdapter{
		devices: []Device{
			{ID: "mock-front", Name: "Mock Front", Type: CameraTypeFront},
			{ID: "mock-back", Name: "Mock Back", Type: CameraTypeBack},
		},
		format: format,
	}
}

// SetDevices replaces the enumerated cameras.
func (m *MockAdapter) SetDevices(devices []Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
}

// SetFormat changes the format reported by the next Open.
func (m *MockAdapter) SetFormat(f Format) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.format = f
}

func (m *MockAdapter) Bind(sink Sink) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Binds++
	if m.BindErr != nil {
		return nil, m.BindErr
	}
	m.sink = sink
	return append([]Device(nil), m.devices...), nil
}

func (m *MockAdapter) Open(t CameraType, q CaptureQuality) (Format, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Opens++
	m.LastType = t
	m.LastQuality = q
	if m.OpenErr != nil {
		return Format{}, m.OpenErr
	}
	return m.format, nil
}

func (m *MockAdapter) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.running = true
	return nil
}

func (m *MockAdapter) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Stops++
	m.running = false
	return m.StopErr
}

func (m *MockAdapter) Unbind() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Unbinds++
	m.sink = nil
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (m *MockAdapter) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Deliver pushes f into the bound sink the way a capture thread would.
func (m *MockAdapter) Deliver(f RawFrame) (bool, error) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()

	if sink == nil {
		return false, errors.New("mock adapter not bound")
	}
	return sink.DeliverFrame(f), nil
}

// Post sends an asynchronous lifecycle message through the bound sink.
func (m *MockAdapter) Post(msg Message) error {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()

	if sink == nil {
		return errors.New("mock adapter not bound")
	}
	sink.PostMessage(msg)
	return nil
}
