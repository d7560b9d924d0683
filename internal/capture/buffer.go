package capture

import (
	"sync"

	"github.com/google/uuid"
)

// FrameBuffer owns the RGB pixels of one capture session. The session
// writes converted frames into it on the engine tick; consumers hold
// references through Retain/Release.
//
// A buffer starts with one reference owned by the session. When the
// session stops it retires the buffer and drops that reference: no write
// succeeds afterwards, and the pixel storage is freed once the last
// consumer reference is released.
type FrameBuffer struct {
	id     uuid.UUID
	width  int
	height int

	mu      sync.RWMutex
	data    []byte
	refs    int
	retired bool
	frames  uint64
}

// NewFrameBuffer allocates a width*height RGB buffer with a fresh handle ID.
func NewFrameBuffer(width, height int) *FrameBuffer {
	return &FrameBuffer{
		id:     uuid.New(),
		width:  width,
		height: height,
		data:   make([]byte, width*height*BytesPerPixel),
		refs:   1,
	}
}

// ID returns the handle identity. Every buffer gets a new one.
func (b *FrameBuffer) ID() uuid.UUID {
	return b.id
}

// Width returns the portrait width in pixels.
func (b *FrameBuffer) Width() int {
	return b.width
}

// Height returns the portrait height in pixels.
func (b *FrameBuffer) Height() int {
	return b.height
}

// Len returns the size of the "rgb" stream in bytes.
func (b *FrameBuffer) Len() int {
	return b.width * b.height * BytesPerPixel
}

// Frames returns how many frames have been written into the buffer.
func (b *FrameBuffer) Frames() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frames
}

// write runs fn with exclusive access to the pixel storage.
func (b *FrameBuffer) write(fn func(dst []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retired || b.data == nil {
		return ErrBufferReleased
	}
	if err := fn(b.data); err != nil {
		return err
	}
	b.frames++
	return nil
}

// Read runs fn with shared access to the pixels. fn must not keep data.
// It returns false when the storage has already been freed.
func (b *FrameBuffer) Read(fn func(data []byte)) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.data == nil {
		return false
	}
	fn(b.data)
	return true
}

// Snapshot returns a copy of the current pixels, or nil once freed.
func (b *FrameBuffer) Snapshot() []byte {
	var out []byte
	b.Read(func(data []byte) {
		out = make([]byte, len(data))
		copy(out, data)
	})
	return out
}

// Retain adds a consumer reference.
func (b *FrameBuffer) Retain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs++
}

// Release drops a reference. The storage is freed when the buffer is
// retired and no references remain.
func (b *FrameBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refs == 0 {
		return
	}
	b.refs--
	if b.refs == 0 {
		b.data = nil
	}
}

// Retired reports whether the owning session has stopped.
func (b *FrameBuffer) Retired() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.retired
}

// Released reports whether the pixel storage has been freed.
func (b *FrameBuffer) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data == nil
}

// retire forbids further writes and drops the session's reference.
func (b *FrameBuffer) retire() {
	b.mu.Lock()
	if b.retired {
		b.mu.Unlock()
		return
	}
	b.retired = true
	b.mu.Unlock()

	b.Release()
}
