package capture

import (
	"sync"
	"sync/atomic"
)

// Channel hands raw frames from the platform capture thread to the engine
// tick through a single staging slot.
//
// The producer copies a frame into the slot only while the ready flag is
// clear, then sets it. While the flag is set every new frame is dropped:
// the capture thread never waits for the tick. The consumer reads the slot
// once it observes the flag and clears it when done, which hands the slot
// back to the producer. The atomic flag orders the slot writes before the
// consumer's reads; the mutex only serializes producers against each other
// and against Reset/Close.
type Channel struct {
	ready atomic.Bool
	open  atomic.Bool

	mu     sync.Mutex
	format Format
	frame  RawFrame
	pixels []uint32
	data   []byte

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// ChannelStats counts producer deliveries.
type ChannelStats struct {
	Delivered uint64
	Dropped   uint64
}

// NewChannel returns a closed channel. Reset opens it.
func NewChannel() *Channel {
	return &Channel{}
}

// Reset clears the slot, sizes the staging storage for f and opens the
// channel for deliveries. Counters restart at zero.
func (c *Channel) Reset(f Format) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.format = f
	switch f.Encoding {
	case EncodingPackedARGB:
		c.pixels = make([]uint32, 0, f.RawLen())
		c.data = nil
	case EncodingYUV420SP:
		c.data = make([]byte, 0, f.RawLen())
		c.pixels = nil
	}
	c.frame = RawFrame{}
	c.delivered.Store(0)
	c.dropped.Store(0)
	c.ready.Store(false)
	c.open.Store(true)
}

// Close stops accepting frames. It waits for an in-flight Offer to finish
// so no delivery is still copying when Close returns.
func (c *Channel) Close() {
	c.open.Store(false)

	c.mu.Lock()
	c.ready.Store(false)
	c.frame = RawFrame{}
	c.mu.Unlock()
}

// Open reports whether the channel accepts deliveries.
func (c *Channel) Open() bool {
	return c.open.Load()
}

// Ready reports whether a frame is waiting for the consumer.
func (c *Channel) Ready() bool {
	return c.ready.Load()
}

// Offer copies f into the slot if the slot is free and the channel is
// open. It never blocks on the consumer and reports whether the frame was
// taken. The caller keeps ownership of f's storage.
func (c *Channel) Offer(f RawFrame) bool {
	if !c.open.Load() {
		return false
	}
	if c.ready.Load() {
		c.dropped.Add(1)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open.Load() {
		return false
	}
	if c.ready.Load() {
		c.dropped.Add(1)
		return false
	}

	staged := RawFrame{Encoding: f.Encoding, Width: f.Width, Height: f.Height}
	switch f.Encoding {
	case EncodingPackedARGB:
		c.pixels = append(c.pixels[:0], f.Pixels...)
		staged.Pixels = c.pixels
	default:
		c.data = append(c.data[:0], f.Data...)
		staged.Data = c.data
	}
	c.frame = staged

	c.delivered.Add(1)
	c.ready.Store(true)
	return true
}

// Consume runs fn on the staged frame if one is ready, then frees the
// slot. fn must not keep references to the frame's storage. The boolean
// reports whether a frame was consumed; the error is fn's.
func (c *Channel) Consume(fn func(RawFrame) error) (bool, error) {
	if !c.ready.Load() {
		return false, nil
	}

	err := fn(c.frame)
	c.ready.Store(false)
	return true, err
}

// Stats returns the delivery counters since the last Reset.
func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
	}
}
