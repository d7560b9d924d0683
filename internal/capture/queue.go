package capture

import "sync"

// DefaultQueueCapacity is the initial number of message slots.
const DefaultQueueCapacity = 4

// MessageQueue is a mutex-protected FIFO of lifecycle events. It never
// drops or overwrites: when full it grows by one slot.
type MessageQueue struct {
	mu    sync.Mutex
	items []Event
}

// NewMessageQueue returns an empty queue with room for capacity events.
func NewMessageQueue(capacity int) *MessageQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &MessageQueue{
		items: make([]Event, 0, capacity),
	}
}

// Enqueue appends e. Safe to call from any goroutine.
func (q *MessageQueue) Enqueue(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == cap(q.items) {
		grown := make([]Event, len(q.items), cap(q.items)+1)
		copy(grown, q.items)
		q.items = grown
	}
	q.items = append(q.items, e)
}

// Drain removes every queued event in one step and passes them to fn in
// enqueue order. Events enqueued while fn runs, including by fn itself,
// stay queued for the next Drain. It returns the number of events
// dispatched; a nil fn discards them.
func (q *MessageQueue) Drain(fn func(Event)) int {
	q.mu.Lock()
	batch := q.items
	if len(batch) == 0 {
		q.mu.Unlock()
		return 0
	}
	q.items = make([]Event, 0, cap(batch))
	q.mu.Unlock()

	if fn != nil {
		for _, e := range batch {
			fn(e)
		}
	}
	return len(batch)
}

// Len returns the number of queued events.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}


