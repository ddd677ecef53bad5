package primary

import (
	"context"
	"sync"

	"kvmhost/internal/input"
)

// message is either a hook event or a closure to run in queue order.
type message struct {
	ev input.Event
	fn func()
}

// Queue is the unbounded FIFO between hook callbacks and the dispatch loop.
// Posting never blocks, so the dispatch loop may post to its own queue.
type Queue struct {
	mu     sync.Mutex
	items  []message
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Post appends a hook event.
func (q *Queue) Post(ev input.Event) {
	q.put(message{ev: ev})
}

func (q *Queue) put(m message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// tryGet removes the oldest message without blocking.
func (q *Queue) tryGet() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return message{}, false
	}
	m := q.items[0]
	q.items[0] = message{}
	q.items = q.items[1:]
	return m, true
}

// get blocks until a message is available or ctx is done.
func (q *Queue) get(ctx context.Context) (message, error) {
	for {
		if m, ok := q.tryGet(); ok {
			return m, nil
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return message{}, ctx.Err()
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drop discards all pending messages.
func (q *Queue) drop() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	return n
}
