package primary

import (
	"sync/atomic"

	"kvmhost/internal/input"
)

// Sequencer issues mark fences. Next posts the fence through the same queue
// as hook events, so every event queued before it is seen while the received
// mark still lags the issued one.
type Sequencer struct {
	issued   atomic.Uint32
	received uint32 // dispatch goroutine only
	post     PostFunc
}

// NewSequencer creates a sequencer that posts fences with post.
func NewSequencer(post PostFunc) *Sequencer {
	return &Sequencer{post: post}
}

// Next issues a new mark and queues its fence.
func (s *Sequencer) Next() uint32 {
	v := s.issued.Add(1)
	s.post(input.Event{Kind: input.EventMark, Code: v, Mark: v})
	return v
}

// Current returns the last issued mark. Hooks stamp events with it.
func (s *Sequencer) Current() uint32 {
	return s.issued.Load()
}

// Receive records a fence taken off the queue.
func (s *Sequencer) Receive(v uint32) {
	s.received = v
}

// IsCurrent reports whether v equals the last received mark.
func (s *Sequencer) IsCurrent(v uint32) bool {
	return v == s.received
}

// Settled reports whether every issued fence has been received.
func (s *Sequencer) Settled() bool {
	return s.received == s.issued.Load()
}

// Valid reports whether an event stamped with v may be applied.
func (s *Sequencer) Valid(v uint32) bool {
	return s.Settled() && s.IsCurrent(v)
}
