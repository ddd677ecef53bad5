package input

// Repeats counts the presses a held key has produced. Low-level hooks see
// every auto-repeat as a fresh press; the count they report is 1 for the
// initial press and grows by one for each repeat until the key is released.
// The zero value is ready to use.
type Repeats struct {
	held map[uint32]uint16
}

// Press records a press of code and returns its repeat count.
func (r *Repeats) Press(code uint32) uint16 {
	if r.held == nil {
		r.held = make(map[uint32]uint16)
	}
	n := r.held[code]
	if n < 0xffff {
		n++
	}
	r.held[code] = n
	return n
}

// Release forgets code.
func (r *Repeats) Release(code uint32) {
	delete(r.held, code)
}

// Reset forgets every held key.
func (r *Repeats) Reset() {
	clear(r.held)
}
