package input

import "testing"

func TestRepeatsCount(t *testing.T) {
	var r Repeats

	tests := []struct {
		code     uint32
		released bool
		want     uint16
	}{
		{0x41, false, 1},
		{0x41, false, 2},
		{0x41, false, 3},
		{0x42, false, 1}, // other keys count on their own
		{0x41, true, 0},
		{0x41, false, 1},
		{0x42, false, 2},
	}

	for i, tt := range tests {
		if tt.released {
			r.Release(tt.code)
			continue
		}
		if got := r.Press(tt.code); got != tt.want {
			t.Errorf("step %d: Expected count %d for %#x, got %d", i, tt.want, tt.code, got)
		}
	}
}

func TestRepeatsReset(t *testing.T) {
	var r Repeats
	r.Reset()

	r.Press(0x10)
	r.Press(0x10)
	r.Reset()

	if got := r.Press(0x10); got != 1 {
		t.Errorf("Expected count 1 after reset, got %d", got)
	}
}
