package input

import (
	"testing"

	"kvmhost/internal/keys"
)

// expectedVirtualKeys lists every assigned entry of the translation table.
var expectedVirtualKeys = map[uint32]keys.KeyID{
	0x03: 0xff6b, // cancel -> Break
	0x08: 0xff08, // back
	0x09: 0xff09, // tab
	0x0c: 0xff0b, // clear
	0x0d: 0xff0d, // return
	0x10: 0xffe1, // shift -> Shift_L
	0x11: 0xffe3, // control -> Control_L
	0x12: 0xffe9, // menu -> Alt_L
	0x13: 0xff13, // pause
	0x14: 0xffe5, // capital -> Caps_Lock
	0x1b: 0xff1b, // escape
	0x20: 0x0020, // space
	0x21: 0xff55, // prior
	0x22: 0xff56, // next
	0x23: 0xff57, // end
	0x24: 0xff50, // home
	0x25: 0xff51, // left
	0x26: 0xff52, // up
	0x27: 0xff53, // right
	0x28: 0xff54, // down
	0x29: 0xff60, // select
	0x2b: 0xff62, // execute
	0x2c: 0xff61, // snapshot -> Print
	0x2d: 0xff63, // insert
	0x2e: 0xffff, // delete
	0x2f: 0xff6a, // help
	0x5b: 0xffe7, // lwin -> Meta_L
	0x5c: 0xffe8, // rwin -> Meta_R
	0x5d: 0xff67, // apps -> Menu
	0x60: 0xffb0,
	0x61: 0xffb1,
	0x62: 0xffb2,
	0x63: 0xffb3,
	0x64: 0xffb4,
	0x65: 0xffb5,
	0x66: 0xffb6,
	0x67: 0xffb7,
	0x68: 0xffb8,
	0x69: 0xffb9,
	0x6a: 0xffaa, // multiply
	0x6b: 0xffab, // add
	0x6c: 0xffac, // separator
	0x6d: 0xffad, // subtract
	0x6e: 0xffae, // decimal
	0x6f: 0xffaf, // divide
	0x70: 0xffbe, // F1
	0x71: 0xffbf,
	0x72: 0xffc0,
	0x73: 0xffc1,
	0x74: 0xffc2,
	0x75: 0xffc3,
	0x76: 0xffc4,
	0x77: 0xffc5,
	0x78: 0xffc6,
	0x79: 0xffc7,
	0x7a: 0xffc8,
	0x7b: 0xffc9, // F12
	0x7c: 0xffca,
	0x7d: 0xffcb,
	0x7e: 0xffcc,
	0x7f: 0xffcd,
	0x80: 0xffce,
	0x81: 0xffcf,
	0x82: 0xffd0,
	0x83: 0xffd1,
	0x84: 0xffd2,
	0x85: 0xffd3,
	0x86: 0xffd4,
	0x87: 0xffd5, // F24
	0x90: 0xff7f, // numlock
	0x91: 0xff14, // scroll
	0xa0: 0xffe1, // lshift
	0xa1: 0xffe2, // rshift
	0xa2: 0xffe3, // lcontrol
	0xa3: 0xffe4, // rcontrol
	0xa4: 0xffe9, // lmenu
	0xa5: 0xffea, // rmenu
}

func TestLookupVirtualKeyTable(t *testing.T) {
	for code := uint32(0); code < 256; code++ {
		want, ok := expectedVirtualKeys[code]
		if !ok {
			want = keys.KeyNone
		}
		if got := LookupVirtualKey(code); got != want {
			t.Errorf("LookupVirtualKey(0x%02x) = 0x%04x, want 0x%04x", code, uint32(got), uint32(want))
		}
	}
}

func TestLookupVirtualKeyOutOfRange(t *testing.T) {
	if got := LookupVirtualKey(0x100); got != keys.KeyNone {
		t.Errorf("Expected KeyNone for out of range code, got 0x%x", uint32(got))
	}
}
