package input

import (
	"testing"

	"kvmhost/internal/keys"
)

type asciiResult struct {
	ascii uint16
	n     int
}

type asciiCall struct {
	vk, scan uint32
	state    KeyState
}

// fakeLayout is a scripted keyboard layout. Scan codes map to themselves
// unless listed in scanToVK.
type fakeLayout struct {
	live     liveKeys
	scanToVK map[uint32]uint32
	vkToScan map[uint32]uint32
	chars    map[uint32]byte
	dead     map[uint32]bool
	scripted []asciiResult
	vkScan   map[byte]uint16
	calls    []asciiCall
}

func newFakeLayout() *fakeLayout {
	return &fakeLayout{
		live:     liveKeys{},
		scanToVK: map[uint32]uint32{},
		vkToScan: map[uint32]uint32{},
		chars:    map[uint32]byte{},
		dead:     map[uint32]bool{},
		vkScan:   map[byte]uint16{},
	}
}

func (f *fakeLayout) KeyState(vk uint32) uint8 {
	return f.live[vk]
}

func (f *fakeLayout) MapVirtualKey(code, mapType uint32) uint32 {
	switch mapType {
	case MapVSCToVKEx:
		if vk, ok := f.scanToVK[code]; ok {
			return vk
		}
		return code
	case MapVKToVSC:
		return f.vkToScan[code]
	case MapVKToChar:
		if f.dead[code] {
			return 0x80000000 | uint32(f.chars[code])
		}
		return uint32(f.chars[code])
	}
	return 0
}

func (f *fakeLayout) ToASCII(vk, scan uint32, state *KeyState) (uint16, int) {
	f.calls = append(f.calls, asciiCall{vk: vk, scan: scan, state: *state})
	if len(f.scripted) > 0 {
		r := f.scripted[0]
		f.scripted = f.scripted[1:]
		return r.ascii, r.n
	}
	ch, ok := f.chars[vk]
	if !ok {
		return 0, 0
	}
	if state.Down(VKShift) && ch >= 'a' && ch <= 'z' {
		ch -= 'a' - 'A'
	}
	return uint16(ch), 1
}

func (f *fakeLayout) VkKeyScan(ch byte) uint16 {
	return f.vkScan[ch]
}

func keyDown(scan uint8) uint32 {
	return KeyInfo(1, scan, false, false)
}

func TestMapKeyMatchesTableForAllCodes(t *testing.T) {
	states := []func(m *Mapper){
		func(m *Mapper) {},
		func(m *Mapper) { m.Update(VKLShift, true) },
		func(m *Mapper) { m.Update(VKCapital, true); m.Update(VKCapital, false) },
		func(m *Mapper) { m.Update(VKRControl, true); m.Update(VKLMenu, true) },
	}

	for i, setup := range states {
		m := NewMapper(newFakeLayout())
		setup(m)

		for code := uint32(0); code < 256; code++ {
			want, ok := expectedVirtualKeys[code]
			if !ok {
				want = keys.KeyNone
			}
			got, _ := m.MapKey(code, keyDown(uint8(code)))
			if got != want {
				t.Errorf("state %d: MapKey(0x%02x) = 0x%04x, want 0x%04x", i, code, uint32(got), uint32(want))
			}
		}
	}
}

func TestMapKeyLeftRight(t *testing.T) {
	layout := newFakeLayout()
	layout.scanToVK[0x2a] = VKLShift
	layout.scanToVK[0x36] = VKRShift
	layout.scanToVK[0x1d] = VKLControl
	layout.scanToVK[0x38] = VKLMenu
	m := NewMapper(layout)

	tests := []struct {
		name string
		vk   uint32
		info uint32
		want keys.KeyID
	}{
		{"left shift", VKShift, keyDown(0x2a), keys.KeyShiftL},
		{"right shift", VKShift, keyDown(0x36), keys.KeyShiftR},
		{"left control", VKControl, keyDown(0x1d), keys.KeyControlL},
		{"right control", VKControl, KeyInfo(1, 0x1d, true, false), keys.KeyControlR},
		{"left alt", VKMenu, keyDown(0x38), keys.KeyAltL},
		{"right alt", VKMenu, KeyInfo(1, 0x38, true, false), keys.KeyAltR},
		{"extended shift stays", VKShift, KeyInfo(1, 0x2a, true, false), keys.KeyShiftL},
	}

	for _, tt := range tests {
		if got, _ := m.MapKey(tt.vk, tt.info); got != tt.want {
			t.Errorf("%s: got 0x%04x, want 0x%04x", tt.name, uint32(got), uint32(tt.want))
		}
	}
}

func TestMapKeyBypassesBrokenConversion(t *testing.T) {
	layout := newFakeLayout()
	// keypad 5 and the Windows key come back as something unrelated
	layout.scanToVK[0x4c] = VKClear
	layout.scanToVK[0x5b] = 0xff
	m := NewMapper(layout)

	if got, _ := m.MapKey(VKNumpad0+5, keyDown(0x4c)); got != keys.KeyKP0+5 {
		t.Errorf("Expected KP_5, got 0x%04x", uint32(got))
	}
	if got, _ := m.MapKey(VKLWin, KeyInfo(1, 0x5b, true, false)); got != keys.KeyMetaL {
		t.Errorf("Expected Meta_L, got 0x%04x", uint32(got))
	}
	if got, _ := m.MapKey(VKApps, keyDown(0x5b)); got != keys.KeyMenu {
		t.Errorf("Expected Menu, got 0x%04x", uint32(got))
	}
}

func TestMapKeyCharacter(t *testing.T) {
	layout := newFakeLayout()
	layout.chars[0x41] = 'a'
	m := NewMapper(layout)

	if got, mask := m.MapKey(0x41, keyDown(0x41)); got != 'a' || mask != 0 {
		t.Errorf("Expected 'a' with no mask, got 0x%04x mask %v", uint32(got), mask)
	}

	m.Update(VKLShift, true)
	if got, mask := m.MapKey(0x41, keyDown(0x41)); got != 'A' || mask != keys.ModShift {
		t.Errorf("Expected 'A' with Shift, got 0x%04x mask %v", uint32(got), mask)
	}
}

func TestMapKeyResolvesWithoutControl(t *testing.T) {
	layout := newFakeLayout()
	layout.chars[0x43] = 'c'
	m := NewMapper(layout)
	m.Update(VKLControl, true)
	before := m.State()

	got, mask := m.MapKey(0x43, keyDown(0x43))
	if got != 'c' {
		t.Errorf("Expected 'c', got 0x%04x", uint32(got))
	}
	if !mask.Has(keys.ModControl) {
		t.Errorf("Expected Control in mask, got %v", mask)
	}

	if len(layout.calls) != 1 {
		t.Fatalf("Expected 1 resolution call, got %d", len(layout.calls))
	}
	call := layout.calls[0].state
	if call.Down(VKLControl) || call.Down(VKRControl) || call.Down(VKControl) {
		t.Error("Expected control keys to be cleared during resolution")
	}
	if m.State() != before {
		t.Error("Expected control state to be restored after resolution")
	}
}

func TestMapKeyDeadKeyFlag(t *testing.T) {
	layout := newFakeLayout()
	layout.chars[0xde] = '\''
	layout.dead[0xde] = true
	m := NewMapper(layout)

	if got, _ := m.MapKey(0xde, keyDown(0xde)); got != keys.KeyMultiKey {
		t.Errorf("Expected compose key, got 0x%04x", uint32(got))
	}
	if len(layout.calls) != 0 {
		t.Errorf("Expected no resolution calls for a flagged dead key, got %d", len(layout.calls))
	}
}

func TestMapKeyPendingDeadKeyIsFlushed(t *testing.T) {
	layout := newFakeLayout()
	layout.scanToVK[0x29] = 0xc0
	layout.scripted = []asciiResult{{ascii: '`', n: -1}, {ascii: '`', n: 1}}
	m := NewMapper(layout)

	got, _ := m.MapKey(0xc0, keyDown(0x29))
	if got != keys.KeyMultiKey {
		t.Errorf("Expected compose key, got 0x%04x", uint32(got))
	}
	if len(layout.calls) != 2 {
		t.Fatalf("Expected exactly 2 resolution calls, got %d", len(layout.calls))
	}
	if layout.calls[1].vk != 0xc0 || layout.calls[1].scan != 0x29 {
		t.Errorf("Expected flush with the same key, got vk 0x%x scan 0x%x", layout.calls[1].vk, layout.calls[1].scan)
	}
}

func TestMapKeyUncomposedDeadKeyIsReplayed(t *testing.T) {
	layout := newFakeLayout()
	layout.scripted = []asciiResult{{ascii: '^', n: 2}, {ascii: '^', n: 1}}
	layout.vkScan['^'] = 0x0136 // shift + '6'
	layout.vkToScan[0x36] = 0x07
	layout.scanToVK[0x10] = 0x51
	m := NewMapper(layout)

	got, _ := m.MapKey(0x51, keyDown(0x10))
	if got != keys.KeyMultiKey {
		t.Errorf("Expected compose key rather than the flushed character, got 0x%04x", uint32(got))
	}
	if len(layout.calls) != 2 {
		t.Fatalf("Expected 2 resolution calls, got %d", len(layout.calls))
	}

	replay := layout.calls[1]
	if replay.vk != 0x36 || replay.scan != 0x07 {
		t.Errorf("Expected replay of vk 0x36 scan 0x07, got vk 0x%x scan 0x%x", replay.vk, replay.scan)
	}
	if !replay.state.Down(VKShift) {
		t.Error("Expected replay with shift down")
	}
	if replay.state.Down(VKControl) || replay.state.Down(VKMenu) {
		t.Error("Expected replay without control or alt")
	}
}

func TestMapKeyUnresolvable(t *testing.T) {
	layout := newFakeLayout()
	layout.scanToVK[0x27] = 0xba
	m := NewMapper(layout)
	if got, _ := m.MapKey(0xba, keyDown(0x27)); got != keys.KeyNone {
		t.Errorf("Expected KeyNone, got 0x%04x", uint32(got))
	}
}

func TestMapperSync(t *testing.T) {
	layout := newFakeLayout()
	layout.live[VKNumLock] = KeyToggleBit
	layout.live[VKRMenu] = KeyDownBit
	layout.live[VKMenu] = KeyDownBit
	m := NewMapper(layout)

	m.Sync()
	_, mask := m.MapKey(VKEscape, keyDown(VKEscape))
	if want := keys.ModAlt | keys.ModNumLock; mask != want {
		t.Errorf("Expected mask %v, got %v", want, mask)
	}
}
