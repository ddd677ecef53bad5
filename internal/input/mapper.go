package input

import "kvmhost/internal/keys"

// MapVirtualKey translation types.
const (
	MapVKToVSC   = 0
	MapVSCToVK   = 1
	MapVKToChar  = 2
	MapVSCToVKEx = 3
)

// deadKeyFlag is set in the MapVKToChar result of a dead key.
const deadKeyFlag = 0x8000

// Layout is the keyboard layout conversion capability of the OS.
type Layout interface {
	StateReader

	// MapVirtualKey translates between scan codes, virtual keys and
	// characters. It returns 0 when there is no translation.
	MapVirtualKey(code, mapType uint32) uint32

	// ToASCII resolves a key and modifier state to a character. n is 0 for
	// no character, 1 for one character, 2 when a stored dead key could not
	// be composed with this key and is returned as well, and negative when
	// the key is itself a dead key now pending in the layout.
	ToASCII(vk, scan uint32, state *KeyState) (ascii uint16, n int)

	// VkKeyScan returns the virtual key in the low byte and the shift state
	// (0x0100 shift, 0x0200 control, 0x0400 alt) in the high byte.
	VkKeyScan(ch byte) uint16
}

// Mapper converts Windows hook key messages into canonical keys while
// tracking modifier state.
type Mapper struct {
	layout Layout
	state  KeyState
}

// NewMapper creates a mapper over the given layout.
func NewMapper(layout Layout) *Mapper {
	return &Mapper{layout: layout}
}

// Sync reseeds the modifier state from the OS.
func (m *Mapper) Sync() {
	m.state.Snapshot(m.layout)
}

// Update applies a key edge to the modifier state.
func (m *Mapper) Update(vk uint32, pressed bool) {
	m.state.Update(vk, pressed)
}

// State returns a copy of the tracked key state.
func (m *Mapper) State() KeyState {
	return m.state
}

// MapKey resolves a virtual key and its keystroke flags to a canonical key
// and the current modifier mask. It returns KeyNone for keys with no
// canonical equivalent and KeyMultiKey for dead keys.
func (m *Mapper) MapKey(vk, info uint32) (keys.KeyID, keys.ModifierMask) {
	mask := m.state.Mask()
	ev := Event{Code: vk, Info: info}
	scan := ev.ScanCode()

	// MapVirtualKey distinguishes left and right shift but mangles keypad
	// keys (KB Q72583) and the Windows/Apps keys, so those keep their code.
	vk2 := m.layout.MapVirtualKey(scan, MapVSCToVKEx)
	switch {
	case vk >= VKNumpad0 && vk <= VKDivide:
		vk2 = vk
	case vk >= VKLWin && vk <= VKApps:
		vk2 = vk
	}

	// Right control and alt only differ from the left keys by the
	// extended flag.
	if ev.Extended() {
		switch vk2 {
		case VKLControl:
			vk2 = VKRControl
		case VKLMenu:
			vk2 = VKRMenu
		}
	}
	vk = vk2

	if id := LookupVirtualKey(vk); id != keys.KeyNone {
		return id, mask
	}

	if m.layout.MapVirtualKey(vk, MapVKToChar) >= deadKeyFlag {
		return keys.KeyMultiKey, mask
	}

	// ToASCII turns ctrl+letter into control codes, so resolve without
	// the control keys.
	lControl, rControl, control := m.state[VKLControl], m.state[VKRControl], m.state[VKControl]
	m.state[VKLControl], m.state[VKRControl], m.state[VKControl] = 0, 0, 0
	ascii, n := m.layout.ToASCII(vk, scan, &m.state)
	m.state[VKLControl], m.state[VKRControl], m.state[VKControl] = lControl, rControl, control

	switch {
	case n < 0:
		// the dead key is now stored in the layout; resolve again to
		// discard it so it doesn't combine with the next keystroke
		m.layout.ToASCII(vk, scan, &m.state)
		return keys.KeyMultiKey, mask

	case n == 1:
		return keys.KeyID(ascii & 0x00ff), mask

	case n == 2:
		m.flushDeadKey(byte(ascii & 0x00ff))
		return keys.KeyMultiKey, mask
	}

	return keys.KeyNone, mask
}

// flushDeadKey replays the keystroke that produces ch with the shift state
// it needs so the layout drops the uncomposed dead key.
func (m *Mapper) flushDeadKey(ch byte) {
	scanned := m.layout.VkKeyScan(ch)

	var state KeyState
	if scanned&0x0100 != 0 {
		state[VKShift] = KeyDownBit
	}
	if scanned&0x0200 != 0 {
		state[VKControl] = KeyDownBit
	}
	if scanned&0x0400 != 0 {
		state[VKMenu] = KeyDownBit
	}

	vk := uint32(scanned & 0x00ff)
	scan := m.layout.MapVirtualKey(vk, MapVKToVSC)
	m.layout.ToASCII(vk, scan, &state)
}

// MapButton converts a mouse button message into a canonical button.
func MapButton(code uint32) keys.ButtonID {
	switch code {
	case WMLButtonDown, WMLButtonUp:
		return keys.ButtonLeft
	case WMMButtonDown, WMMButtonUp:
		return keys.ButtonMiddle
	case WMRButtonDown, WMRButtonUp:
		return keys.ButtonRight
	default:
		return keys.ButtonNone
	}
}
