package input

import "kvmhost/internal/keys"

// Key state bits, matching what GetKeyState reports.
const (
	KeyDownBit   = 0x80
	KeyToggleBit = 0x01
)

// StateReader reads the live state of a single virtual key from the OS.
type StateReader interface {
	KeyState(vk uint32) uint8
}

// snapshotKeys are the only keys whose state is read at startup.
var snapshotKeys = []uint32{
	VKLShift, VKRShift, VKShift,
	VKLControl, VKRControl, VKControl,
	VKLMenu, VKRMenu, VKMenu,
	VKLWin, VKRWin, VKApps,
	VKCapital, VKNumLock, VKScroll,
}

// KeyState tracks modifier key state indexed by virtual key code. The
// generic VKShift, VKControl and VKMenu entries are logical: their down bit
// is set iff one of the left/right keys is down.
type KeyState [256]uint8

// Snapshot clears the state and seeds the modifier entries from the OS.
func (s *KeyState) Snapshot(r StateReader) {
	*s = KeyState{}
	for _, vk := range snapshotKeys {
		s[vk] = r.KeyState(vk)
	}
}

// Update applies a key edge.
func (s *KeyState) Update(vk uint32, pressed bool) {
	if vk > 0xff {
		return
	}
	if pressed {
		s.press(vk)
	} else {
		s.release(vk)
	}
}

func (s *KeyState) press(vk uint32) {
	switch vk {
	case VKLShift, VKRShift, VKShift:
		s[vk] |= KeyDownBit
		s[VKShift] |= KeyDownBit
	case VKLControl, VKRControl, VKControl:
		s[vk] |= KeyDownBit
		s[VKControl] |= KeyDownBit
	case VKLMenu, VKRMenu, VKMenu:
		s[vk] |= KeyDownBit
		s[VKMenu] |= KeyDownBit
	case VKLWin, VKRWin, VKApps:
		s[vk] |= KeyDownBit
	case VKCapital, VKNumLock, VKScroll:
		// auto-repeat presses arrive while the key is already down
		if s[vk]&KeyDownBit == 0 {
			s[vk] ^= KeyToggleBit
		}
		s[vk] |= KeyDownBit
	}
}

func (s *KeyState) release(vk uint32) {
	switch vk {
	case VKLShift, VKRShift, VKShift:
		s[vk] &^= KeyDownBit
		if (s[VKLShift]|s[VKRShift])&KeyDownBit == 0 {
			s[VKShift] &^= KeyDownBit
		}
	case VKLControl, VKRControl, VKControl:
		s[vk] &^= KeyDownBit
		if (s[VKLControl]|s[VKRControl])&KeyDownBit == 0 {
			s[VKControl] &^= KeyDownBit
		}
	case VKLMenu, VKRMenu, VKMenu:
		s[vk] &^= KeyDownBit
		if (s[VKLMenu]|s[VKRMenu])&KeyDownBit == 0 {
			s[VKMenu] &^= KeyDownBit
		}
	case VKLWin, VKRWin, VKApps, VKCapital, VKNumLock, VKScroll:
		s[vk] &^= KeyDownBit
	}
}

// Down reports whether the down bit of vk is set.
func (s *KeyState) Down(vk uint32) bool {
	return vk <= 0xff && s[vk]&KeyDownBit != 0
}

// Toggled reports whether the toggle bit of vk is set.
func (s *KeyState) Toggled(vk uint32) bool {
	return vk <= 0xff && s[vk]&KeyToggleBit != 0
}

// Mask derives the canonical modifier mask.
func (s *KeyState) Mask() keys.ModifierMask {
	var mask keys.ModifierMask
	if (s[VKLShift]|s[VKRShift]|s[VKShift])&KeyDownBit != 0 {
		mask |= keys.ModShift
	}
	if (s[VKLControl]|s[VKRControl]|s[VKControl])&KeyDownBit != 0 {
		mask |= keys.ModControl
	}
	if (s[VKLMenu]|s[VKRMenu]|s[VKMenu])&KeyDownBit != 0 {
		mask |= keys.ModAlt
	}
	if (s[VKLWin]|s[VKRWin])&KeyDownBit != 0 {
		mask |= keys.ModMeta
	}
	return mask | s.ToggleMask()
}

// ToggleMask returns only the lock bits of the modifier mask.
func (s *KeyState) ToggleMask() keys.ModifierMask {
	var mask keys.ModifierMask
	if s[VKCapital]&KeyToggleBit != 0 {
		mask |= keys.ModCapsLock
	}
	if s[VKNumLock]&KeyToggleBit != 0 {
		mask |= keys.ModNumLock
	}
	if s[VKScroll]&KeyToggleBit != 0 {
		mask |= keys.ModScrollLock
	}
	return mask
}
