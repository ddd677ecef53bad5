package input

import (
	"testing"

	"kvmhost/internal/keys"
)

type liveKeys map[uint32]uint8

func (l liveKeys) KeyState(vk uint32) uint8 {
	return l[vk]
}

func TestKeyStateSnapshot(t *testing.T) {
	var s KeyState
	s[0x41] = KeyDownBit // stale letter state must be cleared

	s.Snapshot(liveKeys{
		VKLShift:  KeyDownBit,
		VKShift:   KeyDownBit,
		VKCapital: KeyToggleBit,
		0x41:      KeyDownBit, // not a modifier, not read
	})

	if s[0x41] != 0 {
		t.Errorf("Expected non-modifier key to be cleared, got 0x%02x", s[0x41])
	}
	if !s.Down(VKLShift) || !s.Down(VKShift) {
		t.Error("Expected shift to be down after snapshot")
	}
	if want := keys.ModShift | keys.ModCapsLock; s.Mask() != want {
		t.Errorf("Expected mask %v, got %v", want, s.Mask())
	}
}

func TestKeyStateLogicalModifier(t *testing.T) {
	tests := []struct {
		left, right, logical uint32
		mod                  keys.ModifierMask
	}{
		{VKLShift, VKRShift, VKShift, keys.ModShift},
		{VKLControl, VKRControl, VKControl, keys.ModControl},
		{VKLMenu, VKRMenu, VKMenu, keys.ModAlt},
	}

	for _, tt := range tests {
		var s KeyState

		s.Update(tt.left, true)
		s.Update(tt.right, true)
		if !s.Down(tt.logical) {
			t.Errorf("Expected logical key 0x%02x down with both sides down", tt.logical)
		}

		s.Update(tt.left, false)
		if !s.Down(tt.logical) {
			t.Errorf("Expected logical key 0x%02x down while right side is held", tt.logical)
		}
		if !s.Mask().Has(tt.mod) {
			t.Errorf("Expected mask to contain %v", tt.mod)
		}

		s.Update(tt.right, false)
		if s.Down(tt.logical) {
			t.Errorf("Expected logical key 0x%02x up after both sides released", tt.logical)
		}
		if s.Mask().Has(tt.mod) {
			t.Errorf("Expected mask not to contain %v", tt.mod)
		}
	}
}

func TestKeyStateMeta(t *testing.T) {
	var s KeyState
	s.Update(VKRWin, true)
	if !s.Mask().Has(keys.ModMeta) {
		t.Error("Expected Meta in mask while right Windows key is down")
	}
	s.Update(VKRWin, false)
	if s.Mask().Has(keys.ModMeta) {
		t.Error("Expected Meta cleared after release")
	}

	// the apps key is tracked but is not a modifier
	s.Update(VKApps, true)
	if s.Mask() != 0 {
		t.Errorf("Expected empty mask for apps key, got %v", s.Mask())
	}
}

func TestKeyStateToggleCycles(t *testing.T) {
	toggles := []struct {
		vk  uint32
		mod keys.ModifierMask
	}{
		{VKCapital, keys.ModCapsLock},
		{VKNumLock, keys.ModNumLock},
		{VKScroll, keys.ModScrollLock},
	}

	for _, tg := range toggles {
		for _, initial := range []bool{false, true} {
			var s KeyState
			if initial {
				s[tg.vk] = KeyToggleBit
			}

			s.Update(tg.vk, true)
			s.Update(tg.vk, false)
			if s.Toggled(tg.vk) == initial {
				t.Errorf("vk 0x%02x from %v: expected one cycle to flip the toggle", tg.vk, initial)
			}
			if s.ToggleMask().Has(tg.mod) == initial {
				t.Errorf("vk 0x%02x from %v: expected toggle mask to follow", tg.vk, initial)
			}

			s.Update(tg.vk, true)
			s.Update(tg.vk, false)
			if s.Toggled(tg.vk) != initial {
				t.Errorf("vk 0x%02x from %v: expected two cycles to restore the toggle", tg.vk, initial)
			}
			if s.Down(tg.vk) {
				t.Errorf("vk 0x%02x: expected key up after release", tg.vk)
			}
		}
	}
}

func TestKeyStateToggleIgnoresAutoRepeat(t *testing.T) {
	var s KeyState
	s.Update(VKCapital, true)
	s.Update(VKCapital, true)
	s.Update(VKCapital, true)
	s.Update(VKCapital, false)

	if !s.Toggled(VKCapital) {
		t.Error("Expected caps lock toggled once despite repeated presses")
	}
}

func TestKeyStateReleaseNeverToggles(t *testing.T) {
	var s KeyState
	s.Update(VKNumLock, false)
	if s.Toggled(VKNumLock) {
		t.Error("Expected release without press to leave toggle unchanged")
	}
}

func TestKeyStateIgnoresOutOfRange(t *testing.T) {
	var s KeyState
	s.Update(0x1ff, true)
	if s.Down(0x1ff) {
		t.Error("Expected out of range key to be ignored")
	}
	if s != (KeyState{}) {
		t.Error("Expected state to be unchanged")
	}
}
