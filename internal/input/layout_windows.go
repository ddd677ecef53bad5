//go:build windows

package input

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32            = windows.NewLazySystemDLL("user32.dll")
	procMapVirtualKey = user32.NewProc("MapVirtualKeyW")
	procToAscii       = user32.NewProc("ToAscii")
	procVkKeyScan     = user32.NewProc("VkKeyScanA")
	procGetKeyState   = user32.NewProc("GetKeyState")
)

// Win32Layout resolves keys through the active Windows keyboard layout.
type Win32Layout struct{}

// NewWin32Layout returns the layout of the calling thread.
func NewWin32Layout() *Win32Layout {
	return &Win32Layout{}
}

// KeyState reads GetKeyState and folds it into the down/toggle bits.
func (l *Win32Layout) KeyState(vk uint32) uint8 {
	r, _, _ := procGetKeyState.Call(uintptr(vk))
	state := uint16(r)

	var out uint8
	if state&0x8000 != 0 {
		out |= KeyDownBit
	}
	if state&0x0001 != 0 {
		out |= KeyToggleBit
	}
	return out
}

func (l *Win32Layout) MapVirtualKey(code, mapType uint32) uint32 {
	r, _, _ := procMapVirtualKey.Call(uintptr(code), uintptr(mapType))
	return uint32(r)
}

func (l *Win32Layout) ToASCII(vk, scan uint32, state *KeyState) (uint16, int) {
	var ascii uint16
	r, _, _ := procToAscii.Call(
		uintptr(vk),
		uintptr(scan),
		uintptr(unsafe.Pointer(&state[0])),
		uintptr(unsafe.Pointer(&ascii)),
		0,
	)
	return ascii, int(int32(r))
}

func (l *Win32Layout) VkKeyScan(ch byte) uint16 {
	r, _, _ := procVkKeyScan.Call(uintptr(ch))
	return uint16(r)
}
