package input

import "kvmhost/internal/keys"

// Windows virtual key codes used by the mapper and the key state tracker.
const (
	VKCancel    = 0x03
	VKBack      = 0x08
	VKTab       = 0x09
	VKClear     = 0x0c
	VKReturn    = 0x0d
	VKShift     = 0x10
	VKControl   = 0x11
	VKMenu      = 0x12
	VKPause     = 0x13
	VKCapital   = 0x14
	VKEscape    = 0x1b
	VKSpace     = 0x20
	VKPrior     = 0x21
	VKNext      = 0x22
	VKEnd       = 0x23
	VKHome      = 0x24
	VKLeft      = 0x25
	VKUp        = 0x26
	VKRight     = 0x27
	VKDown      = 0x28
	VKSelect    = 0x29
	VKExecute   = 0x2b
	VKSnapshot  = 0x2c
	VKInsert    = 0x2d
	VKDelete    = 0x2e
	VKHelp      = 0x2f
	VKLWin      = 0x5b
	VKRWin      = 0x5c
	VKApps      = 0x5d
	VKNumpad0   = 0x60
	VKMultiply  = 0x6a
	VKAdd       = 0x6b
	VKSeparator = 0x6c
	VKSubtract  = 0x6d
	VKDecimal   = 0x6e
	VKDivide    = 0x6f
	VKF1        = 0x70
	VKF24       = 0x87
	VKNumLock   = 0x90
	VKScroll    = 0x91
	VKLShift    = 0xa0
	VKRShift    = 0xa1
	VKLControl  = 0xa2
	VKRControl  = 0xa3
	VKLMenu     = 0xa4
	VKRMenu     = 0xa5
)

// virtualKeyTable maps virtual key codes whose meaning does not depend on
// the keyboard layout. Letters, digits and OEM keys are left as KeyNone and
// resolved through the layout instead.
var virtualKeyTable = [256]keys.KeyID{
	VKCancel:   keys.KeyBreak,
	VKBack:     keys.KeyBackSpace,
	VKTab:      keys.KeyTab,
	VKClear:    keys.KeyClear,
	VKReturn:   keys.KeyReturn,
	VKShift:    keys.KeyShiftL,
	VKControl:  keys.KeyControlL,
	VKMenu:     keys.KeyAltL,
	VKPause:    keys.KeyPause,
	VKCapital:  keys.KeyCapsLock,
	VKEscape:   keys.KeyEscape,
	VKSpace:    ' ',
	VKPrior:    keys.KeyPageUp,
	VKNext:     keys.KeyPageDown,
	VKEnd:      keys.KeyEnd,
	VKHome:     keys.KeyHome,
	VKLeft:     keys.KeyLeft,
	VKUp:       keys.KeyUp,
	VKRight:    keys.KeyRight,
	VKDown:     keys.KeyDown,
	VKSelect:   keys.KeySelect,
	VKExecute:  keys.KeyExecute,
	VKSnapshot: keys.KeyPrint,
	VKInsert:   keys.KeyInsert,
	VKDelete:   keys.KeyDelete,
	VKHelp:     keys.KeyHelp,
	VKLWin:     keys.KeyMetaL,
	VKRWin:     keys.KeyMetaR,
	VKApps:     keys.KeyMenu,

	VKNumpad0 + 0: keys.KeyKP0 + 0,
	VKNumpad0 + 1: keys.KeyKP0 + 1,
	VKNumpad0 + 2: keys.KeyKP0 + 2,
	VKNumpad0 + 3: keys.KeyKP0 + 3,
	VKNumpad0 + 4: keys.KeyKP0 + 4,
	VKNumpad0 + 5: keys.KeyKP0 + 5,
	VKNumpad0 + 6: keys.KeyKP0 + 6,
	VKNumpad0 + 7: keys.KeyKP0 + 7,
	VKNumpad0 + 8: keys.KeyKP0 + 8,
	VKNumpad0 + 9: keys.KeyKP0 + 9,
	VKMultiply:    keys.KeyKPMultiply,
	VKAdd:         keys.KeyKPAdd,
	VKSeparator:   keys.KeyKPSeparator,
	VKSubtract:    keys.KeyKPSubtract,
	VKDecimal:     keys.KeyKPDecimal,
	VKDivide:      keys.KeyKPDivide,

	VKF1 + 0:  keys.KeyF1 + 0,
	VKF1 + 1:  keys.KeyF1 + 1,
	VKF1 + 2:  keys.KeyF1 + 2,
	VKF1 + 3:  keys.KeyF1 + 3,
	VKF1 + 4:  keys.KeyF1 + 4,
	VKF1 + 5:  keys.KeyF1 + 5,
	VKF1 + 6:  keys.KeyF1 + 6,
	VKF1 + 7:  keys.KeyF1 + 7,
	VKF1 + 8:  keys.KeyF1 + 8,
	VKF1 + 9:  keys.KeyF1 + 9,
	VKF1 + 10: keys.KeyF1 + 10,
	VKF1 + 11: keys.KeyF1 + 11,
	VKF1 + 12: keys.KeyF1 + 12,
	VKF1 + 13: keys.KeyF1 + 13,
	VKF1 + 14: keys.KeyF1 + 14,
	VKF1 + 15: keys.KeyF1 + 15,
	VKF1 + 16: keys.KeyF1 + 16,
	VKF1 + 17: keys.KeyF1 + 17,
	VKF1 + 18: keys.KeyF1 + 18,
	VKF1 + 19: keys.KeyF1 + 19,
	VKF1 + 20: keys.KeyF1 + 20,
	VKF1 + 21: keys.KeyF1 + 21,
	VKF1 + 22: keys.KeyF1 + 22,
	VKF1 + 23: keys.KeyF1 + 23,

	VKNumLock: keys.KeyNumLock,
	VKScroll:  keys.KeyScrollLock,

	VKLShift:   keys.KeyShiftL,
	VKRShift:   keys.KeyShiftR,
	VKLControl: keys.KeyControlL,
	VKRControl: keys.KeyControlR,
	VKLMenu:    keys.KeyAltL,
	VKRMenu:    keys.KeyAltR,
}

// LookupVirtualKey returns the canonical key for a virtual key code, or
// KeyNone if the code is unassigned or layout dependent.
func LookupVirtualKey(code uint32) keys.KeyID {
	if code > 0xff {
		return keys.KeyNone
	}
	return virtualKeyTable[code]
}
