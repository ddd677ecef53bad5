// Package keys defines the platform-independent key, button and modifier
// identifiers shared by every screen.
package keys

import (
	"fmt"
	"strings"
)

// KeyID identifies a key. Values follow the X11 keysym numbering so that
// printable Latin-1 keys are their own character code.
type KeyID uint32

// KeyNone means the key has no canonical equivalent.
const KeyNone KeyID = 0

// Non-printable keys.
const (
	KeyBackSpace  KeyID = 0xff08
	KeyTab        KeyID = 0xff09
	KeyClear      KeyID = 0xff0b
	KeyReturn     KeyID = 0xff0d
	KeyPause      KeyID = 0xff13
	KeyScrollLock KeyID = 0xff14
	KeyEscape     KeyID = 0xff1b
	KeyMultiKey   KeyID = 0xff20 // compose
	KeyHome       KeyID = 0xff50
	KeyLeft       KeyID = 0xff51
	KeyUp         KeyID = 0xff52
	KeyRight      KeyID = 0xff53
	KeyDown       KeyID = 0xff54
	KeyPageUp     KeyID = 0xff55
	KeyPageDown   KeyID = 0xff56
	KeyEnd        KeyID = 0xff57
	KeySelect     KeyID = 0xff60
	KeyPrint      KeyID = 0xff61
	KeyExecute    KeyID = 0xff62
	KeyInsert     KeyID = 0xff63
	KeyMenu       KeyID = 0xff67
	KeyHelp       KeyID = 0xff6a
	KeyBreak      KeyID = 0xff6b
	KeyNumLock    KeyID = 0xff7f

	KeyKPMultiply  KeyID = 0xffaa
	KeyKPAdd       KeyID = 0xffab
	KeyKPSeparator KeyID = 0xffac
	KeyKPSubtract  KeyID = 0xffad
	KeyKPDecimal   KeyID = 0xffae
	KeyKPDivide    KeyID = 0xffaf
	KeyKP0         KeyID = 0xffb0
	KeyKP9         KeyID = 0xffb9

	KeyF1  KeyID = 0xffbe
	KeyF12 KeyID = 0xffc9
	KeyF24 KeyID = 0xffd5

	KeyShiftL   KeyID = 0xffe1
	KeyShiftR   KeyID = 0xffe2
	KeyControlL KeyID = 0xffe3
	KeyControlR KeyID = 0xffe4
	KeyCapsLock KeyID = 0xffe5
	KeyMetaL    KeyID = 0xffe7
	KeyMetaR    KeyID = 0xffe8
	KeyAltL     KeyID = 0xffe9
	KeyAltR     KeyID = 0xffea
	KeySuperL   KeyID = 0xffeb
	KeySuperR   KeyID = 0xffec
	KeyDelete   KeyID = 0xffff
)

var keyNames = map[KeyID]string{
	KeyBackSpace:   "BACKSPACE",
	KeyTab:         "TAB",
	KeyClear:       "CLEAR",
	KeyReturn:      "RETURN",
	KeyPause:       "PAUSE",
	KeyScrollLock:  "SCROLLLOCK",
	KeyEscape:      "ESC",
	KeyMultiKey:    "COMPOSE",
	KeyHome:        "HOME",
	KeyLeft:        "LEFT",
	KeyUp:          "UP",
	KeyRight:       "RIGHT",
	KeyDown:        "DOWN",
	KeyPageUp:      "PAGEUP",
	KeyPageDown:    "PAGEDOWN",
	KeyEnd:         "END",
	KeySelect:      "SELECT",
	KeyPrint:       "PRINT",
	KeyExecute:     "EXECUTE",
	KeyInsert:      "INSERT",
	KeyMenu:        "MENU",
	KeyHelp:        "HELP",
	KeyBreak:       "BREAK",
	KeyNumLock:     "NUMLOCK",
	KeyKPMultiply:  "KP_MULTIPLY",
	KeyKPAdd:       "KP_ADD",
	KeyKPSeparator: "KP_SEPARATOR",
	KeyKPSubtract:  "KP_SUBTRACT",
	KeyKPDecimal:   "KP_DECIMAL",
	KeyKPDivide:    "KP_DIVIDE",
	KeyShiftL:      "SHIFT",
	KeyShiftR:      "SHIFT",
	KeyControlL:    "CTRL",
	KeyControlR:    "CTRL",
	KeyCapsLock:    "CAPSLOCK",
	KeyMetaL:       "META",
	KeyMetaR:       "META",
	KeyAltL:        "ALT",
	KeyAltR:        "ALT",
	KeySuperL:      "META",
	KeySuperR:      "META",
	KeyDelete:      "DELETE",
}

// Name returns an upper-case name for the key. Left and right variants of a
// modifier share a name so hotkey strings like "Ctrl+Alt+Esc" match either.
func (k KeyID) Name() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	switch {
	case k >= KeyKP0 && k <= KeyKP9:
		return fmt.Sprintf("KP_%d", k-KeyKP0)
	case k >= KeyF1 && k <= KeyF24:
		return fmt.Sprintf("F%d", k-KeyF1+1)
	case k == ' ':
		return "SPACE"
	case k > ' ' && k < 0x7f:
		return strings.ToUpper(string(rune(k)))
	case k == KeyNone:
		return "NONE"
	}
	return fmt.Sprintf("0x%04X", uint32(k))
}

// ModifierMask is a set of modifier keys and lock states.
type ModifierMask uint16

const (
	ModShift ModifierMask = 1 << iota
	ModControl
	ModAlt
	ModMeta
	ModCapsLock
	ModNumLock
	ModScrollLock
)

// Has returns true if m contains every bit of mod.
func (m ModifierMask) Has(mod ModifierMask) bool {
	return m&mod == mod
}

// String returns a representation like "Shift+Control".
func (m ModifierMask) String() string {
	if m == 0 {
		return ""
	}
	names := []struct {
		mod  ModifierMask
		name string
	}{
		{ModShift, "Shift"},
		{ModControl, "Control"},
		{ModAlt, "Alt"},
		{ModMeta, "Meta"},
		{ModCapsLock, "CapsLock"},
		{ModNumLock, "NumLock"},
		{ModScrollLock, "ScrollLock"},
	}
	var parts []string
	for _, n := range names {
		if m&n.mod != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// ButtonID identifies a mouse button.
type ButtonID uint8

const (
	ButtonNone ButtonID = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

func (b ButtonID) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return "none"
	}
}

// ClipboardID identifies one of the shared clipboards.
type ClipboardID uint8

const (
	Clipboard ClipboardID = iota
	Selection
)

func (c ClipboardID) String() string {
	if c == Selection {
		return "selection"
	}
	return "clipboard"
}

// Direction tells whether a key event is a press or a release.
type Direction uint8

const (
	Down Direction = iota
	Up
)

// KeyEvent is a canonical key event.
type KeyEvent struct {
	ID        KeyID
	Mask      ModifierMask
	Count     uint16
	Direction Direction
}

// Sides is a set of screen edges.
type Sides uint8

const (
	LeftSide Sides = 1 << iota
	RightSide
	TopSide
	BottomSide
)

// ParseSide converts "left", "right", "top" or "bottom" into a Sides bit.
func ParseSide(s string) (Sides, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return LeftSide, nil
	case "right":
		return RightSide, nil
	case "top":
		return TopSide, nil
	case "bottom":
		return BottomSide, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// Opposite returns the edge facing s. Only meaningful for a single side.
func (s Sides) Opposite() Sides {
	switch s {
	case LeftSide:
		return RightSide
	case RightSide:
		return LeftSide
	case TopSide:
		return BottomSide
	case BottomSide:
		return TopSide
	}
	return 0
}

func (s Sides) String() string {
	var parts []string
	for _, n := range []struct {
		side Sides
		name string
	}{{LeftSide, "left"}, {RightSide, "right"}, {TopSide, "top"}, {BottomSide, "bottom"}} {
		if s&n.side != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
