// Package input converts raw hook messages into canonical key and button
// identifiers.
package input

// EventKind tells what a queued hook message carries.
type EventKind uint8

const (
	// EventMark advances the received mark to Code.
	EventMark EventKind = iota
	// EventKey is a key press or release. Code is the platform key code,
	// Info the keystroke flags.
	EventKey
	// EventButton is a mouse button press or release. Code is one of the
	// WM*Button* message numbers.
	EventButton
	// EventMotion is an absolute pointer position in X, Y.
	EventMotion
	// EventClipboard reports that the OS clipboard owner changed.
	EventClipboard
)

func (k EventKind) String() string {
	switch k {
	case EventMark:
		return "mark"
	case EventKey:
		return "key"
	case EventButton:
		return "button"
	case EventMotion:
		return "motion"
	case EventClipboard:
		return "clipboard"
	default:
		return "unknown"
	}
}

// Event is the message format shared by every hook variant and the screen
// controller. Hooks stamp Mark with the sequencer value current when the
// message was posted.
type Event struct {
	Kind EventKind
	Code uint32
	Info uint32
	X    int32
	Y    int32
	Mark uint32
}

// Keystroke flag layout of Event.Info for EventKey.
const (
	InfoRepeatMask = 0x0000ffff
	InfoScanMask   = 0x00ff0000
	InfoExtended   = 0x01000000
	InfoReleased   = 0x80000000
)

// KeyInfo builds the keystroke flags for a key event.
func KeyInfo(repeat uint16, scan uint8, extended, released bool) uint32 {
	info := uint32(repeat) | uint32(scan)<<16
	if extended {
		info |= InfoExtended
	}
	if released {
		info |= InfoReleased
	}
	return info
}

// Repeat returns the auto-repeat count of a key event.
func (e Event) Repeat() int {
	return int(e.Info & InfoRepeatMask)
}

// ScanCode returns the hardware scan code of a key event.
func (e Event) ScanCode() uint32 {
	return (e.Info & InfoScanMask) >> 16
}

// Extended reports whether the key is an extended key (right control/alt,
// navigation cluster).
func (e Event) Extended() bool {
	return e.Info&InfoExtended != 0
}

// Released reports whether a key event is a release.
func (e Event) Released() bool {
	return e.Info&InfoReleased != 0
}

// Mouse button message numbers carried in Event.Code for EventButton.
const (
	WMLButtonDown = 0x0201
	WMLButtonUp   = 0x0202
	WMRButtonDown = 0x0204
	WMRButtonUp   = 0x0205
	WMMButtonDown = 0x0207
	WMMButtonUp   = 0x0208
)

// ButtonPressed reports whether a button message code is a press.
func ButtonPressed(code uint32) bool {
	switch code {
	case WMLButtonDown, WMMButtonDown, WMRButtonDown:
		return true
	}
	return false
}
