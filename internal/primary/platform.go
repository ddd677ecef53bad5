package primary

import (
	"kvmhost/internal/input"
	"kvmhost/internal/keys"
)

// Handle is an opaque OS window handle.
type Handle uintptr

// PostFunc appends a message to the screen's event queue. It never blocks
// and is safe to call from any goroutine or OS callback.
type PostFunc func(ev input.Event)

// Platform is the OS capability surface used by the screen. Implementations
// are not required to be safe for concurrent use; the screen only calls
// them from the goroutine that owns it.
type Platform interface {
	// CreateSurface creates the hidden relay surface. post receives
	// EventClipboard messages when the clipboard owner changes.
	CreateSurface(post PostFunc) (Handle, error)
	DestroySurface()

	// JoinClipboardChain registers the surface for clipboard change
	// notifications. Notifications are forwarded to the next listener
	// before they are posted.
	JoinClipboardChain() error
	LeaveClipboardChain()
	ClipboardOwner() Handle
	TakeClipboard(id keys.ClipboardID) error

	ForegroundWindow() Handle
	SetForeground(h Handle)
	ShowSurface()
	HideSurface()
	SetCapture()
	ReleaseCapture()

	ScreenSize() (width, height int32)
	WarpCursor(x, y int32)

	// LoadHook loads the input hook module.
	LoadHook() (Hook, error)

	// Keyboard returns the key mapper for this platform.
	Keyboard() Keyboard
}

// Hook is a loaded input hook.
type Hook interface {
	// Install starts delivering input to post. Posted messages are stamped
	// with the current mark by the screen.
	Install(surface Handle, post PostFunc) error
	Uninstall()

	// SetZone passes input through to the OS and reports pointer motion
	// only inside the zone.
	SetZone(z Zone)

	// SetRelay swallows all input and reports every key, button and
	// motion event.
	SetRelay()

	Unload()
}

// Keyboard maps native key and button codes to canonical identifiers and
// tracks the modifier state.
type Keyboard interface {
	Sync()
	MapKey(code, info uint32) (keys.KeyID, keys.ModifierMask)
	Update(code uint32, pressed bool)
	MapButton(code uint32) keys.ButtonID
}

// Copier moves clipboard text between the OS and the screen.
type Copier interface {
	ReadText(id keys.ClipboardID) (string, error)
	WriteText(id keys.ClipboardID, text string) error
}
