package primary

import "errors"

var (
	// ErrBadPeer is returned by a Sink when the secondary is not ready to
	// take part in a clipboard exchange. The screen ignores it.
	ErrBadPeer = errors.New("peer not ready")

	// ErrUnsupported is returned by platforms without input capture support
	// and by clipboard operations when no Copier is configured.
	ErrUnsupported = errors.New("not supported on this platform")

	// ErrHookUnavailable is returned when the input hook cannot be loaded.
	ErrHookUnavailable = errors.New("input hook unavailable")

	// ErrClosed is returned when operating on a screen that is not open.
	ErrClosed = errors.New("screen is closed")

	// ErrAlreadyOpen is returned by Open on a screen that is already open.
	ErrAlreadyOpen = errors.New("screen is already open")
)
