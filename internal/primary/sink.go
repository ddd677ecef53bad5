package primary

import "kvmhost/internal/keys"

// Sink receives the canonical event stream of the primary screen. All
// callbacks run on the dispatch goroutine, so a Sink may call the screen's
// transition methods directly.
type Sink interface {
	OnKeyDown(id keys.KeyID, mask keys.ModifierMask)
	OnKeyUp(id keys.KeyID, mask keys.ModifierMask)
	OnKeyRepeat(id keys.KeyID, mask keys.ModifierMask, count uint16)
	OnMouseDown(button keys.ButtonID)
	OnMouseUp(button keys.ButtonID)

	// OnMouseMovePrimary reports an absolute position while the primary
	// has local control. Only positions inside the jump zone are reported.
	OnMouseMovePrimary(x, y int32)

	// OnMouseMoveSecondary reports relative motion while a secondary has
	// control.
	OnMouseMoveSecondary(dx, dy int32)

	// GrabClipboard asks the peers to take ownership of a clipboard. It
	// returns an error wrapping ErrBadPeer when no session is ready.
	GrabClipboard(id keys.ClipboardID) error

	// ActivePrimarySides returns the screen edges that lead to a secondary.
	ActivePrimarySides() keys.Sides
}
