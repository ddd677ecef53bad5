package primary

import (
	"errors"
	"fmt"

	"kvmhost/internal/keys"
)

// onClipboardChanged handles the surface's owner change notification. The
// surface has already passed the notification on to the next listener.
func (s *Screen) onClipboardChanged() {
	if s.Mode() == ModeClosed {
		return
	}
	s.debugf("clipboard owner changed")
	s.checkClipboardOwner()
}

// reconcileClipboard catches owner changes whose notification never
// arrived.
func (s *Screen) reconcileClipboard() {
	s.checkClipboardOwner()
}

// checkClipboardOwner asks the peers to grab both clipboards when a program
// other than the relay surface took ownership since the last check.
func (s *Screen) checkClipboardOwner() {
	owner := s.platform.ClipboardOwner()
	if owner == s.clipboardOwner {
		return
	}
	s.clipboardOwner = owner
	if owner == s.surface {
		return
	}
	if s.isEcho() {
		s.debugf("clipboard owner changed to our own write")
		return
	}
	clear(s.written)

	for _, id := range []keys.ClipboardID{keys.Clipboard, keys.Selection} {
		if err := s.sink.GrabClipboard(id); err != nil {
			if errors.Is(err, ErrBadPeer) {
				s.debugf("clipboard grab skipped: %v", err)
			} else {
				s.log.Printf("Primary Screen: clipboard grab failed: %v", err)
			}
			return
		}
	}
}

// SetClipboard replaces the contents of a local clipboard with text sent by
// a secondary.
func (s *Screen) SetClipboard(id keys.ClipboardID, text string) error {
	if s.opts.Copier == nil {
		return ErrUnsupported
	}
	if err := s.opts.Copier.WriteText(id, text); err != nil {
		return fmt.Errorf("failed to set %v: %w", id, err)
	}

	// the write changes the owner, possibly later from a helper process;
	// don't report it back as a grab
	s.written[id] = text
	if s.Mode() != ModeClosed {
		s.clipboardOwner = s.platform.ClipboardOwner()
	}
	return nil
}

// isEcho reports whether every clipboard still holds the text last written
// by SetClipboard.
func (s *Screen) isEcho() bool {
	if len(s.written) == 0 {
		return false
	}
	for id, text := range s.written {
		current, err := s.Clipboard(id)
		if err != nil || current != text {
			return false
		}
	}
	return true
}

// Clipboard returns the text of a local clipboard.
func (s *Screen) Clipboard(id keys.ClipboardID) (string, error) {
	if s.opts.Copier == nil {
		return "", ErrUnsupported
	}
	text, err := s.opts.Copier.ReadText(id)
	if err != nil {
		return "", fmt.Errorf("failed to read %v: %w", id, err)
	}
	return text, nil
}

// GrabClipboard makes the relay surface the owner of a local clipboard so
// that local programs see the secondary's data as current.
func (s *Screen) GrabClipboard(id keys.ClipboardID) error {
	if s.Mode() == ModeClosed {
		return ErrClosed
	}
	if err := s.platform.TakeClipboard(id); err != nil {
		return fmt.Errorf("failed to grab %v: %w", id, err)
	}
	s.clipboardOwner = s.platform.ClipboardOwner()
	return nil
}
