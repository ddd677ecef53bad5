// Package clipboard copies text between the local clipboards and the
// capture engine.
package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"

	"kvmhost/internal/keys"
)

var (
	// ErrUnavailable is returned when no clipboard utility is present.
	ErrUnavailable = errors.New("clipboard unavailable")
	// ErrNoSelection is returned for the selection on systems without one.
	ErrNoSelection = errors.New("selection clipboard not supported")
)

// backend is the subset of github.com/atotto/clipboard the Text copier uses.
type backend struct {
	read        func() (string, error)
	write       func(string) error
	unsupported func() bool
	// primary switches reads and writes to the X11 PRIMARY selection. It is
	// nil where the platform has no selection.
	primary *bool
}

var system = backend{
	read:        clipboard.ReadAll,
	write:       clipboard.WriteAll,
	unsupported: func() bool { return clipboard.Unsupported },
	primary:     primarySelection,
}

// Text reads and writes plain text.
type Text struct {
	mu sync.Mutex
	b  backend
}

// NewText returns a copier backed by the system clipboard.
func NewText() *Text {
	return &Text{b: system}
}

func (t *Text) ReadText(id keys.ClipboardID) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	restore, err := t.use(id)
	if err != nil {
		return "", err
	}
	defer restore()

	text, err := t.b.read()
	if err != nil {
		return "", fmt.Errorf("failed to read %v: %w", id, err)
	}
	return text, nil
}

func (t *Text) WriteText(id keys.ClipboardID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	restore, err := t.use(id)
	if err != nil {
		return err
	}
	defer restore()

	if err := t.b.write(text); err != nil {
		return fmt.Errorf("failed to write %v: %w", id, err)
	}
	return nil
}

// use points the backend at the clipboard named by id and returns a func
// that points it back.
func (t *Text) use(id keys.ClipboardID) (func(), error) {
	if t.b.unsupported() {
		return nil, ErrUnavailable
	}
	if t.b.primary == nil {
		if id == keys.Selection {
			return nil, ErrNoSelection
		}
		return func() {}, nil
	}

	prev := *t.b.primary
	*t.b.primary = id == keys.Selection
	return func() { *t.b.primary = prev }, nil
}
