// Package tray shows the host's focus state in the system tray and offers
// a small menu.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// entry is one menu line. A nil entry is a separator.
type entry struct {
	title    string
	checkbox bool
	checked  bool
	onClick  func()
	item     *systray.MenuItem
}

// Tray owns the tray icon. Menu entries are added before Run; the status
// line and checkmarks can change at any time.
type Tray struct {
	tooltip string

	mu      sync.Mutex
	entries []*entry
	status  *systray.MenuItem

	ready chan struct{}
	quit  chan struct{}
}

// New creates a tray whose icon shows tooltip until the first status.
func New(tooltip string) *Tray {
	return &Tray{
		tooltip: tooltip,
		ready:   make(chan struct{}),
		quit:    make(chan struct{}),
	}
}

// AddMenuItem appends a clickable entry and returns its id.
func (t *Tray) AddMenuItem(title string, onClick func()) int {
	return t.add(&entry{title: title, onClick: onClick})
}

// AddCheckbox appends an entry showing a checkmark when checked.
func (t *Tray) AddCheckbox(title string, checked bool, onClick func()) int {
	return t.add(&entry{title: title, checkbox: true, checked: checked, onClick: onClick})
}

// AddSeparator appends a divider line.
func (t *Tray) AddSeparator() {
	t.add(nil)
}

func (t *Tray) add(e *entry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	return len(t.entries) - 1
}

// SetItemChecked updates the checkmark of a checkbox entry.
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 0 || id >= len(t.entries) || t.entries[id] == nil || !t.entries[id].checkbox {
		return
	}
	e := t.entries[id]
	e.checked = checked
	if e.item != nil {
		applyCheck(e)
	}
}

func applyCheck(e *entry) {
	if e.checked {
		e.item.Check()
	} else {
		e.item.Uncheck()
	}
}

// Run shows the icon and blocks until Stop is called.
func (t *Tray) Run() {
	systray.Run(t.build, func() { close(t.quit) })
}

func (t *Tray) build() {
	systray.SetTitle("kvmhost")
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(icon())

	t.mu.Lock()
	t.status = systray.AddMenuItem("Starting", "Screen holding input focus")
	t.status.Disable()
	systray.AddSeparator()

	for _, e := range t.entries {
		if e == nil {
			systray.AddSeparator()
			continue
		}
		e.item = systray.AddMenuItem(e.title, "")
		if e.checkbox {
			applyCheck(e)
		}
		if e.onClick != nil {
			go t.listen(e.item, e.onClick)
		}
	}
	t.mu.Unlock()

	close(t.ready)
}

func (t *Tray) listen(item *systray.MenuItem, onClick func()) {
	for {
		select {
		case <-item.ClickedCh:
			onClick()
		case <-t.quit:
			return
		}
	}
}

// SetStatus shows which screen holds input focus. Calls made before the
// icon is up are dropped.
func (t *Tray) SetStatus(text string) {
	select {
	case <-t.ready:
	default:
		return
	}
	t.status.SetTitle(text)
	systray.SetTooltip("kvmhost: " + text)
}

// Quit returns a channel closed once the tray has exited.
func (t *Tray) Quit() <-chan struct{} {
	return t.quit
}

// Stop removes the icon and makes Run return.
func (t *Tray) Stop() {
	systray.Quit()
}

// icon builds a 16x16 32-bit ICO: a light key outline on a transparent
// background.
func icon() []byte {
	const (
		size       = 16
		headerSize = 6 + 16
		dibSize    = 40
		pixelBytes = size * size * 4
		maskBytes  = size * 4 // 1 bit per pixel, rows padded to 32 bits
		imageBytes = dibSize + pixelBytes + maskBytes
	)

	b := make([]byte, headerSize+imageBytes)
	put16 := func(off int, v uint16) { b[off], b[off+1] = byte(v), byte(v>>8) }
	put32 := func(off int, v uint32) {
		put16(off, uint16(v))
		put16(off+2, uint16(v>>16))
	}

	// ICONDIR and its single entry
	put16(2, 1)
	put16(4, 1)
	b[6], b[7] = size, size
	put16(10, 1)
	put16(12, 32)
	put32(14, imageBytes)
	put32(18, headerSize)

	// BITMAPINFOHEADER, height doubled for the mask
	dib := headerSize
	put32(dib, dibSize)
	put32(dib+4, size)
	put32(dib+8, size*2)
	put16(dib+12, 1)
	put16(dib+14, 32)
	put32(dib+20, pixelBytes)

	// BGRA rows, bottom-up
	pixels := dib + dibSize
	for y := 2; y < size-2; y++ {
		for x := 1; x < size-1; x++ {
			edge := y == 2 || y == size-3 || x == 1 || x == size-2
			if !edge {
				continue
			}
			off := pixels + (y*size+x)*4
			b[off], b[off+1], b[off+2], b[off+3] = 0xe0, 0xe0, 0xe0, 0xff
		}
	}
	return b
}
