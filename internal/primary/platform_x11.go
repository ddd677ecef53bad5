//go:build linux

package primary

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"kvmhost/internal/input"
	"kvmhost/internal/keys"
)

const (
	zonePollInterval      = 10 * time.Millisecond
	clipboardPollInterval = 250 * time.Millisecond
)

// x11Platform captures input by grabbing the pointer and keyboard on an
// InputOnly window. X has no clipboard notification chain without XFixes,
// so the CLIPBOARD owner is polled instead.
type x11Platform struct {
	log *log.Logger

	mu       sync.Mutex
	conn     *xgb.Conn
	screen   *xproto.ScreenInfo
	surface  xproto.Window
	clipAtom xproto.Atom
	post     PostFunc
	hook     *x11Hook

	keyboard *x11Keyboard
	stopClip chan struct{}
	clipDone chan struct{}
	wg       sync.WaitGroup // event loop
}

// NewPlatform connects to the X server named by $DISPLAY.
func NewPlatform(logger *log.Logger) (Platform, error) {
	if logger == nil {
		logger = log.Default()
	}
	p := &x11Platform{log: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	p.keyboard = &x11Keyboard{p: p}
	return p, nil
}

func (p *x11Platform) connect() error {
	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	p.conn = conn
	p.screen = xproto.Setup(conn).DefaultScreen(conn)
	return nil
}

func (p *x11Platform) CreateSurface(post PostFunc) (Handle, error) {
	if p.conn == nil {
		if err := p.connect(); err != nil {
			return 0, err
		}
	}
	p.post = post

	wid, err := xproto.NewWindowId(p.conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate window id: %w", err)
	}
	mask := uint32(xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease |
		xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
		xproto.EventMaskPointerMotion)
	err = xproto.CreateWindowChecked(p.conn, 0, wid, p.screen.Root,
		0, 0, p.screen.WidthInPixels, p.screen.HeightInPixels, 0,
		xproto.WindowClassInputOnly, p.screen.RootVisual,
		xproto.CwOverrideRedirect|xproto.CwEventMask, []uint32{1, mask}).Check()
	if err != nil {
		return 0, fmt.Errorf("failed to create relay window: %w", err)
	}
	p.surface = wid

	atom, err := xproto.InternAtom(p.conn, false, uint16(len("CLIPBOARD")), "CLIPBOARD").Reply()
	if err != nil {
		xproto.DestroyWindow(p.conn, wid)
		return 0, fmt.Errorf("failed to intern CLIPBOARD atom: %w", err)
	}
	p.clipAtom = atom.Atom

	p.wg.Add(1)
	go p.eventLoop(p.conn)
	return Handle(wid), nil
}

// eventLoop reads X events until the connection is closed.
func (p *x11Platform) eventLoop(conn *xgb.Conn) {
	defer p.wg.Done()

	for {
		ev, xerr := conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			p.log.Printf("X11 Platform: %v", xerr)
			continue
		}

		p.mu.Lock()
		hook := p.hook
		p.mu.Unlock()
		if hook == nil {
			continue
		}
		hook.handle(ev, func() xgb.Event {
			next, xerr := conn.PollForEvent()
			if xerr != nil {
				p.log.Printf("X11 Platform: %v", xerr)
			}
			return next
		})
	}
}

func (p *x11Platform) DestroySurface() {
	if p.conn == nil {
		return
	}
	xproto.DestroyWindow(p.conn, p.surface)
	p.conn.Close()
	p.wg.Wait()
	p.conn = nil
	p.surface = 0
}

func (p *x11Platform) JoinClipboardChain() error {
	owner := p.ClipboardOwner()
	p.stopClip = make(chan struct{})
	p.clipDone = make(chan struct{})
	go p.watchClipboard(owner, p.stopClip, p.clipDone)
	return nil
}

func (p *x11Platform) watchClipboard(owner Handle, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(clipboardPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if current := p.ClipboardOwner(); current != owner {
				owner = current
				p.post(input.Event{Kind: input.EventClipboard})
			}
		}
	}
}

func (p *x11Platform) LeaveClipboardChain() {
	if p.stopClip != nil {
		close(p.stopClip)
		<-p.clipDone
		p.stopClip = nil
	}
}

func (p *x11Platform) ClipboardOwner() Handle {
	reply, err := xproto.GetSelectionOwner(p.conn, p.clipAtom).Reply()
	if err != nil {
		return 0
	}
	return Handle(reply.Owner)
}

func (p *x11Platform) TakeClipboard(id keys.ClipboardID) error {
	atom := p.clipAtom
	if id == keys.Selection {
		atom = xproto.AtomPrimary
	}
	return xproto.SetSelectionOwnerChecked(p.conn, p.surface, atom, xproto.TimeCurrentTime).Check()
}

func (p *x11Platform) ForegroundWindow() Handle {
	reply, err := xproto.GetInputFocus(p.conn).Reply()
	if err != nil {
		return 0
	}
	return Handle(reply.Focus)
}

func (p *x11Platform) SetForeground(h Handle) {
	if h == 0 {
		return
	}
	xproto.SetInputFocus(p.conn, xproto.InputFocusParent, xproto.Window(h), xproto.TimeCurrentTime)
}

func (p *x11Platform) ShowSurface() {
	xproto.MapWindow(p.conn, p.surface)
}

func (p *x11Platform) HideSurface() {
	xproto.UnmapWindow(p.conn, p.surface)
}

func (p *x11Platform) SetCapture() {
	_, err := xproto.GrabPointer(p.conn, false, p.surface,
		uint16(xproto.EventMaskPointerMotion|xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease),
		xproto.GrabModeAsync, xproto.GrabModeAsync, 0, 0, xproto.TimeCurrentTime).Reply()
	if err != nil {
		p.log.Printf("X11 Platform: pointer grab failed: %v", err)
	}
	_, err = xproto.GrabKeyboard(p.conn, false, p.surface, xproto.TimeCurrentTime,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	if err != nil {
		p.log.Printf("X11 Platform: keyboard grab failed: %v", err)
	}
}

func (p *x11Platform) ReleaseCapture() {
	xproto.UngrabKeyboard(p.conn, xproto.TimeCurrentTime)
	xproto.UngrabPointer(p.conn, xproto.TimeCurrentTime)
}

func (p *x11Platform) ScreenSize() (int32, int32) {
	return int32(p.screen.WidthInPixels), int32(p.screen.HeightInPixels)
}

func (p *x11Platform) WarpCursor(x, y int32) {
	xproto.WarpPointer(p.conn, 0, p.screen.Root, 0, 0, 0, 0, int16(x), int16(y))
}

func (p *x11Platform) LoadHook() (Hook, error) {
	if p.conn == nil {
		return nil, ErrClosed
	}
	return &x11Hook{p: p}, nil
}

func (p *x11Platform) Keyboard() Keyboard {
	return p.keyboard
}

// x11Hook turns grabbed X events into queued events while relaying and
// polls the pointer against the jump zone otherwise.
type x11Hook struct {
	p    *x11Platform
	post PostFunc

	mu    sync.Mutex
	relay bool
	zone  Zone

	repeats      input.Repeats // event loop only
	resetRepeats bool

	stop chan struct{}
	done chan struct{}
}

func (h *x11Hook) Install(surface Handle, post PostFunc) error {
	h.post = post
	h.stop = make(chan struct{})
	h.done = make(chan struct{})

	h.p.mu.Lock()
	h.p.hook = h
	h.p.mu.Unlock()

	go h.pollZone()
	return nil
}

func (h *x11Hook) Uninstall() {
	h.p.mu.Lock()
	if h.p.hook == h {
		h.p.hook = nil
	}
	h.p.mu.Unlock()

	if h.stop != nil {
		close(h.stop)
		<-h.done
		h.stop = nil
	}
}

func (h *x11Hook) SetZone(z Zone) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = false
	h.zone = z
}

func (h *x11Hook) SetRelay() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = true
	h.resetRepeats = true
}

func (h *x11Hook) Unload() {}

func (h *x11Hook) pollZone() {
	defer close(h.done)

	ticker := time.NewTicker(zonePollInterval)
	defer ticker.Stop()

	lastX, lastY := int32(-1), int32(-1)
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		h.mu.Lock()
		relay, zone := h.relay, h.zone
		h.mu.Unlock()
		if relay {
			continue
		}

		reply, err := xproto.QueryPointer(h.p.conn, h.p.screen.Root).Reply()
		if err != nil {
			continue
		}
		x, y := int32(reply.RootX), int32(reply.RootY)
		if x == lastX && y == lastY {
			continue
		}
		lastX, lastY = x, y
		if zone.Hit(x, y) != 0 {
			h.post(input.Event{Kind: input.EventMotion, X: x, Y: y})
		}
	}
}

// handle converts one X event. Key events carry the keycode in Code and
// the X modifier state in the scan code field of Info. peek returns the
// next queued event, or nil when none is waiting.
func (h *x11Hook) handle(ev xgb.Event, peek func() xgb.Event) {
	h.mu.Lock()
	relay := h.relay
	if h.resetRepeats {
		h.repeats.Reset()
		h.resetRepeats = false
	}
	h.mu.Unlock()
	if !relay {
		return
	}

	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		h.postKey(e.Detail, e.State, h.repeats.Press(uint32(e.Detail)), false)
	case xproto.KeyReleaseEvent:
		// auto-repeat arrives as a release and a press with the same time
		next := peek()
		if press, ok := next.(xproto.KeyPressEvent); ok && press.Detail == e.Detail && press.Time == e.Time {
			h.postKey(press.Detail, press.State, h.repeats.Press(uint32(press.Detail)), false)
			return
		}
		h.repeats.Release(uint32(e.Detail))
		h.postKey(e.Detail, e.State, 1, true)
		if next != nil {
			h.handle(next, peek)
		}
	case xproto.ButtonPressEvent:
		if code := x11ButtonCode(byte(e.Detail), true); code != 0 {
			h.post(input.Event{Kind: input.EventButton, Code: code})
		}
	case xproto.ButtonReleaseEvent:
		if code := x11ButtonCode(byte(e.Detail), false); code != 0 {
			h.post(input.Event{Kind: input.EventButton, Code: code})
		}
	case xproto.MotionNotifyEvent:
		h.post(input.Event{Kind: input.EventMotion, X: int32(e.RootX), Y: int32(e.RootY)})
	}
}

func (h *x11Hook) postKey(code xproto.Keycode, state uint16, repeat uint16, released bool) {
	h.post(input.Event{Kind: input.EventKey, Code: uint32(code), Info: input.KeyInfo(repeat, uint8(state), false, released)})
}

// x11ButtonCode maps X buttons 1-3 to mouse button messages. Wheel buttons
// are not forwarded.
func x11ButtonCode(button byte, pressed bool) uint32 {
	switch {
	case button == 1 && pressed:
		return input.WMLButtonDown
	case button == 1:
		return input.WMLButtonUp
	case button == 2 && pressed:
		return input.WMMButtonDown
	case button == 2:
		return input.WMMButtonUp
	case button == 3 && pressed:
		return input.WMRButtonDown
	case button == 3:
		return input.WMRButtonUp
	}
	return 0
}

// X modifier state bits.
const (
	x11ShiftMask   = 1 << 0
	x11LockMask    = 1 << 1
	x11ControlMask = 1 << 2
	x11Mod1Mask    = 1 << 3 // Alt
	x11Mod2Mask    = 1 << 4 // Num Lock
	x11Mod4Mask    = 1 << 6 // Super
)

// x11Keyboard maps keycodes through the server's keysym table.
type x11Keyboard struct {
	p *x11Platform

	mu      sync.Mutex
	min     xproto.Keycode
	perCode int
	syms    []xproto.Keysym
}

// Sync reloads the keysym table.
func (k *x11Keyboard) Sync() {
	setup := xproto.Setup(k.p.conn)
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	reply, err := xproto.GetKeyboardMapping(k.p.conn, setup.MinKeycode, count).Reply()
	if err != nil {
		k.p.log.Printf("X11 Platform: failed to read keyboard mapping: %v", err)
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.min = setup.MinKeycode
	k.perCode = int(reply.KeysymsPerKeycode)
	k.syms = reply.Keysyms
}

func (k *x11Keyboard) MapKey(code, info uint32) (keys.KeyID, keys.ModifierMask) {
	state := input.Event{Info: info}.ScanCode()
	return k.lookup(code, state), x11Mask(state)
}

func (k *x11Keyboard) lookup(code, state uint32) keys.KeyID {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.perCode == 0 || code < uint32(k.min) {
		return keys.KeyNone
	}
	base := int(code-uint32(k.min)) * k.perCode
	if base+k.perCode > len(k.syms) {
		return keys.KeyNone
	}
	row := k.syms[base : base+k.perCode]

	sym := row[0]
	if state&x11ShiftMask != 0 && len(row) > 1 && row[1] != 0 {
		sym = row[1]
	}
	if state&x11LockMask != 0 && sym >= 'a' && sym <= 'z' {
		sym -= 'a' - 'A'
	}

	// dead keys
	if sym >= 0xfe50 && sym <= 0xfe8f {
		return keys.KeyMultiKey
	}
	return keys.KeyID(sym)
}

// Update is a no-op; X reports the modifier state with every event.
func (k *x11Keyboard) Update(code uint32, pressed bool) {}

func (k *x11Keyboard) MapButton(code uint32) keys.ButtonID {
	return input.MapButton(code)
}

func x11Mask(state uint32) keys.ModifierMask {
	var mask keys.ModifierMask
	if state&x11ShiftMask != 0 {
		mask |= keys.ModShift
	}
	if state&x11LockMask != 0 {
		mask |= keys.ModCapsLock
	}
	if state&x11ControlMask != 0 {
		mask |= keys.ModControl
	}
	if state&x11Mod1Mask != 0 {
		mask |= keys.ModAlt
	}
	if state&x11Mod2Mask != 0 {
		mask |= keys.ModNumLock
	}
	if state&x11Mod4Mask != 0 {
		mask |= keys.ModMeta
	}
	return mask
}
