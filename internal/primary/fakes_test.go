package primary

import (
	"bytes"
	"fmt"
	"log"
	"testing"

	"kvmhost/internal/input"
	"kvmhost/internal/keys"
)

const testSurface Handle = 0x100

type fakePlatform struct {
	calls []string

	width, height int32
	owner         Handle
	foreground    Handle

	createErr error
	chainErr  error
	loadErr   error
	takeErr   error

	// warpEcho makes WarpCursor report the new position through the hook
	// like a real pointer warp does.
	warpEcho bool

	surfacePost PostFunc
	hook        *fakeHook
	keyboard    *fakeKeyboard
}

func newFakePlatform() *fakePlatform {
	p := &fakePlatform{
		width:      1920,
		height:     1080,
		owner:      0x200,
		foreground: 0x300,
		keyboard:   newFakeKeyboard(),
	}
	p.hook = &fakeHook{p: p}
	return p
}

func (p *fakePlatform) record(format string, v ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, v...))
}

func (p *fakePlatform) CreateSurface(post PostFunc) (Handle, error) {
	p.record("CreateSurface")
	if p.createErr != nil {
		return 0, p.createErr
	}
	p.surfacePost = post
	return testSurface, nil
}

func (p *fakePlatform) DestroySurface() { p.record("DestroySurface") }

func (p *fakePlatform) JoinClipboardChain() error {
	p.record("JoinClipboardChain")
	return p.chainErr
}

func (p *fakePlatform) LeaveClipboardChain() { p.record("LeaveClipboardChain") }

func (p *fakePlatform) ClipboardOwner() Handle { return p.owner }

func (p *fakePlatform) TakeClipboard(id keys.ClipboardID) error {
	p.record("TakeClipboard %v", id)
	if p.takeErr != nil {
		return p.takeErr
	}
	p.owner = testSurface
	return nil
}

func (p *fakePlatform) ForegroundWindow() Handle { return p.foreground }

func (p *fakePlatform) SetForeground(h Handle) {
	p.record("SetForeground %#x", uintptr(h))
	p.foreground = h
}

func (p *fakePlatform) ShowSurface()    { p.record("ShowSurface") }
func (p *fakePlatform) HideSurface()    { p.record("HideSurface") }
func (p *fakePlatform) SetCapture()     { p.record("SetCapture") }
func (p *fakePlatform) ReleaseCapture() { p.record("ReleaseCapture") }

func (p *fakePlatform) ScreenSize() (int32, int32) { return p.width, p.height }

func (p *fakePlatform) WarpCursor(x, y int32) {
	p.record("WarpCursor %d,%d", x, y)
	if p.warpEcho && p.hook.post != nil {
		p.hook.post(input.Event{Kind: input.EventMotion, X: x, Y: y})
	}
}

func (p *fakePlatform) LoadHook() (Hook, error) {
	p.record("LoadHook")
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return p.hook, nil
}

func (p *fakePlatform) Keyboard() Keyboard { return p.keyboard }

// warps returns the recorded WarpCursor calls.
func (p *fakePlatform) warps() []string {
	var out []string
	for _, c := range p.calls {
		if len(c) > 10 && c[:10] == "WarpCursor" {
			out = append(out, c)
		}
	}
	return out
}

type fakeHook struct {
	p          *fakePlatform
	installErr error
	post       PostFunc
	zone       Zone
	relay      bool
}

func (h *fakeHook) Install(surface Handle, post PostFunc) error {
	h.p.record("Install %#x", uintptr(surface))
	if h.installErr != nil {
		return h.installErr
	}
	h.post = post
	return nil
}

func (h *fakeHook) Uninstall() {
	h.p.record("Uninstall")
	h.post = nil
}

func (h *fakeHook) SetZone(z Zone) {
	h.p.record("SetZone")
	h.zone = z
	h.relay = false
}

func (h *fakeHook) SetRelay() {
	h.p.record("SetRelay")
	h.relay = true
}

func (h *fakeHook) Unload() { h.p.record("Unload") }

type keyUpdate struct {
	code    uint32
	pressed bool
}

type fakeKeyboard struct {
	ids     map[uint32]keys.KeyID
	down    map[uint32]bool
	updates []keyUpdate
	syncs   int
}

func newFakeKeyboard() *fakeKeyboard {
	return &fakeKeyboard{
		ids: map[uint32]keys.KeyID{
			input.VKLShift: keys.KeyShiftL,
			input.VKReturn: keys.KeyReturn,
			0x41:           'a',
		},
		down: map[uint32]bool{},
	}
}

func (k *fakeKeyboard) Sync() { k.syncs++ }

func (k *fakeKeyboard) MapKey(code, info uint32) (keys.KeyID, keys.ModifierMask) {
	var mask keys.ModifierMask
	if k.down[input.VKLShift] {
		mask |= keys.ModShift
	}
	return k.ids[code], mask
}

func (k *fakeKeyboard) Update(code uint32, pressed bool) {
	k.updates = append(k.updates, keyUpdate{code, pressed})
	k.down[code] = pressed
}

func (k *fakeKeyboard) MapButton(code uint32) keys.ButtonID {
	return input.MapButton(code)
}

type fakeSink struct {
	events  []string
	sides   keys.Sides
	grabs   []keys.ClipboardID
	grabErr error

	// onPrimary runs after a primary motion is recorded.
	onPrimary func(x, y int32)
}

func (f *fakeSink) record(format string, v ...any) {
	f.events = append(f.events, fmt.Sprintf(format, v...))
}

func (f *fakeSink) OnKeyDown(id keys.KeyID, mask keys.ModifierMask) {
	f.record("down %s [%v]", id.Name(), mask)
}

func (f *fakeSink) OnKeyUp(id keys.KeyID, mask keys.ModifierMask) {
	f.record("up %s [%v]", id.Name(), mask)
}

func (f *fakeSink) OnKeyRepeat(id keys.KeyID, mask keys.ModifierMask, count uint16) {
	f.record("repeat %s [%v] %d", id.Name(), mask, count)
}

func (f *fakeSink) OnMouseDown(b keys.ButtonID) { f.record("press %v", b) }
func (f *fakeSink) OnMouseUp(b keys.ButtonID)   { f.record("release %v", b) }

func (f *fakeSink) OnMouseMovePrimary(x, y int32) {
	f.record("primary %d,%d", x, y)
	if f.onPrimary != nil {
		f.onPrimary(x, y)
	}
}

func (f *fakeSink) OnMouseMoveSecondary(dx, dy int32) {
	f.record("secondary %d,%d", dx, dy)
}

func (f *fakeSink) GrabClipboard(id keys.ClipboardID) error {
	f.grabs = append(f.grabs, id)
	return f.grabErr
}

func (f *fakeSink) ActivePrimarySides() keys.Sides { return f.sides }

type fakeCopier struct {
	p    *fakePlatform
	data map[keys.ClipboardID]string

	// async leaves the owner unchanged on write, like a helper process
	// that takes ownership after WriteText returns.
	async bool
}

func (c *fakeCopier) ReadText(id keys.ClipboardID) (string, error) {
	return c.data[id], nil
}

func (c *fakeCopier) WriteText(id keys.ClipboardID, text string) error {
	c.data[id] = text
	if !c.async {
		c.p.owner = 0x999
	}
	return nil
}

// openScreen opens a screen on fresh fakes and processes the fences queued
// by Open.
func openScreen(t *testing.T) (*Screen, *fakePlatform, *fakeSink, *bytes.Buffer) {
	t.Helper()

	p := newFakePlatform()
	sink := &fakeSink{sides: keys.RightSide}
	buf := &bytes.Buffer{}
	s := New(p, Options{
		Logger: log.New(buf, "", 0),
		Debug:  true,
		Copier: &fakeCopier{p: p, data: map[keys.ClipboardID]string{}},
	})

	if err := s.Open(sink); err != nil {
		t.Fatalf("Failed to open screen: %v", err)
	}
	s.drain()
	p.calls = nil
	return s, p, sink, buf
}

func keyEvent(code uint32, repeat uint16, released bool) input.Event {
	return input.Event{Kind: input.EventKey, Code: code, Info: input.KeyInfo(repeat, 0, false, released)}
}
