// Package primary captures the local keyboard and mouse and routes them
// either to the local desktop or to a secondary screen.
package primary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"kvmhost/internal/input"
	"kvmhost/internal/keys"
)

// Mode is the activation state of the primary screen.
type Mode int32

const (
	// ModeClosed means the screen has no surface and no hook.
	ModeClosed Mode = iota
	// ModeLocal means the local desktop receives input and the hook only
	// watches the jump zone.
	ModeLocal
	// ModeRemote means input is captured and relayed to a secondary.
	ModeRemote
)

func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModeLocal:
		return "local"
	case ModeRemote:
		return "remote"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// Options configures a Screen.
type Options struct {
	// Logger receives the screen's log output. Defaults to a logger on
	// stderr.
	Logger *log.Logger

	// LogOutput, when set, replaces the logger's output while Run is
	// active. The previous output is restored when Run returns.
	LogOutput io.Writer

	// Debug enables per-event logging.
	Debug bool

	// JumpZoneSize is the width of the hot edges in pixels.
	JumpZoneSize int32

	// Copier transfers clipboard text. Without it SetClipboard and
	// Clipboard return ErrUnsupported.
	Copier Copier
}

// Screen is the primary screen controller. Apart from Mode, Do and Post
// its methods must be called from the dispatch goroutine: inside Run (from
// a Sink callback or a Do closure) or while Run is not executing.
type Screen struct {
	platform Platform
	opts     Options
	log      *log.Logger

	queue *Queue
	marks *Sequencer
	mode  atomic.Int32

	sink     Sink
	keyboard Keyboard
	hook     Hook
	surface  Handle

	hasSurface bool
	chained    bool
	installed  bool

	width, height    int32
	xCenter, yCenter int32

	lastForeground Handle
	clipboardOwner Handle
	written        map[keys.ClipboardID]string // last text stored by SetClipboard
}

// New creates a closed screen on top of platform.
func New(platform Platform, opts Options) *Screen {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if opts.JumpZoneSize <= 0 {
		opts.JumpZoneSize = DefaultJumpZoneSize
	}

	s := &Screen{
		platform: platform,
		opts:     opts,
		log:      opts.Logger,
		queue:    NewQueue(),
		written:  make(map[keys.ClipboardID]string),
	}
	s.marks = NewSequencer(s.queue.Post)
	return s
}

// Mode returns the current activation state. It is safe to call from any
// goroutine.
func (s *Screen) Mode() Mode {
	return Mode(s.mode.Load())
}

// Size returns the screen dimensions recorded at Open.
func (s *Screen) Size() (width, height int32) {
	return s.width, s.height
}

// Center returns the point the cursor is parked at while remote.
func (s *Screen) Center() (x, y int32) {
	return s.xCenter, s.yCenter
}

// JumpZoneSize returns the width of the hot edges.
func (s *Screen) JumpZoneSize() int32 {
	return s.opts.JumpZoneSize
}

// Open creates the relay surface, joins the clipboard chain and installs
// the input hook, then enters local mode. On failure everything acquired
// so far is released again.
func (s *Screen) Open(sink Sink) (err error) {
	if s.Mode() != ModeClosed {
		return ErrAlreadyOpen
	}
	s.sink = sink

	defer func() {
		if err != nil {
			s.release()
		}
	}()

	surface, err := s.platform.CreateSurface(s.queue.Post)
	if err != nil {
		return fmt.Errorf("failed to create relay surface: %w", err)
	}
	s.surface = surface
	s.hasSurface = true

	if err = s.platform.JoinClipboardChain(); err != nil {
		return fmt.Errorf("failed to join clipboard chain: %w", err)
	}
	s.chained = true

	hook, err := s.platform.LoadHook()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHookUnavailable, err)
	}
	s.hook = hook

	if err = hook.Install(surface, s.postHook); err != nil {
		return fmt.Errorf("failed to install input hook: %w", err)
	}
	s.installed = true

	s.width, s.height = s.platform.ScreenSize()
	s.xCenter, s.yCenter = s.width/2, s.height/2

	s.keyboard = s.platform.Keyboard()
	s.keyboard.Sync()
	s.clipboardOwner = s.platform.ClipboardOwner()

	s.toLocal()
	s.log.Printf("Primary Screen: opened %dx%d, jump zone %dpx", s.width, s.height, s.opts.JumpZoneSize)
	return nil
}

// Close uninstalls the hook and destroys the relay surface. Pending events
// are discarded.
func (s *Screen) Close() {
	if s.Mode() == ModeClosed {
		return
	}
	if s.Mode() == ModeRemote {
		s.platform.ReleaseCapture()
		s.platform.HideSurface()
	}
	s.release()
	n := s.queue.drop()
	s.mode.Store(int32(ModeClosed))
	s.log.Printf("Primary Screen: closed, %d pending events dropped", n)
}

// release frees acquired resources in reverse order of acquisition.
func (s *Screen) release() {
	if s.installed {
		s.hook.Uninstall()
		s.installed = false
	}
	if s.hook != nil {
		s.hook.Unload()
		s.hook = nil
	}
	if s.chained {
		s.platform.LeaveClipboardChain()
		s.chained = false
	}
	if s.hasSurface {
		s.platform.DestroySurface()
		s.hasSurface = false
		s.surface = 0
	}
}

// Run dispatches queued events until ctx is done or the screen is closed.
func (s *Screen) Run(ctx context.Context) error {
	if s.Mode() == ModeClosed {
		return ErrClosed
	}

	if s.opts.LogOutput != nil {
		prev := s.log.Writer()
		s.log.SetOutput(s.opts.LogOutput)
		defer s.log.SetOutput(prev)
	}

	for {
		m, err := s.queue.get(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		s.dispatch(m)
		if s.Mode() == ModeClosed {
			return ErrClosed
		}
	}
}

// Do queues fn to run on the dispatch goroutine after every event posted
// before it. It is safe to call from any goroutine.
func (s *Screen) Do(fn func()) {
	s.queue.put(message{fn: fn})
}

// Post queues a hook event stamped with the current mark. It is safe to
// call from any goroutine.
func (s *Screen) Post(ev input.Event) {
	s.postHook(ev)
}

func (s *Screen) postHook(ev input.Event) {
	ev.Mark = s.marks.Current()
	s.queue.Post(ev)
}

// drain dispatches every queued message without blocking and returns how
// many were processed.
func (s *Screen) drain() int {
	n := 0
	for {
		m, ok := s.queue.tryGet()
		if !ok {
			return n
		}
		s.dispatch(m)
		n++
	}
}

func (s *Screen) dispatch(m message) {
	if m.fn != nil {
		m.fn()
		return
	}
	s.filter(m.ev)
}

// filter consumes one queued event. Mark fences are always applied. Input
// events are applied only when stamped with the current mark and no newer
// fence is still in flight; all others are dropped without side effects.
func (s *Screen) filter(ev input.Event) {
	switch ev.Kind {
	case input.EventMark:
		s.marks.Receive(ev.Code)
		return
	case input.EventClipboard:
		s.onClipboardChanged()
		return
	}

	if s.Mode() == ModeClosed {
		return
	}
	if !s.marks.Valid(ev.Mark) {
		s.debugf("dropped stale %v event (mark %d)", ev.Kind, ev.Mark)
		return
	}

	switch ev.Kind {
	case input.EventKey:
		s.onKey(ev)
	case input.EventButton:
		s.onButton(ev)
	case input.EventMotion:
		s.onMotion(ev.X, ev.Y)
	}
}

func (s *Screen) onKey(ev input.Event) {
	id, mask := s.keyboard.MapKey(ev.Code, ev.Info)
	pressed := !ev.Released()

	if id != keys.KeyNone {
		switch {
		case !pressed:
			s.debugf("key up %s mask %v", id.Name(), mask)
			s.sink.OnKeyUp(id, mask)
		case ev.Repeat() >= 2:
			s.debugf("key repeat %s mask %v count %d", id.Name(), mask, ev.Repeat())
			s.sink.OnKeyRepeat(id, mask, uint16(ev.Repeat()))
		default:
			s.debugf("key down %s mask %v", id.Name(), mask)
			s.sink.OnKeyDown(id, mask)
		}
	}

	s.keyboard.Update(ev.Code, pressed)
}

func (s *Screen) onButton(ev input.Event) {
	button := s.keyboard.MapButton(ev.Code)
	if button == keys.ButtonNone {
		return
	}
	if input.ButtonPressed(ev.Code) {
		s.debugf("button down %v", button)
		s.sink.OnMouseDown(button)
	} else {
		s.debugf("button up %v", button)
		s.sink.OnMouseUp(button)
	}
}

func (s *Screen) onMotion(x, y int32) {
	if s.Mode() != ModeRemote {
		s.sink.OnMouseMovePrimary(x, y)
		return
	}

	// the re-centering warp reports the center itself
	dx, dy := x-s.xCenter, y-s.yCenter
	if dx == 0 && dy == 0 {
		return
	}
	s.platform.WarpCursor(s.xCenter, s.yCenter)
	s.sink.OnMouseMoveSecondary(dx, dy)
}

// TransitionToLocal returns control to the local desktop and warps the
// cursor to (x, y). It panics unless the screen is in ModeRemote.
func (s *Screen) TransitionToLocal(x, y int32) {
	if mode := s.Mode(); mode != ModeRemote {
		panic(fmt.Sprintf("primary: TransitionToLocal called in %v mode", mode))
	}
	s.toLocal()
	s.WarpCursor(x, y)
	s.log.Printf("Primary Screen: local control at (%d, %d)", x, y)
}

// toLocal is the shared body of Open and TransitionToLocal.
func (s *Screen) toLocal() {
	s.platform.ReleaseCapture()
	if s.lastForeground != 0 {
		s.platform.SetForeground(s.lastForeground)
		s.lastForeground = 0
	}
	s.platform.HideSurface()

	s.hook.SetZone(s.zone())
	s.marks.Next()
	s.mode.Store(int32(ModeLocal))
}

// TransitionToRemote captures all input for relaying to a secondary. It
// panics unless the screen is in ModeLocal.
func (s *Screen) TransitionToRemote() {
	if mode := s.Mode(); mode != ModeLocal {
		panic(fmt.Sprintf("primary: TransitionToRemote called in %v mode", mode))
	}

	s.marks.Next()
	s.lastForeground = s.platform.ForegroundWindow()
	s.platform.ShowSurface()
	s.platform.SetForeground(s.surface)
	s.platform.SetCapture()
	s.hook.SetRelay()

	// the warp produces a motion event of its own
	s.WarpCursor(s.xCenter, s.yCenter)
	s.marks.Next()
	s.mode.Store(int32(ModeRemote))
	s.log.Printf("Primary Screen: relaying input")

	s.reconcileClipboard()
}

// WarpCursor moves the cursor to an absolute position.
func (s *Screen) WarpCursor(x, y int32) {
	s.platform.WarpCursor(x, y)
}

func (s *Screen) zone() Zone {
	var sides keys.Sides
	if s.sink != nil {
		sides = s.sink.ActivePrimarySides()
	}
	return Zone{
		Sides:  sides,
		Width:  s.width,
		Height: s.height,
		Size:   s.opts.JumpZoneSize,
	}
}

// RefreshZone recomputes the jump zone after the enabled edges changed.
func (s *Screen) RefreshZone() {
	if s.Mode() == ModeLocal {
		s.hook.SetZone(s.zone())
	}
}

func (s *Screen) debugf(format string, v ...any) {
	if s.opts.Debug {
		s.log.Printf("[DEBUG] Primary Screen: "+format, v...)
	}
}
