// Package switcher decides which screen holds input focus and forwards the
// primary's canonical events to the active secondary.
package switcher

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"kvmhost/internal/clipboard"
	"kvmhost/internal/config"
	"kvmhost/internal/hotkey"
	"kvmhost/internal/keys"
	"kvmhost/internal/network"
	"kvmhost/internal/primary"
	"kvmhost/internal/protocol"
)

// Screen is the part of *primary.Screen the switcher drives.
type Screen interface {
	Size() (width, height int32)
	Center() (x, y int32)
	JumpZoneSize() int32
	TransitionToRemote()
	TransitionToLocal(x, y int32)
	RefreshZone()
	Do(fn func())
	SetClipboard(id keys.ClipboardID, text string) error
	Clipboard(id keys.ClipboardID) (string, error)
}

// Transport delivers input packets to a registered screen.
type Transport interface {
	Send(name string, pkt *protocol.UDPPacket) error
	HasAgent(name string) bool
}

// Control carries screen switches and clipboard text.
type Control interface {
	BroadcastScreen(active, origin string)
	SendClipboard(screen string, p protocol.ClipboardPayload) error
}

// Switcher implements primary.Sink. Sink callbacks and every method that
// touches the active secondary run on the screen's dispatch goroutine.
type Switcher struct {
	screen    Screen
	transport Transport
	control   Control
	cfg       *config.Config
	hotkeys   *hotkey.Manager

	active *config.Neighbor
	side   keys.Sides // side of the primary the active secondary is on
	x, y   int32      // cursor on the active secondary
	mask   keys.ModifierMask

	// clipboards grabbed while local, handed over on the next enter
	pending map[keys.ClipboardID]bool
	// presses that completed a hotkey; their releases are not forwarded
	swallowedKeys    map[keys.KeyID]bool
	swallowedButtons map[keys.ButtonID]bool

	mu       sync.Mutex
	onSwitch func(screen string)
}

// New creates a switcher for the neighbour layout in cfg. control may be nil.
func New(cfg *config.Config, screen Screen, transport Transport, control Control) (*Switcher, error) {
	s := &Switcher{
		screen:    screen,
		transport: transport,
		control:   control,
		cfg:       cfg,
		hotkeys:   hotkey.NewManager(),

		pending:          make(map[keys.ClipboardID]bool),
		swallowedKeys:    make(map[keys.KeyID]bool),
		swallowedButtons: make(map[keys.ButtonID]bool),
	}

	if err := s.registerEscape(cfg.General.EscapeHotkey); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Switcher) registerEscape(combo string) error {
	if _, err := s.hotkeys.Register(combo, func() {
		s.screen.Do(s.Escape)
	}); err != nil {
		return fmt.Errorf("failed to register escape hotkey: %w", err)
	}
	return nil
}

// SetConfig switches to a reloaded configuration. It must run on the
// screen's dispatch goroutine. If the active secondary is no longer
// configured on the same side, control returns to the primary.
func (s *Switcher) SetConfig(cfg *config.Config) error {
	if cfg.General.EscapeHotkey != s.cfg.General.EscapeHotkey {
		s.hotkeys.Clear()
		if err := s.registerEscape(cfg.General.EscapeHotkey); err != nil {
			s.registerEscape(s.cfg.General.EscapeHotkey)
			return err
		}
	}

	if s.active != nil {
		n := cfg.Neighbor(s.side)
		if n == nil || n.Name != s.active.Name {
			log.Printf("Switcher: %q was removed from the layout", s.active.Name)
			s.returnToPrimary(s.screen.Center())
		} else {
			s.active = n
			s.x, s.y = clamp(s.x, 0, n.Width-1), clamp(s.y, 0, n.Height-1)
		}
	}

	s.cfg = cfg
	s.screen.RefreshZone()
	return nil
}

// SetOnSwitch sets the callback for switch events
func (s *Switcher) SetOnSwitch(callback func(screen string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwitch = callback
}

func (s *Switcher) notify(active string) {
	if s.control != nil {
		s.control.BroadcastScreen(active, "host")
	}

	s.mu.Lock()
	fn := s.onSwitch
	s.mu.Unlock()
	if fn != nil {
		fn(active)
	}
}

// Active returns the name of the secondary holding focus, or "".
func (s *Switcher) Active() string {
	if s.active == nil {
		return ""
	}
	return s.active.Name
}

func (s *Switcher) OnKeyDown(id keys.KeyID, mask keys.ModifierMask) {
	s.mask = mask
	if s.hotkeys.KeyDown(id) {
		s.swallowedKeys[id] = true
		return
	}
	s.send(&protocol.UDPPacket{Type: protocol.UDPPacketKeyDown, Key: uint32(id), Mask: uint16(mask), Count: 1})
}

func (s *Switcher) OnKeyUp(id keys.KeyID, mask keys.ModifierMask) {
	s.mask = mask
	s.hotkeys.KeyUp(id)
	if s.swallowedKeys[id] {
		delete(s.swallowedKeys, id)
		return
	}
	s.send(&protocol.UDPPacket{Type: protocol.UDPPacketKeyUp, Key: uint32(id), Mask: uint16(mask), Count: 1})
}

func (s *Switcher) OnKeyRepeat(id keys.KeyID, mask keys.ModifierMask, count uint16) {
	s.mask = mask
	s.send(&protocol.UDPPacket{Type: protocol.UDPPacketKeyRepeat, Key: uint32(id), Mask: uint16(mask), Count: count})
}

func (s *Switcher) OnMouseDown(button keys.ButtonID) {
	if s.hotkeys.ButtonDown(button) {
		s.swallowedButtons[button] = true
		return
	}
	s.send(&protocol.UDPPacket{Type: protocol.UDPPacketButtonDown, Button: uint8(button)})
}

func (s *Switcher) OnMouseUp(button keys.ButtonID) {
	s.hotkeys.ButtonUp(button)
	if s.swallowedButtons[button] {
		delete(s.swallowedButtons, button)
		return
	}
	s.send(&protocol.UDPPacket{Type: protocol.UDPPacketButtonUp, Button: uint8(button)})
}

// OnMouseMovePrimary switches to the neighbour behind the edge the cursor
// reached.
func (s *Switcher) OnMouseMovePrimary(x, y int32) {
	if s.active != nil {
		return
	}

	w, h := s.screen.Size()
	zone := primary.Zone{Sides: s.ActivePrimarySides(), Width: w, Height: h, Size: s.screen.JumpZoneSize()}
	side := firstSide(zone.Hit(x, y))
	if side == 0 {
		return
	}
	n := s.cfg.Neighbor(side)
	if n == nil || !s.transport.HasAgent(n.Name) {
		return
	}

	ex, ey := entryPoint(side, x, y, w, h, n.Width, n.Height)
	log.Printf("Switcher: Switching to %q on the %v side at (%d, %d)", n.Name, side, ex, ey)

	// the clipboard reconcile in the transition lands in pending
	s.screen.TransitionToRemote()
	s.active, s.side = n, side
	s.x, s.y = ex, ey

	s.send(&protocol.UDPPacket{Type: protocol.UDPPacketEnter, X: s.x, Y: s.y, Mask: uint16(s.mask)})
	s.flushClipboards()
	if s.active != nil {
		s.notify(n.Name)
	}
}

// OnMouseMoveSecondary moves the cursor on the active secondary and returns
// to the primary when it leaves through the edge facing it.
func (s *Switcher) OnMouseMoveSecondary(dx, dy int32) {
	if s.active == nil {
		return
	}

	x, y := s.x+dx, s.y+dy
	nw, nh := s.active.Width, s.active.Height

	var crossed bool
	switch s.side {
	case keys.RightSide:
		crossed = x < 0
	case keys.LeftSide:
		crossed = x >= nw
	case keys.TopSide:
		crossed = y >= nh
	case keys.BottomSide:
		crossed = y < 0
	}
	if crossed {
		w, h := s.screen.Size()
		px, py := returnPoint(s.side, x, y, nw, nh, w, h, s.screen.JumpZoneSize())
		s.returnToPrimary(px, py)
		return
	}

	s.x, s.y = clamp(x, 0, nw-1), clamp(y, 0, nh-1)
	s.send(&protocol.UDPPacket{Type: protocol.UDPPacketMouseMove, X: s.x, Y: s.y})
}

// Escape returns control to the primary at its center.
func (s *Switcher) Escape() {
	if s.active == nil {
		return
	}
	log.Printf("Switcher: Escape hotkey, returning to %q", s.cfg.Screen.Name)
	s.returnToPrimary(s.screen.Center())
}

func (s *Switcher) returnToPrimary(x, y int32) {
	name := s.active.Name
	if err := s.transport.Send(name, &protocol.UDPPacket{Type: protocol.UDPPacketLeave}); err != nil {
		log.Printf("Switcher: Failed to notify %q of leave: %v", name, err)
	}
	s.active, s.side = nil, 0

	log.Printf("Switcher: Returning to %q at (%d, %d)", s.cfg.Screen.Name, x, y)
	s.screen.TransitionToLocal(x, y)
	s.notify(s.cfg.Screen.Name)
}

// send forwards pkt to the active secondary. Losing the agent returns
// control to the primary.
func (s *Switcher) send(pkt *protocol.UDPPacket) {
	if s.active == nil {
		return
	}
	err := s.transport.Send(s.active.Name, pkt)
	if err == nil {
		return
	}
	if errors.Is(err, network.ErrNoAgent) {
		log.Printf("Switcher: %q went away", s.active.Name)
		s.returnToPrimary(s.screen.Center())
		return
	}
	log.Printf("Switcher: Send to %q failed: %v", s.active.Name, err)
}

// GrabClipboard hands the primary's clipboard to the active secondary.
// While local the grab is held until the next secondary is entered; it
// fails with ErrBadPeer only when no neighbour is registered at all.
func (s *Switcher) GrabClipboard(id keys.ClipboardID) error {
	if s.active == nil {
		s.pending[id] = true
		if s.ActivePrimarySides() == 0 {
			return fmt.Errorf("no secondary registered: %w", primary.ErrBadPeer)
		}
		return nil
	}
	name := s.active.Name
	if !s.transport.HasAgent(name) {
		return fmt.Errorf("%q not registered: %w", name, primary.ErrBadPeer)
	}
	return s.handOver(name, id)
}

// flushClipboards hands the clipboards grabbed while local to the secondary
// just entered.
func (s *Switcher) flushClipboards() {
	for _, id := range []keys.ClipboardID{keys.Clipboard, keys.Selection} {
		if !s.pending[id] || s.active == nil {
			continue
		}
		delete(s.pending, id)
		if err := s.handOver(s.active.Name, id); err != nil {
			log.Printf("Switcher: Failed to hand %v to %q: %v", id, s.active.Name, err)
		}
	}
}

// handOver sends the text of a local clipboard followed by the grab.
func (s *Switcher) handOver(name string, id keys.ClipboardID) error {
	if s.control != nil {
		text, err := s.screen.Clipboard(id)
		switch {
		case err == nil:
			if err := s.control.SendClipboard(name, protocol.ClipboardPayload{Clipboard: uint8(id), Text: text}); err != nil {
				return fmt.Errorf("failed to send %v to %q: %w", id, name, err)
			}
		case errors.Is(err, primary.ErrUnsupported), errors.Is(err, clipboard.ErrNoSelection):
		default:
			return err
		}
	}

	return s.transport.Send(name, &protocol.UDPPacket{Type: protocol.UDPPacketClipboardGrab, Clipboard: uint8(id)})
}

// ReceiveClipboard stores clipboard text sent by a secondary. Safe to call
// from any goroutine.
func (s *Switcher) ReceiveClipboard(from string, p protocol.ClipboardPayload) {
	s.screen.Do(func() {
		id := keys.ClipboardID(p.Clipboard)
		delete(s.pending, id)
		if err := s.screen.SetClipboard(id, p.Text); err != nil {
			log.Printf("Switcher: Failed to store %v from %q: %v", id, from, err)
		}
	})
}

// AgentsChanged re-evaluates the enabled edges. Safe to call from any
// goroutine.
func (s *Switcher) AgentsChanged() {
	s.screen.Do(s.screen.RefreshZone)
}

// ActivePrimarySides returns the configured sides whose agent is registered.
func (s *Switcher) ActivePrimarySides() keys.Sides {
	var sides keys.Sides
	for _, n := range s.cfg.Neighbors {
		side, err := keys.ParseSide(n.Side)
		if err != nil {
			continue
		}
		if s.transport.HasAgent(n.Name) {
			sides |= side
		}
	}
	return sides
}

// firstSide picks one side out of a corner hit.
func firstSide(hit keys.Sides) keys.Sides {
	for _, side := range []keys.Sides{keys.LeftSide, keys.RightSide, keys.TopSide, keys.BottomSide} {
		if hit&side != 0 {
			return side
		}
	}
	return 0
}

// entryPoint maps a primary edge position onto the facing edge of a
// secondary of size nw x nh.
func entryPoint(side keys.Sides, x, y, w, h, nw, nh int32) (int32, int32) {
	sx := scale(x, w, nw)
	sy := scale(y, h, nh)
	switch side {
	case keys.RightSide:
		return 0, sy
	case keys.LeftSide:
		return nw - 1, sy
	case keys.TopSide:
		return sx, nh - 1
	default:
		return sx, 0
	}
}

// returnPoint maps a secondary position back onto the primary, just
// outside the jump zone so the cursor does not bounce straight back.
func returnPoint(side keys.Sides, x, y, nw, nh, w, h, zone int32) (int32, int32) {
	if zone <= 0 {
		zone = primary.DefaultJumpZoneSize
	}
	px := clamp(scale(x, nw, w), 0, w-1)
	py := clamp(scale(y, nh, h), 0, h-1)
	switch side {
	case keys.RightSide:
		return w - 1 - zone, py
	case keys.LeftSide:
		return zone, py
	case keys.TopSide:
		return px, zone
	default:
		return px, h - 1 - zone
	}
}

func scale(v, from, to int32) int32 {
	if from <= 0 {
		return 0
	}
	return int32(int64(v) * int64(to) / int64(from))
}

func clamp(v, lo, hi int32) int32 {
	return max(lo, min(v, hi))
}
