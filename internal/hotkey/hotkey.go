// Package hotkey matches key and mouse button combinations against the
// canonical event stream of the primary screen.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"kvmhost/internal/keys"
)

// Manager handles hotkey registration and matching
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // map of current keys/buttons pressed
}

type registeredHotkey struct {
	parts    []string // e.g., ["CTRL", "ALT", "MOUSE4"]
	original string
	callback func()
}

// aliases folds the spellings accepted in hotkey strings onto key names.
var aliases = map[string]string{
	"CONTROL": "CTRL",
	"ESCAPE":  "ESC",
	"WIN":     "META",
	"SUPER":   "META",
	"CMD":     "META",
	"ENTER":   "RETURN",
	"DEL":     "DELETE",
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
	}
}

// Register registers a hotkey string (e.g. "Ctrl+Alt+1", "Mouse1+Mouse3") and a callback.
func (m *Manager) Register(hotkeyStr string, callback func()) (int, error) {
	if hotkeyStr == "" {
		return 0, nil
	}

	parts := strings.Split(strings.ToUpper(hotkeyStr), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, fmt.Errorf("invalid hotkey %q", hotkeyStr)
		}
		if alias, ok := aliases[p]; ok {
			p = alias
		}
		parts[i] = p
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})

	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// KeyDown records a key press and reports whether it completed a hotkey.
func (m *Manager) KeyDown(id keys.KeyID) bool {
	return m.updateState(id.Name(), true)
}

// KeyUp records a key release.
func (m *Manager) KeyUp(id keys.KeyID) {
	m.updateState(id.Name(), false)
}

// ButtonDown records a mouse button press as "MOUSE<n>".
func (m *Manager) ButtonDown(b keys.ButtonID) bool {
	return m.updateState(fmt.Sprintf("MOUSE%d", b), true)
}

// ButtonUp records a mouse button release.
func (m *Manager) ButtonUp(b keys.ButtonID) {
	m.updateState(fmt.Sprintf("MOUSE%d", b), false)
}

// Reset forgets all pressed keys, e.g. after focus moved to another screen.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.currentState)
}

// updateState updates the internal state of a key or button and checks for matches.
func (m *Manager) updateState(key string, isDown bool) bool {
	m.mu.Lock()
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if isDown {
		return m.checkMatches(key)
	}
	return false
}

// checkMatches fires hotkeys completed by key. A hotkey whose keys were
// already held does not fire again for an unrelated press.
func (m *Manager) checkMatches(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := false
	for _, hk := range m.hotkeys {
		match := false
		// All parts of the hotkey must be in currentState
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
			if part == key {
				match = true
			}
		}

		if match {
			log.Printf("Hotkey triggered: %s", hk.original)
			matched = true
			go hk.callback()
		}
	}
	return matched
}
