// Package config provides configuration management for the KVM host.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"kvmhost/internal/keys"
)

// Config represents the application configuration
type Config struct {
	// Screen describes this (primary) screen
	Screen ScreenConfig `json:"screen"`

	// Neighbors lists the secondary screens around the primary, one per side
	Neighbors []Neighbor `json:"neighbors"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// ScreenConfig contains settings for the local screen
type ScreenConfig struct {
	// Name identifies this screen to agents
	Name string `json:"name"`

	// JumpZoneSize is the width in pixels of the hot edge (default: 1)
	JumpZoneSize int32 `json:"jump_zone_size"`
}

// Neighbor is a secondary screen attached to one side of the primary
type Neighbor struct {
	// Side is "left", "right", "top" or "bottom"
	Side string `json:"side"`

	// Name is the screen name the agent registers with
	Name string `json:"name"`

	// Width and Height are the secondary's resolution, used to track the
	// remote cursor
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// UDPPort is the port agents register on and input is sent from (default: 18081)
	UDPPort int `json:"udp_port"`

	// ControlPort is the port for the WebSocket control channel (default: 18080)
	ControlPort int `json:"control_port"`

	// EscapeHotkey returns control to this screen (e.g. "Ctrl+Alt+Shift+Esc")
	EscapeHotkey string `json:"escape_hotkey,omitempty"`

	// Debug enables verbose capture logging
	Debug bool `json:"debug"`

	// ShowTray shows the system tray icon
	ShowTray bool `json:"show_tray"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "primary"
	}

	return &Config{
		Screen: ScreenConfig{
			Name:         hostname,
			JumpZoneSize: 1,
		},
		Neighbors: []Neighbor{},
		General: GeneralConfig{
			UDPPort:      18081,
			ControlPort:  18080,
			EscapeHotkey: "Ctrl+Alt+Shift+Esc",
			ShowTray:     true,
		},
	}
}

// Validate checks the neighbour layout and ports
func (c *Config) Validate() error {
	var errs []error

	if c.General.UDPPort <= 0 || c.General.UDPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid udp_port %d", c.General.UDPPort))
	}
	if c.General.ControlPort < 0 || c.General.ControlPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid control_port %d", c.General.ControlPort))
	}

	var seen keys.Sides
	for _, n := range c.Neighbors {
		side, err := keys.ParseSide(n.Side)
		if err != nil {
			errs = append(errs, fmt.Errorf("neighbor %q: %w", n.Name, err))
			continue
		}
		if seen&side != 0 {
			errs = append(errs, fmt.Errorf("neighbor %q: side %s already taken", n.Name, n.Side))
		}
		seen |= side
		if strings.TrimSpace(n.Name) == "" {
			errs = append(errs, fmt.Errorf("neighbor on %s side has no name", n.Side))
		}
		if n.Width <= 0 || n.Height <= 0 {
			errs = append(errs, fmt.Errorf("neighbor %q: invalid size %dx%d", n.Name, n.Width, n.Height))
		}
	}

	return errors.Join(errs...)
}

// Sides returns the sides that have a neighbour configured
func (c *Config) Sides() keys.Sides {
	var sides keys.Sides
	for _, n := range c.Neighbors {
		if side, err := keys.ParseSide(n.Side); err == nil {
			sides |= side
		}
	}
	return sides
}

// Neighbor returns the neighbour on the given side, or nil
func (c *Config) Neighbor(side keys.Sides) *Neighbor {
	for i := range c.Neighbors {
		if s, err := keys.ParseSide(c.Neighbors[i].Side); err == nil && s == side {
			return &c.Neighbors[i]
		}
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager using the per-user config directory
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager for an explicit file
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "kvmhost")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "kvmhost")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "kvmhost")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk and runs the change callback
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	fn := m.onChanged
	m.mu.Unlock()

	// the callback usually calls Get
	if fn != nil {
		fn()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// RegisterChangeCallback registers a function to be called after a
// successful Load
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
