package autostart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fakeHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	prevHome, prevExec := homeDir, executable
	homeDir = func() (string, error) { return home, nil }
	executable = func() (string, error) { return "/opt/kvmhost/kvmhost", nil }
	t.Cleanup(func() { homeDir, executable = prevHome, prevExec })
	return home
}

func TestXDGEntry(t *testing.T) {
	home := fakeHome(t)
	t.Setenv("XDG_CONFIG_HOME", "")

	if err := writeEntry(xdgEntryPath, xdgDesktopEntry); err != nil {
		t.Fatalf("writeEntry failed: %v", err)
	}

	path := filepath.Join(home, ".config", "autostart", "kvmhost.desktop")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected desktop entry at %s: %v", path, err)
	}
	if !strings.Contains(string(data), `Exec="/opt/kvmhost/kvmhost"`) {
		t.Errorf("Expected Exec line, got:\n%s", data)
	}
	if !entryExists(xdgEntryPath) {
		t.Error("Expected entry to exist")
	}

	if err := removeEntry(xdgEntryPath); err != nil {
		t.Fatalf("removeEntry failed: %v", err)
	}
	if entryExists(xdgEntryPath) {
		t.Error("Expected entry to be removed")
	}
	if err := removeEntry(xdgEntryPath); err != nil {
		t.Errorf("Expected removing a missing entry to succeed, got %v", err)
	}
}

func TestXDGConfigHome(t *testing.T) {
	fakeHome(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := xdgEntryPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "autostart", "kvmhost.desktop"); path != want {
		t.Errorf("Expected %s, got %s", want, path)
	}
}

func TestMacEntry(t *testing.T) {
	home := fakeHome(t)

	if err := writeEntry(macEntryPath, macLaunchAgentPlist); err != nil {
		t.Fatalf("writeEntry failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(home, "Library", "LaunchAgents", "com.kvmhost.host.plist"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<string>/opt/kvmhost/kvmhost</string>") {
		t.Errorf("Expected executable in plist, got:\n%s", data)
	}
}
