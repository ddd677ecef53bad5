// Package autostart starts the host service when the user logs in.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.kvmhost.host</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=kvmhost
Comment=Share this keyboard and mouse with neighbouring screens
Exec="{{.ExecutablePath}}"
X-GNOME-Autostart-enabled=true
`

// homeDir and executable are replaced in tests.
var (
	homeDir    = os.UserHomeDir
	executable = os.Executable
)

// Enable enables auto-start on login
func Enable() error {
	switch runtime.GOOS {
	case "darwin":
		return writeEntry(macEntryPath, macLaunchAgentPlist)
	case "windows":
		return enableWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return writeEntry(xdgEntryPath, xdgDesktopEntry)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable disables auto-start on login
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		return removeEntry(macEntryPath)
	case "windows":
		return disableWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return removeEntry(xdgEntryPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		return entryExists(macEntryPath)
	case "windows":
		return isEnabledWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return entryExists(xdgEntryPath)
	default:
		return false
	}
}

func macEntryPath() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", "com.kvmhost.host.plist"), nil
}

func xdgEntryPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autostart", "kvmhost.desktop"), nil
}

func writeEntry(path func() (string, error), text string) error {
	execPath, err := executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	entryPath, err := path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(entryPath), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("entry").Parse(text)
	if err != nil {
		return err
	}

	f, err := os.Create(entryPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct{ ExecutablePath string }{execPath})
}

func removeEntry(path func() (string, error)) error {
	entryPath, err := path()
	if err != nil {
		return err
	}
	if err := os.Remove(entryPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func entryExists(path func() (string, error)) bool {
	entryPath, err := path()
	if err != nil {
		return false
	}
	_, err = os.Stat(entryPath)
	return err == nil
}
