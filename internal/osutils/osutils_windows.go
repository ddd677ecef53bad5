//go:build windows

package osutils

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// EnsureFirewallRules creates every missing rule. All missing rules are
// applied in one elevated PowerShell call so the user sees a single UAC prompt.
func EnsureFirewallRules(rules []FirewallRule) error {
	var commands []string
	for _, r := range rules {
		output, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+r.Name).CombinedOutput()
		if err == nil && r.matches(string(output)) {
			log.Printf("Firewall: Rule '%s' already allows %s %d. OK.", r.Name, r.Protocol, r.Port)
			continue
		}
		log.Printf("Firewall: Rule '%s' missing or outdated. Creating...", r.Name)
		commands = append(commands, r.powerShell())
	}
	if len(commands) == 0 {
		return nil
	}
	psCommand := strings.Join(commands, "; ")

	if !IsAdmin() {
		log.Println("Firewall: Current process is NOT elevated. Requesting UAC elevation via ShellExecute...")

		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		var showCmd int32 = 0 // SW_HIDE

		if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, showCmd); err != nil {
			return fmt.Errorf("failed to launch elevated powershell via ShellExecute: %w", err)
		}
		log.Println("Firewall: UAC prompt requested. Please check your screen/taskbar.")
		return nil
	}

	cmd := exec.Command("powershell", "-NoProfile", "-Command", psCommand)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create firewall rules: %w (Output: %s)", err, string(output))
	}
	log.Printf("Firewall: Applied %d rule(s)", len(commands))
	return nil
}
