// Package osutils holds OS integration helpers for the host service.
package osutils

import (
	"fmt"
	"strings"
)

// FirewallRule opens one inbound port.
type FirewallRule struct {
	Name     string
	Port     int
	Protocol string // "TCP" or "UDP"
}

// HostRules returns the rules the host needs: UDP for agent registration
// and TCP for the control channel. A zero control port is skipped.
func HostRules(udpPort, controlPort int) []FirewallRule {
	rules := []FirewallRule{{Name: "kvmhost input (UDP)", Port: udpPort, Protocol: "UDP"}}
	if controlPort > 0 {
		rules = append(rules, FirewallRule{Name: "kvmhost control (TCP)", Port: controlPort, Protocol: "TCP"})
	}
	return rules
}

// matches reports whether netsh output shows r as an allow rule.
func (r FirewallRule) matches(netshOutput string) bool {
	return strings.Contains(netshOutput, r.Name) &&
		strings.Contains(netshOutput, fmt.Sprintf("%d", r.Port)) &&
		strings.Contains(netshOutput, r.Protocol) &&
		strings.Contains(netshOutput, "Allow")
}

// powerShell returns the command replacing r.
func (r FirewallRule) powerShell() string {
	return fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol %s -Action Allow -Profile Any",
		r.Name, r.Name, r.Port, r.Protocol,
	)
}
