//go:build !windows

package osutils

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return false
}

// EnsureFirewallRules is a stub for non-Windows platforms
func EnsureFirewallRules(rules []FirewallRule) error {
	return nil
}
