//go:build !windows

package autostart

import "errors"

var errNotWindows = errors.New("registry auto-start is only available on Windows")

func enableWindows() error   { return errNotWindows }
func disableWindows() error  { return errNotWindows }
func isEnabledWindows() bool { return false }
