//go:build freebsd || linux || netbsd || openbsd || solaris || dragonfly

package clipboard

import "github.com/atotto/clipboard"

var primarySelection = &clipboard.Primary
