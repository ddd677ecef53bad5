//go:build !(freebsd || linux || netbsd || openbsd || solaris || dragonfly)

package clipboard

var primarySelection *bool
