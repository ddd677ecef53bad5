//go:build !windows && !linux

package primary

import "log"

// NewPlatform reports that input capture is not available on this OS.
func NewPlatform(logger *log.Logger) (Platform, error) {
	return nil, ErrUnsupported
}
