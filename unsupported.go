//go:build !windows && !linux && !freebsd && !netbsd && !openbsd

package screengrab

import (
	"image"
	"log/slog"
)

func newSurfacePool(display, width, height int, log *slog.Logger) (surfacePool, error) {
	return nil, ErrUnsupported
}

// NumActiveDisplays returns the number of active displays.
func NumActiveDisplays() int { return 0 }

// GetDisplayBounds returns the bounds of displayIndex'th display.
func GetDisplayBounds(displayIndex int) (image.Rectangle, error) {
	return image.Rectangle{}, ErrUnsupported
}
