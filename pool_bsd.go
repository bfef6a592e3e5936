//go:build freebsd || netbsd || openbsd

package screengrab

import "log/slog"

func newSurfacePool(display, width, height int, log *slog.Logger) (surfacePool, error) {
	return newX11Pool(display, width, height, log)
}
