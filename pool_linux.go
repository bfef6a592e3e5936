//go:build linux

package screengrab

import "log/slog"

// newSurfacePool prefers the X11 pool: it is the fast path and also covers
// Wayland sessions running XWayland. The portal pool is the fallback for
// pure Wayland sessions.
func newSurfacePool(display, width, height int, log *slog.Logger) (surfacePool, error) {
	p, err := newX11Pool(display, width, height, log)
	if err == nil {
		return p, nil
	}
	if waylandSession() {
		log.Debug("x11 unavailable, falling back to wayland portal", "err", err)
		return newPortalPool(display, width, height, log)
	}
	return nil, err
}
