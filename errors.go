package screengrab

import "errors"

// Error kinds returned by sessions and their surface pools. All errors
// returned by this package wrap exactly one of these sentinels, so callers
// can classify failures with errors.Is regardless of the added context.
var (
	// ErrInvalidMonitor is returned when a display index does not resolve
	// to an active display, or the display server cannot be reached.
	ErrInvalidMonitor = errors.New("screengrab: invalid monitor")

	// ErrInvalidSize is returned when a requested capture width or height
	// is not strictly positive. Validated before any OS resource is touched.
	ErrInvalidSize = errors.New("screengrab: invalid size")

	// ErrResourceExhausted is returned when the OS refuses to allocate a
	// surface, bitmap or pixel buffer for the requested dimensions.
	ErrResourceExhausted = errors.New("screengrab: resource allocation failed")

	// ErrBlitFailed is returned when the block copy from the display to the
	// destination surface fails, e.g. a region outside the virtual display
	// or a display mode change mid-capture. Possibly transient; callers may
	// retry the capture or recreate the session.
	ErrBlitFailed = errors.New("screengrab: blit failed")

	// ErrNotReady is returned for operations on a session whose surfaces
	// were torn down by a failed reallocation or by Close. A successful
	// Resize makes a failed session ready again.
	ErrNotReady = errors.New("screengrab: session not ready")
)
