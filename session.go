package screengrab

import (
	"fmt"
	"image"
	"log/slog"
)

// Session captures a rectangular region of a display repeatedly without
// reallocating OS resources between captures. It owns a surface pool sized
// to the current region; Resize reallocates the pool only when the region's
// dimensions actually change, so moving the capture window costs nothing
// beyond an assignment.
//
// A Session is not safe for concurrent use. Callers that capture from
// multiple goroutines must use one Session per goroutine; sessions may
// reference the same display concurrently, but each owns its surfaces and
// buffer exclusively. Sessions must not be copied.
type Session struct {
	pool   surfacePool
	x, y   int
	width  int
	height int
	ready  bool
	closed bool
	log    *slog.Logger
}

// NewSession validates the region, resolves the display index (0 is the
// primary display) and allocates the surfaces and pixel buffer for a
// width x height capture at origin (x, y) in virtual-desktop coordinates.
// The origin may be negative on multi-monitor layouts.
func NewSession(display, x, y, width, height int, opts ...Option) (*Session, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if display < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrInvalidMonitor, display)
	}

	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := o.factory(display, width, height, o.logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		pool:   pool,
		x:      x,
		y:      y,
		width:  width,
		height: height,
		ready:  true,
		log:    o.logger,
	}
	s.log.Debug("session created",
		"display", display, "x", x, "y", y, "width", width, "height", height,
		"stride", pool.format().Stride, "bpp", pool.format().BitsPerPixel)
	return s, nil
}

// Capture blits the current region into the session's off-screen surface
// and returns a view of its bits. The returned Frame aliases the session's
// buffer: it is valid until the next Capture, Resize or Close on the same
// session. Callers that need the pixels beyond that window must copy them,
// e.g. with Frame.ToRGBA.
func (s *Session) Capture() (*Frame, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: session closed", ErrNotReady)
	}
	if !s.ready {
		return nil, fmt.Errorf("%w: previous reallocation failed", ErrNotReady)
	}
	buf, err := s.pool.blitAndRead(s.x, s.y)
	if err != nil {
		return nil, err
	}
	pf := s.pool.format()
	return &Frame{
		Bytes:        buf,
		Stride:       pf.Stride,
		BitsPerPixel: pf.BitsPerPixel,
		Order:        pf.Order,
		Width:        s.width,
		Height:       s.height,
	}, nil
}

// Resize moves the capture region to origin (x, y) with the given size.
// If the size is unchanged only the origin is updated; otherwise the
// destination surface, bitmap and buffer are reallocated exactly once.
// On reallocation failure the session keeps its previous region but its
// surfaces are gone: Capture fails with ErrNotReady until a Resize
// succeeds.
func (s *Session) Resize(x, y, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if s.closed {
		return fmt.Errorf("%w: session closed", ErrNotReady)
	}
	if s.ready && width == s.width && height == s.height {
		s.x, s.y = x, y
		return nil
	}
	if err := s.pool.reallocate(width, height); err != nil {
		s.ready = false
		s.log.Warn("reallocation failed", "width", width, "height", height, "err", err)
		return err
	}
	s.x, s.y, s.width, s.height = x, y, width, height
	s.ready = true
	s.log.Debug("session resized",
		"x", x, "y", y, "width", width, "height", height,
		"stride", s.pool.format().Stride)
	return nil
}

// Region returns the current capture region in virtual-desktop coordinates.
func (s *Session) Region() image.Rectangle {
	return image.Rect(s.x, s.y, s.x+s.width, s.y+s.height)
}

// Format returns the pixel format of captured frames. Only the stride
// varies over the session's lifetime, and only on size-changing resizes.
func (s *Session) Format() PixelFormat {
	return s.pool.format()
}

// Close releases every OS resource the session owns. Idempotent. After
// Close, Capture and Resize fail with ErrNotReady.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.pool.release()
	s.closed = true
	s.ready = false
	s.log.Debug("session closed")
	return nil
}
