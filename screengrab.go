// Package screengrab captures rectangular screen regions as raw pixel
// buffers, optimized for sampling the same (possibly moving) region many
// times per second. A Session keeps its OS surfaces and pixel buffer alive
// across captures and reallocates them only when the region's size changes.
// Windows (GDI), X11 and Wayland (portal fallback) are supported.
package screengrab

import (
	"errors"
	"image"
)

// ErrUnsupported is returned when the platform or architecture used to
// compile the program does not support screen capture.
var ErrUnsupported = errors.New("screengrab does not support your platform")

// Capture grabs the region at (x, y) in virtual-desktop coordinates once
// and returns it as an image.RGBA. It creates and tears down a throwaway
// session per call; use a Session directly when capturing repeatedly.
func Capture(x, y, width, height int) (*image.RGBA, error) {
	s, err := NewSession(0, x, y, width, height)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	f, err := s.Capture()
	if err != nil {
		return nil, err
	}
	return f.ToRGBA(), nil
}

// CaptureRect captures the specified region of the desktop.
func CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return Capture(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
}

// CaptureDisplay captures the whole region of displayIndex'th display,
// starting at 0 for the primary display.
func CaptureDisplay(displayIndex int) (*image.RGBA, error) {
	rect, err := GetDisplayBounds(displayIndex)
	if err != nil {
		return nil, err
	}

	s, err := NewSession(displayIndex, rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	if err != nil {
		return nil, err
	}
	defer s.Close()

	f, err := s.Capture()
	if err != nil {
		return nil, err
	}
	return f.ToRGBA(), nil
}
