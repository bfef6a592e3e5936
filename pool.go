package screengrab

import "fmt"

// PixelOrder identifies the channel layout of captured bytes.
type PixelOrder uint8

const (
	// OrderBGRA is the native layout of GDI DIBs and little-endian X11
	// ZPixmap data: blue in the lowest-addressed byte.
	OrderBGRA PixelOrder = iota

	// OrderRGBA is produced by the Wayland portal path, which hands back
	// decoded PNG data.
	OrderRGBA
)

func (o PixelOrder) String() string {
	switch o {
	case OrderBGRA:
		return "BGRA"
	case OrderRGBA:
		return "RGBA"
	}
	return fmt.Sprintf("PixelOrder(%d)", uint8(o))
}

// PixelFormat describes how to interpret the bytes a pool reads back.
// Fixed at pool construction from the display's native format; only the
// stride changes on reallocation.
type PixelFormat struct {
	BitsPerPixel int
	Stride       int
	Order        PixelOrder
}

// surfacePool owns the OS graphics resources behind one session: the shared
// source display reference, the destination off-screen surface with its
// bitmap, and the reusable pixel buffer.
//
// Implementations guarantee that no handle leaks on any path: a failed
// reallocate unwinds whatever it acquired and leaves the pool empty, in
// which state blitAndRead fails with ErrNotReady until a reallocate
// succeeds. release is idempotent and never touches the shared display
// reference beyond undoing its own acquisition.
type surfacePool interface {
	// reallocate drops the current destination surface, bitmap and buffer
	// and acquires new ones sized width x height.
	reallocate(width, height int) error

	// blitAndRead copies the pool-sized region at (x, y) in virtual-desktop
	// coordinates into the destination surface and reads its bits into the
	// pool's buffer. The returned slice is the pool's own storage: valid
	// until the next blitAndRead, reallocate or release.
	blitAndRead(x, y int) ([]byte, error)

	// format reports the current pixel format descriptor.
	format() PixelFormat

	release()
}
