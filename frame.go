package screengrab

import (
	"image"
	"image/color"
	"sync"

	"github.com/klauspost/cpuid"
)

// Frame is a read-only view of one captured region. Bytes aliases the
// session's reusable buffer and stays valid until the next Capture, Resize
// or Close on the owning session. Stride, BitsPerPixel and Order carry
// everything needed to index any pixel without recomputing format details;
// Stride is at least Width * BitsPerPixel / 8 and rows are padded to the
// platform's bitmap alignment.
type Frame struct {
	Bytes        []byte
	Stride       int
	BitsPerPixel int
	Width        int
	Height       int
	Order        PixelOrder
}

// At returns the pixel at (x, y) relative to the frame's top-left corner,
// with alpha forced opaque. The zero color is returned outside the frame.
func (f *Frame) At(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	i := y*f.Stride + x*(f.BitsPerPixel/8)
	b := f.Bytes
	if f.Order == OrderRGBA {
		return color.RGBA{R: b[i], G: b[i+1], B: b[i+2], A: 0xff}
	}
	return color.RGBA{R: b[i+2], G: b[i+1], B: b[i], A: 0xff}
}

// convWorkers bounds the row-parallel conversion in ToRGBA. Logical core
// count from cpuid rather than GOMAXPROCS: the conversion is memory
// bound, so threads past the machine's own core count only add contention.
var convWorkers = func() int {
	n := cpuid.CPU.LogicalCores
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}()

// Frames below this pixel count convert on the calling goroutine; the
// goroutine handoff costs more than the loop for small regions.
const parallelPixels = 1 << 16

// ToRGBA copies the frame into a newly allocated image.RGBA, converting
// from the capture byte order and forcing alpha opaque. Unlike the Frame
// itself the result does not alias session storage, so it survives
// subsequent captures. Large frames are converted row-parallel.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Width*f.Height < parallelPixels || convWorkers < 2 {
		f.convertRows(img, 0, f.Height)
		return img
	}

	var wg sync.WaitGroup
	chunk := (f.Height + convWorkers - 1) / convWorkers
	for y := 0; y < f.Height; y += chunk {
		y0, y1 := y, y+chunk
		if y1 > f.Height {
			y1 = f.Height
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.convertRows(img, y0, y1)
		}()
	}
	wg.Wait()
	return img
}

func (f *Frame) convertRows(dst *image.RGBA, y0, y1 int) {
	bpp := f.BitsPerPixel / 8
	for y := y0; y < y1; y++ {
		src := f.Bytes[y*f.Stride:]
		di := dst.PixOffset(0, y)
		if f.Order == OrderBGRA && bpp == 4 {
			swapBGRAtoRGBA(dst.Pix[di:], src, f.Width)
			continue
		}
		if f.Order == OrderRGBA {
			for x := 0; x < f.Width; x++ {
				si := x * bpp
				dst.Pix[di] = src[si]
				dst.Pix[di+1] = src[si+1]
				dst.Pix[di+2] = src[si+2]
				dst.Pix[di+3] = 0xff
				di += 4
			}
			continue
		}
		for x := 0; x < f.Width; x++ {
			si := x * bpp
			// BGRA => RGBA, and set A to 255
			dst.Pix[di] = src[si+2]
			dst.Pix[di+1] = src[si+1]
			dst.Pix[di+2] = src[si]
			dst.Pix[di+3] = 0xff
			di += 4
		}
	}
}
