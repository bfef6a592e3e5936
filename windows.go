//go:build windows

package screengrab

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	libUser32, _               = syscall.LoadLibrary("user32.dll")
	funcEnumDisplayMonitors, _ = syscall.GetProcAddress(syscall.Handle(libUser32), "EnumDisplayMonitors")
	funcGetMonitorInfo, _      = syscall.GetProcAddress(syscall.Handle(libUser32), "GetMonitorInfoW")
	funcEnumDisplaySettings, _ = syscall.GetProcAddress(syscall.Handle(libUser32), "EnumDisplaySettingsW")

	// Registered exactly once: callback slots are a small process-wide
	// resource that is never released, so a per-call closure would
	// exhaust them under repeated enumeration.
	enumDisplayCallback = syscall.NewCallback(appendDisplayRect)
)

// gdiPool is the Windows surface pool: the shared screen DC as the source,
// a compatible DC with a compatible bitmap selected into it as the
// destination, and a GlobalAlloc'd DIB buffer held locked for the pool's
// lifetime as the readback target. GetDIBits balks at using Go memory on
// some systems, so the buffer comes from GlobalAlloc as in the MSDN
// capture example; it is exposed to Go through unsafe.Slice.
type gdiPool struct {
	screenDC win.HDC
	memDC    win.HDC
	bitmap   win.HBITMAP
	prevObj  win.HGDIOBJ
	hDIB     win.HGLOBAL
	bits     unsafe.Pointer
	buf      []byte

	width  int
	height int
	pf     PixelFormat
	empty  bool
	log    *slog.Logger
}

func newSurfacePool(display, width, height int, log *slog.Logger) (surfacePool, error) {
	rects, err := enumDisplayRects()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMonitor, err)
	}
	if display >= len(rects) {
		return nil, fmt.Errorf("%w: index %d, %d displays", ErrInvalidMonitor, display, len(rects))
	}

	screenDC := win.GetDC(0)
	if screenDC == 0 {
		return nil, fmt.Errorf("%w: GetDC failed", ErrResourceExhausted)
	}

	p := &gdiPool{screenDC: screenDC, empty: true, log: log}
	depth := int(win.GetDeviceCaps(screenDC, win.BITSPIXEL))
	if depth <= 0 {
		depth = 32
	}
	p.pf = PixelFormat{BitsPerPixel: depth, Order: OrderBGRA}

	if err := p.reallocate(width, height); err != nil {
		win.ReleaseDC(0, screenDC)
		return nil, err
	}
	return p, nil
}

func (p *gdiPool) reallocate(width, height int) error {
	p.releaseSurfaces()

	memDC := win.CreateCompatibleDC(p.screenDC)
	if memDC == 0 {
		return fmt.Errorf("%w: CreateCompatibleDC for %dx%d", ErrResourceExhausted, width, height)
	}
	bitmap := win.CreateCompatibleBitmap(p.screenDC, int32(width), int32(height))
	if bitmap == 0 {
		win.DeleteDC(memDC)
		return fmt.Errorf("%w: CreateCompatibleBitmap for %dx%d", ErrResourceExhausted, width, height)
	}
	prevObj := win.SelectObject(memDC, win.HGDIOBJ(bitmap))
	if prevObj == 0 {
		win.DeleteObject(win.HGDIOBJ(bitmap))
		win.DeleteDC(memDC)
		return fmt.Errorf("%w: SelectObject for %dx%d", ErrResourceExhausted, width, height)
	}

	// DIB rows are padded to a 4-byte boundary.
	stride := ((width*p.pf.BitsPerPixel + 31) / 32) * 4
	size := stride * height

	hDIB := win.GlobalAlloc(win.GMEM_MOVEABLE, uintptr(size))
	if hDIB == 0 {
		win.SelectObject(memDC, prevObj)
		win.DeleteObject(win.HGDIOBJ(bitmap))
		win.DeleteDC(memDC)
		return fmt.Errorf("%w: GlobalAlloc of %d bytes", ErrResourceExhausted, size)
	}
	bits := win.GlobalLock(hDIB)
	if bits == nil {
		win.GlobalFree(hDIB)
		win.SelectObject(memDC, prevObj)
		win.DeleteObject(win.HGDIOBJ(bitmap))
		win.DeleteDC(memDC)
		return fmt.Errorf("%w: GlobalLock of %d bytes", ErrResourceExhausted, size)
	}

	p.memDC = memDC
	p.bitmap = bitmap
	p.prevObj = prevObj
	p.hDIB = hDIB
	p.bits = bits
	p.buf = unsafe.Slice((*byte)(bits), size)
	p.width, p.height = width, height
	p.pf.Stride = stride
	p.empty = false
	p.log.Debug("gdi surfaces allocated", "width", width, "height", height, "stride", stride)
	return nil
}

func (p *gdiPool) blitAndRead(x, y int) ([]byte, error) {
	if p.empty {
		return nil, fmt.Errorf("%w: pool is empty", ErrNotReady)
	}

	if !win.BitBlt(p.memDC,
		0, 0,
		int32(p.width), int32(p.height),
		p.screenDC,
		int32(x), int32(y),
		win.SRCCOPY) {
		return nil, fmt.Errorf("BitBlt of %dx%d at (%d,%d): %w",
			p.width, p.height, x, y, errors.Join(ErrBlitFailed, windows.GetLastError()))
	}

	var bi win.BITMAPINFOHEADER
	bi.BiSize = uint32(unsafe.Sizeof(bi))
	bi.BiWidth = int32(p.width)
	bi.BiHeight = int32(-p.height) // top-down
	bi.BiPlanes = 1
	bi.BiBitCount = uint16(p.pf.BitsPerPixel)
	bi.BiCompression = win.BI_RGB

	if win.GetDIBits(p.screenDC, p.bitmap,
		0,
		uint32(p.height),
		(*uint8)(p.bits),
		(*win.BITMAPINFO)(unsafe.Pointer(&bi)),
		win.DIB_RGB_COLORS) == 0 {
		return nil, fmt.Errorf("GetDIBits of %d rows: %w",
			p.height, errors.Join(ErrBlitFailed, windows.GetLastError()))
	}
	return p.buf, nil
}

func (p *gdiPool) format() PixelFormat { return p.pf }

// releaseSurfaces drops the destination surface, bitmap and buffer in
// reverse acquisition order and marks the pool empty. The shared screen DC
// stays untouched.
func (p *gdiPool) releaseSurfaces() {
	if p.empty {
		return
	}
	win.GlobalUnlock(p.hDIB)
	win.GlobalFree(p.hDIB)
	win.SelectObject(p.memDC, p.prevObj)
	win.DeleteObject(win.HGDIOBJ(p.bitmap))
	win.DeleteDC(p.memDC)
	p.hDIB, p.bits, p.buf = 0, nil, nil
	p.memDC, p.bitmap, p.prevObj = 0, 0, 0
	p.empty = true
	p.log.Debug("gdi surfaces released")
}

func (p *gdiPool) release() {
	p.releaseSurfaces()
	if p.screenDC != 0 {
		win.ReleaseDC(0, p.screenDC)
		p.screenDC = 0
	}
}

// NumActiveDisplays returns the number of active displays.
func NumActiveDisplays() int {
	rects, err := enumDisplayRects()
	if err != nil {
		return 0
	}
	return len(rects)
}

// GetDisplayBounds returns the bounds of displayIndex'th display in
// virtual-desktop coordinates. The main display starts at index 0.
func GetDisplayBounds(displayIndex int) (image.Rectangle, error) {
	rects, err := enumDisplayRects()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %v", ErrInvalidMonitor, err)
	}
	if displayIndex < 0 || displayIndex >= len(rects) {
		return image.Rectangle{}, fmt.Errorf("%w: index %d, %d displays", ErrInvalidMonitor, displayIndex, len(rects))
	}
	return rects[displayIndex], nil
}

// enumDisplayContext collects monitor bounds across invocations of the
// shared enumeration callback; it travels through the dwData pointer.
type enumDisplayContext struct {
	rects []image.Rectangle
}

func appendDisplayRect(hMonitor win.HMONITOR, hdcMonitor win.HDC, lprcMonitor *win.RECT, dwData uintptr) uintptr {
	ctx := (*enumDisplayContext)(unsafe.Pointer(dwData))
	r := *lprcMonitor
	if realSize := getMonitorRealSize(hMonitor); realSize != nil {
		r = *realSize
	}
	ctx.rects = append(ctx.rects, image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)))
	return 1
}

func enumDisplayRects() ([]image.Rectangle, error) {
	ctx := new(enumDisplayContext)
	pinner := new(runtime.Pinner)
	pinner.Pin(ctx)
	defer pinner.Unpin()

	if !enumDisplayMonitors(win.HDC(0), nil, enumDisplayCallback, uintptr(unsafe.Pointer(ctx))) {
		return nil, errors.New("EnumDisplayMonitors failed")
	}
	return ctx.rects, nil
}

type _MONITORINFOEX struct {
	win.MONITORINFO
	DeviceName [win.CCHDEVICENAME]uint16
}

const _ENUM_CURRENT_SETTINGS = 0xFFFFFFFF

type _DEVMODE struct {
	_            [68]byte
	DmSize       uint16
	_            [6]byte
	DmPosition   win.POINT
	_            [86]byte
	DmPelsWidth  uint32
	DmPelsHeight uint32
	_            [40]byte
}

// getMonitorRealSize resolves the monitor's device name with
// GetMonitorInfo and asks EnumDisplaySettings for the current mode, which
// carries the monitor's real resolution rather than the DPI-scaled bounds
// EnumDisplayMonitors reports. Returns nil when either call fails, in
// which case the caller keeps the enumerated bounds.
func getMonitorRealSize(hMonitor win.HMONITOR) *win.RECT {
	info := _MONITORINFOEX{}
	info.CbSize = uint32(unsafe.Sizeof(info))

	ret, _, _ := syscall.SyscallN(funcGetMonitorInfo, uintptr(hMonitor), uintptr(unsafe.Pointer(&info)), 0)
	if ret == 0 {
		return nil
	}

	devMode := _DEVMODE{}
	devMode.DmSize = uint16(unsafe.Sizeof(devMode))

	if ret, _, _ := syscall.SyscallN(funcEnumDisplaySettings, uintptr(unsafe.Pointer(&info.DeviceName[0])), _ENUM_CURRENT_SETTINGS, uintptr(unsafe.Pointer(&devMode))); ret == 0 {
		return nil
	}

	return &win.RECT{
		Left:   devMode.DmPosition.X,
		Top:    devMode.DmPosition.Y,
		Right:  devMode.DmPosition.X + int32(devMode.DmPelsWidth),
		Bottom: devMode.DmPosition.Y + int32(devMode.DmPelsHeight),
	}
}

func enumDisplayMonitors(hdc win.HDC, lprcClip *win.RECT, lpfnEnum uintptr, dwData uintptr) bool {
	ret, _, _ := syscall.SyscallN(funcEnumDisplayMonitors,
		uintptr(hdc),
		uintptr(unsafe.Pointer(lprcClip)),
		lpfnEnum,
		dwData,
		0,
		0)
	return int(ret) != 0
}
