//go:build linux || freebsd || netbsd || openbsd

package screengrab

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/gen2brain/shm"
	"github.com/jezek/xgb"
	mshm "github.com/jezek/xgb/shm"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
)

// x11Pool is the X11 surface pool. The destination surface is a server-side
// Pixmap at root depth with a GC bound to it; the blit is a CopyArea from
// the root window. Readback goes through MIT-SHM GetImage into a SysV
// shared segment that doubles as the reusable pixel buffer, so repeated
// captures move pixels exactly once. When the extension is unavailable
// (remote displays, some nested servers) plain GetImage replies are copied
// into a heap buffer instead.
type x11Pool struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo

	pixmap xproto.Pixmap
	gc     xproto.Gcontext

	shmAvail bool // MIT-SHM extension present
	useShm   bool // current buffer is a shared segment
	shmSeg   mshm.Seg
	shmID    int
	shmData  []byte
	buf      []byte

	width  int
	height int
	pf     PixelFormat
	pad    int
	empty  bool
	log    *slog.Logger
}

func newX11Pool(display, width, height int, log *slog.Logger) (surfacePool, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: connecting X display: %v", ErrInvalidMonitor, err)
	}

	heads := x11Heads(conn)
	if display >= len(heads) {
		conn.Close()
		return nil, fmt.Errorf("%w: index %d, %d displays", ErrInvalidMonitor, display, len(heads))
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	p := &x11Pool{
		conn:     conn,
		screen:   screen,
		shmAvail: mshm.Init(conn) == nil,
		empty:    true,
		log:      log,
	}

	bpp, pad := 32, 32
	for _, f := range setup.PixmapFormats {
		if f.Depth == screen.RootDepth {
			bpp, pad = int(f.BitsPerPixel), int(f.ScanlinePad)
			break
		}
	}
	p.pf = PixelFormat{BitsPerPixel: bpp, Order: OrderBGRA}
	p.pad = pad

	if err := p.reallocate(width, height); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *x11Pool) reallocate(width, height int) error {
	p.releaseSurfaces()

	pixmap, err := xproto.NewPixmapId(p.conn)
	if err != nil {
		return fmt.Errorf("%w: pixmap id: %v", ErrResourceExhausted, err)
	}
	err = xproto.CreatePixmapChecked(p.conn, p.screen.RootDepth, pixmap,
		xproto.Drawable(p.screen.Root), uint16(width), uint16(height)).Check()
	if err != nil {
		return fmt.Errorf("%w: CreatePixmap %dx%d: %v", ErrResourceExhausted, width, height, err)
	}

	gc, err := xproto.NewGcontextId(p.conn)
	if err != nil {
		xproto.FreePixmap(p.conn, pixmap)
		return fmt.Errorf("%w: gcontext id: %v", ErrResourceExhausted, err)
	}
	err = xproto.CreateGCChecked(p.conn, gc, xproto.Drawable(pixmap), 0, nil).Check()
	if err != nil {
		xproto.FreePixmap(p.conn, pixmap)
		return fmt.Errorf("%w: CreateGC: %v", ErrResourceExhausted, err)
	}

	stride := ((width*p.pf.BitsPerPixel + p.pad - 1) / p.pad) * (p.pad / 8)
	size := stride * height

	useShm := p.shmAvail
	if useShm {
		if err := p.attachShm(size); err != nil {
			// SysV limits can reject large segments; plain GetImage still works.
			p.log.Warn("shm attach failed, using GetImage replies", "size", size, "err", err)
			useShm = false
		}
	}
	if !useShm {
		p.buf = make([]byte, size)
	}

	p.pixmap = pixmap
	p.gc = gc
	p.useShm = useShm
	p.width, p.height = width, height
	p.pf.Stride = stride
	p.empty = false
	p.log.Debug("x11 surfaces allocated",
		"width", width, "height", height, "stride", stride, "shm", useShm)
	return nil
}

func (p *x11Pool) attachShm(size int) error {
	shmID, err := shm.Get(shm.IPC_PRIVATE, size, shm.IPC_CREAT|0777)
	if err != nil {
		return fmt.Errorf("shmget: %w", err)
	}
	data, err := shm.At(shmID, 0, 0)
	if err != nil {
		shm.Rm(shmID)
		return fmt.Errorf("shmat: %w", err)
	}
	seg, err := mshm.NewSegId(p.conn)
	if err != nil {
		shm.Dt(data)
		shm.Rm(shmID)
		return fmt.Errorf("shm seg id: %w", err)
	}
	if err := mshm.AttachChecked(p.conn, seg, uint32(shmID), false).Check(); err != nil {
		shm.Dt(data)
		shm.Rm(shmID)
		return fmt.Errorf("shm attach: %w", err)
	}
	p.shmSeg = seg
	p.shmID = shmID
	p.shmData = data
	p.buf = data[:size]
	return nil
}

func (p *x11Pool) blitAndRead(x, y int) ([]byte, error) {
	if p.empty {
		return nil, fmt.Errorf("%w: pool is empty", ErrNotReady)
	}

	err := xproto.CopyAreaChecked(p.conn,
		xproto.Drawable(p.screen.Root), xproto.Drawable(p.pixmap), p.gc,
		int16(x), int16(y),
		0, 0,
		uint16(p.width), uint16(p.height)).Check()
	if err != nil {
		return nil, fmt.Errorf("CopyArea of %dx%d at (%d,%d): %v: %w",
			p.width, p.height, x, y, err, ErrBlitFailed)
	}

	if p.useShm {
		_, err := mshm.GetImage(p.conn, xproto.Drawable(p.pixmap),
			0, 0,
			uint16(p.width), uint16(p.height),
			0xffffffff,
			byte(xproto.ImageFormatZPixmap),
			p.shmSeg, 0).Reply()
		if err != nil {
			return nil, fmt.Errorf("shm GetImage: %v: %w", err, ErrBlitFailed)
		}
		return p.buf, nil
	}

	xi, err := xproto.GetImage(p.conn, xproto.ImageFormatZPixmap,
		xproto.Drawable(p.pixmap),
		0, 0,
		uint16(p.width), uint16(p.height),
		0xffffffff).Reply()
	if err != nil {
		return nil, fmt.Errorf("GetImage: %v: %w", err, ErrBlitFailed)
	}
	copy(p.buf, xi.Data)
	return p.buf, nil
}

func (p *x11Pool) format() PixelFormat { return p.pf }

// releaseSurfaces drops the pixmap, GC and buffer in reverse acquisition
// order and marks the pool empty. The X connection stays open.
func (p *x11Pool) releaseSurfaces() {
	if p.empty {
		return
	}
	if p.useShm {
		mshm.Detach(p.conn, p.shmSeg)
		shm.Dt(p.shmData)
		shm.Rm(p.shmID)
		p.shmData = nil
	}
	xproto.FreeGC(p.conn, p.gc)
	xproto.FreePixmap(p.conn, p.pixmap)
	p.pixmap, p.gc = 0, 0
	p.buf = nil
	p.empty = true
	p.log.Debug("x11 surfaces released")
}

func (p *x11Pool) release() {
	p.releaseSurfaces()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// x11Heads returns the bounds of every display head, via Xinerama when the
// extension answers and the root window geometry otherwise.
func x11Heads(conn *xgb.Conn) []image.Rectangle {
	if xinerama.Init(conn) == nil {
		if reply, err := xinerama.QueryScreens(conn).Reply(); err == nil && len(reply.ScreenInfo) > 0 {
			heads := make([]image.Rectangle, 0, len(reply.ScreenInfo))
			for _, s := range reply.ScreenInfo {
				heads = append(heads, image.Rect(
					int(s.XOrg), int(s.YOrg),
					int(s.XOrg)+int(s.Width), int(s.YOrg)+int(s.Height)))
			}
			return heads
		}
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	return []image.Rectangle{image.Rect(0, 0, int(screen.WidthInPixels), int(screen.HeightInPixels))}
}

// NumActiveDisplays returns the number of active displays, or 0 when no X
// server is reachable.
func NumActiveDisplays() int {
	conn, err := xgb.NewConn()
	if err != nil {
		return 0
	}
	defer conn.Close()
	return len(x11Heads(conn))
}

// GetDisplayBounds returns the bounds of displayIndex'th display in
// virtual-desktop coordinates. The main display starts at index 0.
func GetDisplayBounds(displayIndex int) (image.Rectangle, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: connecting X display: %v", ErrInvalidMonitor, err)
	}
	defer conn.Close()

	heads := x11Heads(conn)
	if displayIndex < 0 || displayIndex >= len(heads) {
		return image.Rectangle{}, fmt.Errorf("%w: index %d, %d displays", ErrInvalidMonitor, displayIndex, len(heads))
	}
	return heads[displayIndex], nil
}
