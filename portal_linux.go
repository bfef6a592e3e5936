//go:build linux

package screengrab

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest   = "org.freedesktop.portal.Desktop"
	portalPath   = "/org/freedesktop/portal/desktop"
	portalMethod = "org.freedesktop.portal.Screenshot.Screenshot"
	portalWait   = 30 * time.Second
)

// portalPool captures through the org.freedesktop.portal.Screenshot D-Bus
// interface on Wayland sessions, where no client may read the display
// directly. Every blit asks the portal for a full-desktop PNG and crops the
// session region into the reused buffer, so this path is slow compared to
// GDI or X11 but keeps the session semantics intact. The session bus is
// process-wide shared state and is never closed by the pool.
type portalPool struct {
	conn *dbus.Conn
	buf  []byte

	width  int
	height int
	pf     PixelFormat
	empty  bool
	log    *slog.Logger
}

func newPortalPool(display, width, height int, log *slog.Logger) (surfacePool, error) {
	// The portal exposes the composited desktop as a single surface.
	if display != 0 {
		return nil, fmt.Errorf("%w: index %d, portal exposes 1 display", ErrInvalidMonitor, display)
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", ErrInvalidMonitor, err)
	}

	p := &portalPool{
		conn:  conn,
		pf:    PixelFormat{BitsPerPixel: 32, Order: OrderRGBA},
		empty: true,
		log:   log,
	}
	if err := p.reallocate(width, height); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *portalPool) reallocate(width, height int) error {
	p.buf = nil
	p.empty = true

	stride := width * 4
	p.buf = make([]byte, stride*height)
	p.width, p.height = width, height
	p.pf.Stride = stride
	p.empty = false
	p.log.Debug("portal buffer allocated", "width", width, "height", height, "stride", stride)
	return nil
}

func (p *portalPool) blitAndRead(x, y int) ([]byte, error) {
	if p.empty {
		return nil, fmt.Errorf("%w: pool is empty", ErrNotReady)
	}

	img, err := p.screenshot()
	if err != nil {
		return nil, err
	}

	region := image.Rect(x, y, x+p.width, y+p.height)
	if !region.In(img.Bounds()) {
		return nil, fmt.Errorf("region %v outside desktop %v: %w", region, img.Bounds(), ErrBlitFailed)
	}

	dst := &image.RGBA{Pix: p.buf, Stride: p.pf.Stride, Rect: image.Rect(0, 0, p.width, p.height)}
	draw.Draw(dst, dst.Rect, img, region.Min, draw.Src)
	return p.buf, nil
}

func (p *portalPool) format() PixelFormat { return p.pf }

func (p *portalPool) release() {
	p.buf = nil
	p.empty = true
	p.log.Debug("portal buffer released")
}

// screenshot requests one full-desktop frame from the portal and decodes
// the PNG it hands back. The response arrives as a Response signal on a
// request object whose path is derivable from our unique bus name and the
// handle token, so the match is registered before the method call to avoid
// missing a fast reply.
func (p *portalPool) screenshot() (image.Image, error) {
	token := fmt.Sprintf("screengrab%d", time.Now().UnixNano())
	sender := strings.NewReplacer(":", "", ".", "_").Replace(p.conn.Names()[0])
	requestPath := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/portal/desktop/request/%s/%s", sender, token))

	matchOpts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(requestPath),
		dbus.WithMatchInterface("org.freedesktop.portal.Request"),
		dbus.WithMatchMember("Response"),
	}
	if err := p.conn.AddMatchSignal(matchOpts...); err != nil {
		return nil, fmt.Errorf("portal match: %v: %w", err, ErrBlitFailed)
	}
	defer p.conn.RemoveMatchSignal(matchOpts...)

	signals := make(chan *dbus.Signal, 4)
	p.conn.Signal(signals)
	defer p.conn.RemoveSignal(signals)

	opts := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"interactive":  dbus.MakeVariant(false),
	}
	call := p.conn.Object(portalDest, portalPath).Call(portalMethod, 0, "", opts)
	if call.Err != nil {
		return nil, fmt.Errorf("portal call: %v: %w", call.Err, ErrBlitFailed)
	}

	deadline := time.NewTimer(portalWait)
	defer deadline.Stop()
	for {
		select {
		case sig := <-signals:
			if sig.Path != requestPath || len(sig.Body) < 2 {
				continue
			}
			code, _ := sig.Body[0].(uint32)
			if code != 0 {
				return nil, fmt.Errorf("portal response code %d: %w", code, ErrBlitFailed)
			}
			results, _ := sig.Body[1].(map[string]dbus.Variant)
			uri, _ := results["uri"].Value().(string)
			return p.readShot(uri)
		case <-deadline.C:
			return nil, fmt.Errorf("portal response timed out after %v: %w", portalWait, ErrBlitFailed)
		}
	}
}

func (p *portalPool) readShot(uri string) (image.Image, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("portal uri %q: %w", uri, ErrBlitFailed)
	}

	f, err := os.Open(u.Path)
	if err != nil {
		return nil, fmt.Errorf("portal file: %v: %w", err, ErrBlitFailed)
	}
	defer func() {
		f.Close()
		// The portal drops one file per request into the user's pictures
		// directory; remove it so high-frequency capture does not fill it.
		os.Remove(u.Path)
	}()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("portal png: %v: %w", err, ErrBlitFailed)
	}
	return img, nil
}

// waylandSession reports whether the process runs under a Wayland
// compositor, where the X11 path only works when XWayland is present.
func waylandSession() bool {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return true
	}
	return strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "wayland")
}
