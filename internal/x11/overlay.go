package x11

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/unmhost/internal/frame"
)

// Overlay is a child window of the host stacked above the render surface, so
// it is hidden and shown together with the host. It shows either a scaled
// snapshot or an opaque black background.
type Overlay struct {
	conn   *Connection
	host   xproto.Window
	win    *xwindow.Window
	gc     xproto.Gcontext
	pixmap xproto.Pixmap
	depth  byte
	black  uint32
	width  int
	height int
	logger *slog.Logger
}

// NewOverlay creates the overlay window, unmapped, inside host.
func (c *Connection) NewOverlay(host xproto.Window, logger *slog.Logger) (*Overlay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	win, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate overlay window: %w", err)
	}
	// Border and colormap are explicit so a host with a non-root visual
	// does not make creation fail with BadMatch.
	screen := c.XUtil.Screen()
	black := screen.BlackPixel
	if err := win.CreateChecked(host, 0, 0, 1, 1,
		xproto.CwBackPixel|xproto.CwBorderPixel|xproto.CwColormap,
		black, black, uint32(screen.DefaultColormap)); err != nil {
		return nil, fmt.Errorf("failed to create overlay window: %w", err)
	}

	conn := c.XUtil.Conn()
	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		win.Destroy()
		return nil, err
	}
	if err := xproto.CreateGCChecked(conn, gc, xproto.Drawable(win.Id),
		xproto.GcGraphicsExposures, []uint32{0}).Check(); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to create overlay gc: %w", err)
	}

	o := &Overlay{
		conn:   c,
		host:   host,
		win:    win,
		gc:     gc,
		depth:  c.XUtil.Screen().RootDepth,
		black:  black,
		logger: logger,
	}
	o.fitToHost()
	return o, nil
}

// Window returns the overlay's X window ID.
func (o *Overlay) Window() xproto.Window {
	return o.win.Id
}

// fitToHost sizes the overlay to cover the host window's client area.
func (o *Overlay) fitToHost() {
	geom, err := xproto.GetGeometry(o.conn.XUtil.Conn(), xproto.Drawable(o.host)).Reply()
	if err != nil {
		o.logger.Debug("overlay: host geometry unavailable", "error", err)
		return
	}
	o.width, o.height = max(int(geom.Width), 1), max(int(geom.Height), 1)
	o.win.MoveResize(0, 0, o.width, o.height)
}

// SetImage uploads f stretched to the overlay size. A nil frame shows the
// black background. The frame is copied; no reference is kept.
func (o *Overlay) SetImage(f *frame.Frame) {
	o.fitToHost()
	o.freePixmap()

	if f != nil {
		if err := o.upload(f); err != nil {
			o.logger.Warn("overlay: image upload failed, showing background", "error", err)
			o.freePixmap()
		}
	}
	mask, values := backgroundValues(o.pixmap, o.black)
	o.win.Change(mask, values...)
	o.win.ClearAll()
}

// backgroundValues selects the window background: the snapshot pixmap, or
// the screen's black pixel when there is none. Values follow mask bit order.
func backgroundValues(pixmap xproto.Pixmap, black uint32) (int, []uint32) {
	if pixmap == 0 {
		return xproto.CwBackPixmap | xproto.CwBackPixel, []uint32{xproto.BackPixmapNone, black}
	}
	return xproto.CwBackPixmap, []uint32{uint32(pixmap)}
}

func (o *Overlay) upload(f *frame.Frame) error {
	scaled, err := f.ScaleTo(o.width, o.height)
	if err != nil {
		return err
	}

	conn := o.conn.XUtil.Conn()
	pid, err := xproto.NewPixmapId(conn)
	if err != nil {
		return err
	}
	if err := xproto.CreatePixmapChecked(conn, o.depth, pid, xproto.Drawable(o.win.Id),
		uint16(o.width), uint16(o.height)).Check(); err != nil {
		return fmt.Errorf("create pixmap: %w", err)
	}
	o.pixmap = pid

	stride := o.width * 4
	data := make([]byte, stride*o.height)
	rgbaToZPixmap(data, scaled.Pix, o.width*o.height, o.conn.lsbFirst())

	rows := rowsPerRequest(o.width, o.conn.maxRequestBytes())
	for y := 0; y < o.height; y += rows {
		n := min(rows, o.height-y)
		xproto.PutImage(conn, xproto.ImageFormatZPixmap, xproto.Drawable(pid), o.gc,
			uint16(o.width), uint16(n), 0, int16(y), 0, o.depth,
			data[y*stride:(y+n)*stride])
	}
	return nil
}

// SetAlpha sets the opacity hint, clamped to [0, 1]. Compositors apply it to
// top-level frames; inside the host it takes effect where nested opacity is
// honoured, and the overlay is unmapped when the fade ends either way.
func (o *Overlay) SetAlpha(alpha float64) {
	alpha = min(max(alpha, 0), 1)
	if err := ewmh.WmWindowOpacitySet(o.conn.XUtil, o.win.Id, alpha); err != nil {
		o.logger.Debug("overlay: opacity update failed", "alpha", alpha, "error", err)
	}
}

// SetVisible maps the overlay above its siblings (the render surface), or
// unmaps it.
func (o *Overlay) SetVisible(visible bool) {
	if !visible {
		o.win.Unmap()
		return
	}
	o.fitToHost()
	o.win.Map()
	o.win.Stack(xproto.StackModeAbove)
}

func (o *Overlay) freePixmap() {
	if o.pixmap == 0 {
		return
	}
	xproto.FreePixmap(o.conn.XUtil.Conn(), o.pixmap)
	o.pixmap = 0
}

// Destroy frees the pixmap, GC and window.
func (o *Overlay) Destroy() {
	o.freePixmap()
	xproto.FreeGC(o.conn.XUtil.Conn(), o.gc)
	o.win.Destroy()
}
