package x11

import (
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	randrOK bool
}

// NewConnection establishes a connection to the X11 server named by display
// (empty means $DISPLAY) and initializes RandR when the server offers it.
func NewConnection(display string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}
	// Without RandR, monitor and rate queries return ErrNoRandR.
	if err := randr.Init(xu.Conn()); err == nil {
		c.randrOK = true
	}
	return c, nil
}

// EventLoop starts the main X11 event loop (blocking)
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops a running EventLoop. The loop only checks for quit between
// events, so a ClientMessage is delivered to a private window to wake it.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)

	conn := c.XUtil.Conn()
	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return
	}
	err = xproto.CreateWindowChecked(conn, 0, wid, c.Root, -1, -1, 1, 1, 0,
		xproto.WindowClassInputOnly, 0, 0, nil).Check()
	if err != nil {
		return
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: wid,
		Data:   xproto.ClientMessageDataUnionData32New(make([]uint32, 5)),
	}
	// An empty event mask sends the event to the window's creator.
	xproto.SendEvent(conn, false, wid, 0, string(ev.Bytes()))
	xproto.DestroyWindow(conn, wid)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// maxRequestBytes is the largest request the server accepts, in bytes.
func (c *Connection) maxRequestBytes() int {
	setup := xproto.Setup(c.XUtil.Conn())
	return int(setup.MaximumRequestLength) * 4
}

// lsbFirst reports whether the server sends image data least significant
// byte first.
func (c *Connection) lsbFirst() bool {
	return xproto.Setup(c.XUtil.Conn()).ImageByteOrder == xproto.ImageOrderLSBFirst
}
