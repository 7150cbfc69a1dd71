package x11

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
)

// EWMH state atoms the host window policy toggles.
const (
	StateFullscreen = "_NET_WM_STATE_FULLSCREEN"
	StateAbove      = "_NET_WM_STATE_ABOVE"
)

const (
	stateRemove = 0
	stateAdd    = 1
)

// FindWindowByTitle searches the EWMH client list for a window whose
// _NET_WM_NAME contains the given substring. Returns the first match.
func (c *Connection) FindWindowByTitle(substring string) (xproto.Window, error) {
	if substring == "" {
		return 0, fmt.Errorf("empty window title")
	}
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get client list: %w", err)
	}
	for _, win := range clients {
		name, err := ewmh.WmNameGet(c.XUtil, win)
		if err != nil {
			name, err = icccm.WmNameGet(c.XUtil, win)
			if err != nil {
				continue
			}
		}
		if strings.Contains(name, substring) {
			return win, nil
		}
	}
	return 0, fmt.Errorf("no window found with title containing %q", substring)
}

// WindowGeometry returns the window rectangle in root coordinates.
func (c *Connection) WindowGeometry(windowID xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), nil
}

// IsViewable reports whether the window and all its ancestors are mapped.
func (c *Connection) IsViewable(windowID xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}

// WindowClass returns the WM_CLASS class and instance names.
func (c *Connection) WindowClass(windowID xproto.Window) (class, instance string) {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(wmClass.Class), strings.TrimSpace(wmClass.Instance)
}

// Children lists direct children in stacking order, bottom first.
func (c *Connection) Children(windowID xproto.Window) ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return nil, err
	}
	return tree.Children, nil
}

// SetWMState adds or removes an _NET_WM_STATE atom. The request is skipped
// when the window already has the wanted state.
func (c *Connection) SetWMState(windowID xproto.Window, state string, on bool) error {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err == nil && slices.Contains(states, state) == on {
		return nil
	}
	action := stateRemove
	if on {
		action = stateAdd
	}
	if err := ewmh.WmStateReq(c.XUtil, windowID, action, state); err != nil {
		return fmt.Errorf("failed to request %s: %w", state, err)
	}
	return nil
}

// SetCardinal publishes a single CARDINAL property on the window.
func (c *Connection) SetCardinal(windowID xproto.Window, prop string, value uint32) error {
	if err := xprop.ChangeProp32(c.XUtil, windowID, prop, "CARDINAL", uint(value)); err != nil {
		return fmt.Errorf("failed to set %s: %w", prop, err)
	}
	return nil
}

// Cardinal reads back a single CARDINAL property.
func (c *Connection) Cardinal(windowID xproto.Window, prop string) (uint32, error) {
	v, err := xprop.PropValNum(xprop.GetProperty(c.XUtil, windowID, prop))
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
