package x11

import (
	"slices"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// WindowEvents receives lifecycle notifications for a watched window. Nil
// callbacks are skipped. Callbacks run on the EventLoop goroutine.
//
// Iconify and Hidden arrive while the window is still viewable: Iconify is
// the client's WM_CHANGE_STATE request to the window manager, Hidden tracks
// _NET_WM_STATE_HIDDEN. Unmap only arrives once the window is gone.
type WindowEvents struct {
	Focus   func(hasFocus bool)
	Iconify func()
	Hidden  func(hidden bool)
	Unmap   func()
	Map     func()
	Destroy func()
}

// WatchWindow selects structure, focus and property events on windowID and
// routes them to ev. Iconify requests are caught on the root window.
func (c *Connection) WatchWindow(windowID xproto.Window, ev WindowEvents) error {
	win := xwindow.New(c.XUtil, windowID)
	if err := win.Listen(xproto.EventMaskStructureNotify, xproto.EventMaskFocusChange,
		xproto.EventMaskPropertyChange); err != nil {
		return err
	}

	if ev.Focus != nil {
		xevent.FocusInFun(func(xu *xgbutil.XUtil, e xevent.FocusInEvent) {
			if focusRelevant(e.Mode, e.Detail) {
				ev.Focus(true)
			}
		}).Connect(c.XUtil, windowID)
		xevent.FocusOutFun(func(xu *xgbutil.XUtil, e xevent.FocusOutEvent) {
			if focusRelevant(e.Mode, e.Detail) {
				ev.Focus(false)
			}
		}).Connect(c.XUtil, windowID)
	}

	if ev.Hidden != nil {
		stateAtom, err := xprop.Atm(c.XUtil, "_NET_WM_STATE")
		if err != nil {
			return err
		}
		xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, e xevent.PropertyNotifyEvent) {
			if e.Window != windowID || e.Atom != stateAtom {
				return
			}
			states, _ := ewmh.WmStateGet(xu, windowID)
			ev.Hidden(hiddenState(states))
		}).Connect(c.XUtil, windowID)
	}

	if ev.Iconify != nil {
		changeState, err := xprop.Atm(c.XUtil, "WM_CHANGE_STATE")
		if err != nil {
			return err
		}
		// The request is sent to the root with substructure masks, so any
		// client listening there sees it before the window manager acts.
		root := xwindow.New(c.XUtil, c.Root)
		if err := root.Listen(xproto.EventMaskSubstructureNotify); err != nil {
			return err
		}
		xevent.ClientMessageFun(func(xu *xgbutil.XUtil, e xevent.ClientMessageEvent) {
			if iconifyRequest(*e.ClientMessageEvent, windowID, changeState) {
				ev.Iconify()
			}
		}).Connect(c.XUtil, c.Root)
	}

	// StructureNotify also reports on children; only the window itself counts.
	if ev.Unmap != nil {
		xevent.UnmapNotifyFun(func(xu *xgbutil.XUtil, e xevent.UnmapNotifyEvent) {
			if e.Window == windowID {
				ev.Unmap()
			}
		}).Connect(c.XUtil, windowID)
	}
	if ev.Map != nil {
		xevent.MapNotifyFun(func(xu *xgbutil.XUtil, e xevent.MapNotifyEvent) {
			if e.Window == windowID {
				ev.Map()
			}
		}).Connect(c.XUtil, windowID)
	}
	xevent.DestroyNotifyFun(func(xu *xgbutil.XUtil, e xevent.DestroyNotifyEvent) {
		if e.Window != windowID {
			return
		}
		xevent.Detach(xu, windowID)
		xevent.Detach(xu, c.Root)
		if ev.Destroy != nil {
			ev.Destroy()
		}
	}).Connect(c.XUtil, windowID)

	return nil
}

func hiddenState(states []string) bool {
	return slices.Contains(states, "_NET_WM_STATE_HIDDEN")
}

// iconifyRequest reports whether e is an ICCCM WM_CHANGE_STATE request to
// iconify win.
func iconifyRequest(e xproto.ClientMessageEvent, win xproto.Window, changeState xproto.Atom) bool {
	if e.Window != win || e.Type != changeState || e.Format != 32 {
		return false
	}
	data := e.Data.Data32
	return len(data) > 0 && data[0] == icccm.StateIconic
}

// focusRelevant filters out focus changes caused by keyboard grabs and
// pointer-only notifications.
func focusRelevant(mode, detail byte) bool {
	switch mode {
	case xproto.NotifyModeGrab, xproto.NotifyModeUngrab:
		return false
	}
	switch detail {
	case xproto.NotifyDetailPointer, xproto.NotifyDetailInferior:
		return false
	}
	return true
}
