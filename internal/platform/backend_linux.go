//go:build linux

package platform

import (
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/unmhost/internal/hostevent"
	"github.com/1broseidon/unmhost/internal/viewtree"
	"github.com/1broseidon/unmhost/internal/x11"
)

// Properties published on the host window for the engine and compositor.
const (
	PropSystemUI   = "_UNMHOST_SYSTEM_UI"
	PropCutoutMode = "_UNMHOST_CUTOUT_MODE"
)

// LinuxOptions configure the X11 backend.
type LinuxOptions struct {
	Display      string
	WindowTitle  string
	SurfaceClass string
	Logger       *slog.Logger
}

// windowEventSource delivers raw window notifications. *x11.Connection
// implements it.
type windowEventSource interface {
	WatchWindow(win xproto.Window, ev x11.WindowEvents) error
}

// LinuxBackend drives an existing host window over X11.
type LinuxBackend struct {
	conn         *x11.Connection
	events       windowEventSource
	host         xproto.Window
	surfaceClass string
	overlay      *x11.Overlay
	logger       *slog.Logger
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend connects to the display, finds the host window by title and
// creates the overlay above it.
func NewLinuxBackend(opts LinuxOptions) (*LinuxBackend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := x11.NewConnection(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}

	host, err := conn.FindWindowByTitle(opts.WindowTitle)
	if err != nil {
		conn.Close()
		return nil, err
	}

	overlay, err := conn.NewOverlay(host, logger.With("component", "overlay"))
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("attached to host window", "window", uint32(host), "title", opts.WindowTitle)
	return &LinuxBackend{
		conn:         conn,
		events:       conn,
		host:         host,
		surfaceClass: opts.SurfaceClass,
		overlay:      overlay,
		logger:       logger,
	}, nil
}

// HostWindowID returns the attached host window.
func (b *LinuxBackend) HostWindowID() WindowID {
	return WindowID(b.host)
}

// EventLoop runs the X11 event loop until Quit (blocking).
func (b *LinuxBackend) EventLoop() {
	b.conn.EventLoop()
}

// Quit stops EventLoop.
func (b *LinuxBackend) Quit() {
	b.conn.Quit()
}

// Disconnect destroys the overlay and closes the X11 connection.
func (b *LinuxBackend) Disconnect() {
	b.overlay.Destroy()
	b.conn.Close()
}

// WatchLifecycle reports host window lifecycle changes as host events.
//
// Pause must fire while the host is still viewable or the surface cannot be
// read, so an iconify request or _NET_WM_STATE_HIDDEN pauses first and the
// unmap is only a fallback for windows withdrawn without either. Each hide
// produces one Pause and each show one Resume.
func (b *LinuxBackend) WatchLifecycle(dispatch func(hostevent.Event)) error {
	t := &visibilityTracker{dispatch: dispatch}
	return b.events.WatchWindow(b.host, x11.WindowEvents{
		Focus: func(hasFocus bool) {
			dispatch(hostevent.NewFocusEvent(hasFocus))
		},
		Iconify: func() { t.update(func() { t.iconifying = true }) },
		Hidden: func(hidden bool) {
			t.update(func() {
				t.stateHidden = hidden
				if !hidden {
					t.iconifying = false
				}
			})
		},
		Unmap: func() { t.update(func() { t.unmapped = true }) },
		Map: func() {
			t.update(func() {
				t.unmapped = false
				t.iconifying = false
			})
		},
		Destroy: func() {
			dispatch(hostevent.NewEvent(hostevent.Destroy))
		},
	})
}

// visibilityTracker folds the notifications of one hide or show into a
// single Pause or Resume. Compositing window managers may only set
// _NET_WM_STATE_HIDDEN without unmapping, so every source counts. The host
// starts visible. Only the X event goroutine calls it.
type visibilityTracker struct {
	dispatch func(hostevent.Event)

	iconifying  bool
	stateHidden bool
	unmapped    bool
	paused      bool
}

func (t *visibilityTracker) update(change func()) {
	change()
	hidden := t.iconifying || t.stateHidden || t.unmapped
	if hidden == t.paused {
		return
	}
	t.paused = hidden
	if hidden {
		t.dispatch(hostevent.NewEvent(hostevent.Pause))
	} else {
		t.dispatch(hostevent.NewEvent(hostevent.Resume))
	}
}

// ApplySystemUI maps immersive flags onto EWMH state. Fullscreen covers the
// status bar; hiding navigation keeps the window above docks. The raw flag
// set is published for the engine.
func (b *LinuxBackend) ApplySystemUI(flags SystemUIFlags) error {
	if err := b.conn.SetWMState(b.host, x11.StateFullscreen, flags.Has(FlagFullscreen)); err != nil {
		return err
	}
	if err := b.conn.SetWMState(b.host, x11.StateAbove, flags.Has(FlagHideNavigation)); err != nil {
		return err
	}
	return b.conn.SetCardinal(b.host, PropSystemUI, uint32(flags))
}

// ApplyCutoutMode publishes the cutout mode on the host window.
func (b *LinuxBackend) ApplyCutoutMode(mode CutoutMode) error {
	return b.conn.SetCardinal(b.host, PropCutoutMode, uint32(mode))
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays() ([]Display, error) {
	monitors, err := b.conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		d := displayFromMonitor(m)
		x, y, w, h := b.conn.UsableArea(m)
		d.Usable = Rect{X: x, Y: y, Width: w, Height: h}
		displays = append(displays, d)
	}
	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})
	return displays, nil
}

// ActiveDisplay returns the display under the host window. The CRTC mode
// rate is preferred; the legacy screen rate fills in when it is unknown.
// The work area is not queried.
func (b *LinuxBackend) ActiveDisplay() (Display, error) {
	monitors, err := b.conn.GetMonitors()
	if err != nil || len(monitors) == 0 {
		rate, rateErr := b.conn.ScreenRate()
		if rateErr != nil {
			return Display{}, ErrNoDisplay
		}
		return b.screenDisplay(rate), nil
	}

	mon := b.conn.MonitorForWindow(monitors, b.host)
	if mon == nil {
		mon = &monitors[0]
	}
	d := displayFromMonitor(*mon)
	if d.RefreshRate <= 0 {
		if rate, err := b.conn.ScreenRate(); err == nil {
			d.RefreshRate = rate
		}
	}
	return d, nil
}

func (b *LinuxBackend) screenDisplay(rate float64) Display {
	screen := b.conn.XUtil.Screen()
	bounds := Rect{Width: int(screen.WidthInPixels), Height: int(screen.HeightInPixels)}
	return Display{Name: "screen", Bounds: bounds, RefreshRate: rate}
}

func displayFromMonitor(m x11.Monitor) Display {
	return Display{
		ID:          m.ID,
		Name:        m.Name,
		Bounds:      Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
		RefreshRate: m.RefreshRate,
	}
}

// RootView returns the host window's subtree.
func (b *LinuxBackend) RootView() (viewtree.Node, error) {
	return b.conn.ViewTree(b.host, b.surfaceClass), nil
}

// CopySurface reads the surface pixels on a worker goroutine.
func (b *LinuxBackend) CopySurface(s viewtree.Surface, rect image.Rectangle) <-chan CopyResult {
	out := make(chan CopyResult, 1)
	node, ok := s.(interface{ Window() xproto.Window })
	if !ok {
		out <- CopyResult{Err: fmt.Errorf("%w: surface is not an X window", ErrCopyFailed)}
		return out
	}
	go func() {
		f, err := b.conn.Capture(node.Window(), rect)
		if err != nil {
			out <- CopyResult{Err: fmt.Errorf("%w: %v", ErrCopyFailed, err)}
			return
		}
		out <- CopyResult{Frame: f}
	}()
	return out
}

// Overlay returns the overlay window.
func (b *LinuxBackend) Overlay() OverlayView {
	return b.overlay
}
