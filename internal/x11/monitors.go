package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// ErrNoRandR is returned when the server lacks the RandR extension.
var ErrNoRandR = errors.New("randr extension not available")

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
	// RefreshRate is the CRTC mode's vertical refresh in Hz, 0 when unknown.
	RefreshRate float64
}

// GetMonitors retrieves all active monitors using XRandR, with the refresh
// rate of each CRTC's current mode.
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if !c.randrOK {
		return nil, ErrNoRandR
	}

	resources, err := randr.GetScreenResourcesCurrent(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	modes := make(map[uint32]randr.ModeInfo, len(resources.Modes))
	for _, m := range resources.Modes {
		modes[m.Id] = m
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		mon := Monitor{
			ID:     i,
			Name:   outputName,
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		}
		if mode, ok := modes[uint32(crtcInfo.Mode)]; ok {
			mon.RefreshRate = modeRefreshRate(mode)
		}
		monitors = append(monitors, mon)
	}

	return monitors, nil
}

// ScreenRate returns the legacy RandR 1.1 screen refresh rate.
func (c *Connection) ScreenRate() (float64, error) {
	if !c.randrOK {
		return 0, ErrNoRandR
	}
	info, err := randr.GetScreenInfo(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get screen info: %w", err)
	}
	if info.Rate == 0 {
		return 0, fmt.Errorf("screen reports no refresh rate")
	}
	return float64(info.Rate), nil
}

// modeRefreshRate derives the vertical refresh from mode timings.
func modeRefreshRate(m randr.ModeInfo) float64 {
	vtotal := float64(m.Vtotal)
	if m.ModeFlags&randr.ModeFlagDoubleScan != 0 {
		vtotal *= 2
	}
	if m.ModeFlags&randr.ModeFlagInterlace != 0 {
		vtotal /= 2
	}
	if m.Htotal == 0 || vtotal == 0 {
		return 0
	}
	return float64(m.DotClock) / (float64(m.Htotal) * vtotal)
}

// MonitorForWindow returns the monitor containing the window's center, or
// nil when the window is off every monitor.
func (c *Connection) MonitorForWindow(monitors []Monitor, windowID xproto.Window) *Monitor {
	x, y, w, h, err := c.WindowGeometry(windowID)
	if err != nil {
		return nil
	}
	return monitorAt(monitors, x+w/2, y+h/2)
}

func monitorAt(monitors []Monitor, x, y int) *Monitor {
	for i := range monitors {
		mon := &monitors[i]
		if x >= mon.X && x < mon.X+mon.Width && y >= mon.Y && y < mon.Y+mon.Height {
			return mon
		}
	}
	return nil
}

// UsableArea clips the monitor to the current desktop's work area. The full
// monitor is returned when no work area is published.
func (c *Connection) UsableArea(mon Monitor) (x, y, width, height int) {
	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return mon.X, mon.Y, mon.Width, mon.Height
	}
	desktopIndex := 0
	if current, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(current) < len(workArea) {
		desktopIndex = int(current)
	}
	wa := workArea[desktopIndex]
	return clipRect(mon.X, mon.Y, mon.Width, mon.Height, wa.X, wa.Y, int(wa.Width), int(wa.Height))
}

// clipRect intersects rectangle a with b, returning a unchanged when they do
// not overlap.
func clipRect(ax, ay, aw, ah, bx, by, bw, bh int) (x, y, width, height int) {
	x1 := max(ax, bx)
	y1 := max(ay, by)
	x2 := min(ax+aw, bx+bw)
	y2 := min(ay+ah, by+bh)
	if x2 <= x1 || y2 <= y1 {
		return ax, ay, aw, ah
	}
	return x1, y1, x2 - x1, y2 - y1
}
