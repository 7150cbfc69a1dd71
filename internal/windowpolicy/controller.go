package windowpolicy

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/1broseidon/unmhost/internal/platform"
)

// DefaultRefreshRate is reported when no display can be resolved.
const DefaultRefreshRate = 60.0

// Settings select the presentation the controller keeps applied.
type Settings struct {
	Immersive           bool
	Cutout              platform.CutoutMode
	FallbackRefreshRate float64
}

// DefaultSettings returns the immersive, short-edge cutout presentation.
func DefaultSettings() Settings {
	return Settings{
		Immersive:           true,
		Cutout:              platform.CutoutShortEdges,
		FallbackRefreshRate: DefaultRefreshRate,
	}
}

// Snapshot is the window flag set derived from Settings.
type Snapshot struct {
	SystemUI platform.SystemUIFlags
	Cutout   platform.CutoutMode
}

// Controller re-applies window presentation on focus gain and reports
// display timing.
type Controller struct {
	window   platform.HostWindow
	displays platform.DisplaySource
	logger   *slog.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewController creates a controller. window and displays may be nil, in
// which case focus handling is a no-op and the refresh rate is the fallback.
func NewController(window platform.HostWindow, displays platform.DisplaySource, settings Settings, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		window:   window,
		displays: displays,
		logger:   logger,
		settings: normalize(settings),
	}
}

func normalize(s Settings) Settings {
	if s.FallbackRefreshRate <= 0 || math.IsNaN(s.FallbackRefreshRate) || math.IsInf(s.FallbackRefreshRate, 0) {
		s.FallbackRefreshRate = DefaultRefreshRate
	}
	return s
}

// UpdateSettings swaps the policy. It takes effect on the next focus gain.
func (c *Controller) UpdateSettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = normalize(s)
}

// Policy derives the window flag snapshot. It holds no state of its own.
func (c *Controller) Policy() Snapshot {
	c.mu.RLock()
	s := c.settings
	c.mu.RUnlock()

	snap := Snapshot{Cutout: s.Cutout}
	if s.Immersive {
		snap.SystemUI = platform.ImmersiveFlags
	}
	return snap
}

// OnFocusGained re-applies the system UI flags and the cutout mode. Calling it
// repeatedly leaves the window in the same configuration.
func (c *Controller) OnFocusGained() {
	if c.window == nil {
		return
	}
	snap := c.Policy()

	if err := c.window.ApplySystemUI(snap.SystemUI); err != nil {
		c.logger.Warn("failed to apply system ui flags", "flags", snap.SystemUI.String(), "error", err)
	}
	if err := c.window.ApplyCutoutMode(snap.Cutout); err != nil {
		c.logger.Warn("failed to apply cutout mode", "mode", snap.Cutout.String(), "error", err)
	}
	c.logger.Debug("window policy applied", "flags", snap.SystemUI.String(), "cutout", snap.Cutout.String())
}

// QueryRefreshRate returns the active display's refresh rate in Hz, or the
// fallback (60 by default) when no display can be resolved.
func (c *Controller) QueryRefreshRate() float64 {
	c.mu.RLock()
	fallback := c.settings.FallbackRefreshRate
	c.mu.RUnlock()

	if c.displays == nil {
		return fallback
	}
	d, err := c.displays.ActiveDisplay()
	if err != nil {
		if !errors.Is(err, platform.ErrNoDisplay) {
			c.logger.Debug("refresh rate query failed", "error", err)
		}
		return fallback
	}
	if d.RefreshRate <= 0 || math.IsNaN(d.RefreshRate) || math.IsInf(d.RefreshRate, 0) {
		return fallback
	}
	return d.RefreshRate
}
