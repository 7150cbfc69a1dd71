package platform

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/1broseidon/unmhost/internal/frame"
	"github.com/1broseidon/unmhost/internal/viewtree"
)

var (
	// ErrNoDisplay means no active display could be resolved.
	ErrNoDisplay = errors.New("no active display")
	// ErrCopyFailed means the surface copy finished without pixels.
	ErrCopyFailed = errors.New("surface copy failed")
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Display describes a physical display, its usable work area and timing.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	// Usable is the work area. Only display enumeration fills it; the
	// active display lookup is used for timing and leaves it zero.
	Usable      Rect
	RefreshRate float64 // Hz, 0 when unknown
}

// SystemUIFlags selects how system chrome is presented around the window.
// Bit values follow the Android View.SYSTEM_UI_FLAG_* constants.
type SystemUIFlags uint32

const (
	FlagHideNavigation       SystemUIFlags = 0x00000002
	FlagFullscreen           SystemUIFlags = 0x00000004
	FlagLayoutStable         SystemUIFlags = 0x00000100
	FlagLayoutHideNavigation SystemUIFlags = 0x00000200
	FlagLayoutFullscreen     SystemUIFlags = 0x00000400
	FlagImmersiveSticky      SystemUIFlags = 0x00001000
)

// ImmersiveFlags is the full immersive, edge-to-edge flag set.
const ImmersiveFlags = FlagImmersiveSticky |
	FlagLayoutStable |
	FlagLayoutHideNavigation |
	FlagLayoutFullscreen |
	FlagHideNavigation |
	FlagFullscreen

// Has reports whether all bits of other are set.
func (f SystemUIFlags) Has(other SystemUIFlags) bool {
	return f&other == other
}

func (f SystemUIFlags) String() string {
	names := []struct {
		flag SystemUIFlags
		name string
	}{
		{FlagImmersiveSticky, "immersive-sticky"},
		{FlagLayoutStable, "layout-stable"},
		{FlagLayoutHideNavigation, "layout-hide-navigation"},
		{FlagLayoutFullscreen, "layout-fullscreen"},
		{FlagHideNavigation, "hide-navigation"},
		{FlagFullscreen, "fullscreen"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CutoutMode controls whether content may extend into a display cutout.
// Values follow WindowManager.LayoutParams.LAYOUT_IN_DISPLAY_CUTOUT_MODE_*.
type CutoutMode int

const (
	CutoutDefault    CutoutMode = 0
	CutoutShortEdges CutoutMode = 1
	CutoutNever      CutoutMode = 2
	CutoutAlways     CutoutMode = 3
)

func (m CutoutMode) String() string {
	switch m {
	case CutoutDefault:
		return "default"
	case CutoutShortEdges:
		return "short-edges"
	case CutoutNever:
		return "never"
	case CutoutAlways:
		return "always"
	default:
		return "unknown"
	}
}

// ParseCutoutMode converts a config value to a CutoutMode.
func ParseCutoutMode(s string) (CutoutMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default":
		return CutoutDefault, nil
	case "short-edges", "short_edges", "shortedges":
		return CutoutShortEdges, nil
	case "never":
		return CutoutNever, nil
	case "always":
		return CutoutAlways, nil
	default:
		return CutoutDefault, fmt.Errorf("unknown cutout mode %q", s)
	}
}

// CopyResult is the single outcome of an asynchronous surface copy.
type CopyResult struct {
	Frame *frame.Frame
	Err   error
}

// HostWindow is the top-level window the shell owns.
type HostWindow interface {
	ApplySystemUI(flags SystemUIFlags) error
	ApplyCutoutMode(mode CutoutMode) error
}

// DisplaySource resolves the display the host window is on.
type DisplaySource interface {
	ActiveDisplay() (Display, error)
}

// ViewSource exposes the read-only view hierarchy of the host window.
type ViewSource interface {
	RootView() (viewtree.Node, error)
}

// SurfaceCopier copies surface pixels off the calling goroutine. The returned
// channel receives exactly one result and is never closed empty.
type SurfaceCopier interface {
	CopySurface(s viewtree.Surface, rect image.Rectangle) <-chan CopyResult
}

// OverlayView is the on-screen layer stacked above the render surface.
// Methods must be called from the UI loop only. SetImage(nil) shows the
// opaque black background; the view must not keep references to a frame's
// pixels after the next SetImage call.
type OverlayView interface {
	SetImage(f *frame.Frame)
	SetAlpha(alpha float64)
	SetVisible(visible bool)
}

// Backend abstracts the window system for the host shell.
type Backend interface {
	HostWindow
	DisplaySource
	ViewSource
	SurfaceCopier
	Overlay() OverlayView
}
