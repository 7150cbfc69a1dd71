package transition

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/1broseidon/unmhost/internal/frame"
	"github.com/1broseidon/unmhost/internal/platform"
	"github.com/1broseidon/unmhost/internal/viewtree"
)

const (
	// DefaultFadeDuration is how long the overlay takes to fade out.
	DefaultFadeDuration = 250 * time.Millisecond
	// DefaultFrameInterval is the fade animation step.
	DefaultFrameInterval = 16 * time.Millisecond
)

// ErrSurfaceInvalid means the render surface exists but holds no contents.
var ErrSurfaceInvalid = errors.New("render surface not valid")

// Scheduler is the UI loop the Coordinator lives on.
type Scheduler interface {
	Post(fn func()) bool
	After(d time.Duration, fn func()) func() bool
	Now() time.Time
}

// Options tune the Coordinator.
type Options struct {
	FadeDuration  time.Duration
	FrameInterval time.Duration
	Observer      Observer
	Logger        *slog.Logger
}

// Coordinator hides renderer reinitialization behind an overlay holding the
// last frame captured before suspend.
//
// ShowColdStartMask, OnPause, OnRendererReady, SetTiming and Shutdown must
// run on the scheduler's loop. Status and State may be called from anywhere.
type Coordinator struct {
	sched   Scheduler
	views   platform.ViewSource
	copier  platform.SurfaceCopier
	overlay platform.OverlayView
	obs     Observer
	logger  *slog.Logger

	fadeDuration  time.Duration
	frameInterval time.Duration

	// Loop-owned state.
	phase      State // idle, overlay_shown or fading
	shown      OverlayState
	owned      *frame.Frame
	gen        uint64
	pendingGen uint64
	cycles     uint64
	fadeToken  uint64
	fadeStart  time.Time
	fadeStop   func() bool
	shutdown   bool

	mu     sync.RWMutex
	status Status
}

// NewCoordinator creates a coordinator in the idle state.
func NewCoordinator(sched Scheduler, views platform.ViewSource, copier platform.SurfaceCopier, overlay platform.OverlayView, opts Options) *Coordinator {
	c := &Coordinator{
		sched:         sched,
		views:         views,
		copier:        copier,
		overlay:       overlay,
		obs:           opts.Observer,
		logger:        opts.Logger,
		fadeDuration:  opts.FadeDuration,
		frameInterval: opts.FrameInterval,
		phase:         StateIdle,
	}
	if c.obs == nil {
		c.obs = nopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.fadeDuration < 0 {
		c.fadeDuration = 0
	}
	if c.frameInterval <= 0 {
		c.frameInterval = DefaultFrameInterval
	}
	return c
}

// SetTiming changes fade timing for future transitions.
func (c *Coordinator) SetTiming(fade, frameInterval time.Duration) {
	if fade < 0 {
		fade = 0
	}
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	c.fadeDuration = fade
	c.frameInterval = frameInterval
}

// State returns the current transition state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.State
}

// Status returns a snapshot of the transition and overlay.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// ShowColdStartMask covers the render surface with opaque black until the
// engine reports its first frame.
func (c *Coordinator) ShowColdStartMask() {
	if c.shutdown {
		return
	}
	if c.phase != StateIdle || c.pendingGen != 0 {
		c.logger.Debug("cold start mask skipped", "state", c.reportedState())
		return
	}
	c.overlay.SetImage(nil)
	c.overlay.SetAlpha(1.0)
	c.overlay.SetVisible(true)
	c.shown = OverlayState{Visible: true, Alpha: 1.0}
	c.phase = StateOverlayShown
	c.logger.Info("cold start mask shown")
	c.publish()
}

// OnPause starts capturing the render surface so its last frame can mask the
// resume. It is a no-op while the overlay is already masking the surface.
func (c *Coordinator) OnPause() {
	if c.shutdown {
		return
	}
	if c.phase == StateOverlayShown {
		c.logger.Debug("pause while overlay shown, keeping current mask")
		return
	}

	surface, err := c.findSurface()
	if err != nil {
		if c.pendingGen != 0 {
			// A newer suspend without a surface supersedes the in-flight copy.
			c.pendingGen = 0
		}
		c.logger.Info("skipping capture", "reason", err)
		c.publish()
		return
	}

	rect := surface.Bounds()
	c.gen++
	gen := c.gen
	if c.pendingGen != 0 {
		c.logger.Debug("superseding in-flight capture", "stale", c.pendingGen, "cycle", gen)
	}
	c.pendingGen = gen
	c.cycles++

	ch := c.copier.CopySurface(surface, rect)
	go c.awaitCopy(gen, ch)

	c.logger.Debug("capture requested", "cycle", gen, "width", rect.Dx(), "height", rect.Dy())
	c.publish()
}

func (c *Coordinator) findSurface() (viewtree.Surface, error) {
	if c.views == nil {
		return nil, viewtree.ErrSurfaceNotFound
	}
	root, err := c.views.RootView()
	if err != nil {
		return nil, err
	}
	surface, err := viewtree.FindSurface(root)
	if err != nil {
		return nil, err
	}
	if !surface.Valid() || surface.Bounds().Empty() {
		return nil, ErrSurfaceInvalid
	}
	return surface, nil
}

// awaitCopy runs off the loop and hands the result back to it.
func (c *Coordinator) awaitCopy(gen uint64, ch <-chan platform.CopyResult) {
	res, ok := <-ch
	if !ok {
		res = platform.CopyResult{Err: platform.ErrCopyFailed}
	}
	if !c.sched.Post(func() { c.applyCopy(gen, res) }) {
		// The loop is gone; nobody else will ever own this frame.
		if res.Frame != nil {
			res.Frame.Release()
		}
	}
}

func (c *Coordinator) applyCopy(gen uint64, res platform.CopyResult) {
	if c.shutdown || gen != c.pendingGen {
		if res.Frame != nil {
			res.Frame.Release()
			c.obs.FrameReleased()
		}
		c.logger.Debug("discarding stale capture", "cycle", gen)
		return
	}
	c.pendingGen = 0

	if res.Err != nil || res.Frame == nil {
		if res.Frame != nil {
			res.Frame.Release()
			c.obs.FrameReleased()
		}
		err := res.Err
		if err == nil {
			err = platform.ErrCopyFailed
		}
		c.obs.CaptureFinished(false)
		c.logger.Warn("surface capture failed, no overlay this cycle", "cycle", gen, "error", err)
		c.publish()
		return
	}
	c.obs.CaptureFinished(true)

	c.stopFade()
	old := c.owned
	c.owned = res.Frame
	c.overlay.SetImage(res.Frame)
	c.overlay.SetAlpha(1.0)
	c.overlay.SetVisible(true)
	c.shown = OverlayState{Visible: true, Alpha: 1.0, FrameID: res.Frame.ID()}
	c.phase = StateOverlayShown
	if old != nil && old != res.Frame {
		old.Release()
		c.obs.FrameReleased()
	}

	b := res.Frame.Bounds()
	c.logger.Info("overlay showing captured frame", "cycle", gen, "width", b.Dx(), "height", b.Dy())
	c.publish()
}

// OnRendererReady fades the overlay out. Signals that arrive while the
// overlay is not shown are ignored.
func (c *Coordinator) OnRendererReady() {
	if c.shutdown || c.phase != StateOverlayShown || !c.shown.Visible {
		c.obs.ReadySignal(false)
		c.logger.Debug("ready signal ignored", "state", c.reportedState())
		return
	}
	c.obs.ReadySignal(true)

	c.phase = StateFading
	c.fadeToken++
	c.fadeStart = c.sched.Now()
	c.logger.Debug("fading overlay", "duration", c.fadeDuration)
	c.publish()

	if c.fadeDuration == 0 {
		c.finishFade()
		return
	}
	c.scheduleFadeStep(c.fadeToken)
}

func (c *Coordinator) scheduleFadeStep(token uint64) {
	c.fadeStop = c.sched.After(c.frameInterval, func() { c.fadeStep(token) })
}

func (c *Coordinator) fadeStep(token uint64) {
	if token != c.fadeToken || c.phase != StateFading {
		return
	}
	elapsed := c.sched.Now().Sub(c.fadeStart)
	t := float64(elapsed) / float64(c.fadeDuration)
	if t >= 1 {
		c.finishFade()
		return
	}
	if t < 0 {
		t = 0
	}
	alpha := 1 - accelerateDecelerate(t)
	c.overlay.SetAlpha(alpha)
	c.shown.Alpha = alpha
	c.publish()
	c.scheduleFadeStep(token)
}

func (c *Coordinator) finishFade() {
	c.fadeToken++
	c.fadeStop = nil

	c.overlay.SetAlpha(0)
	c.overlay.SetVisible(false)
	c.overlay.SetImage(nil)
	c.shown = OverlayState{}
	c.phase = StateIdle
	c.releaseOwned()

	c.logger.Debug("overlay hidden")
	c.publish()
}

func (c *Coordinator) stopFade() {
	if c.phase != StateFading {
		return
	}
	c.fadeToken++
	if c.fadeStop != nil {
		c.fadeStop()
		c.fadeStop = nil
	}
}

func (c *Coordinator) releaseOwned() {
	if c.owned == nil {
		return
	}
	c.owned.Release()
	c.owned = nil
	c.obs.FrameReleased()
}

// Shutdown stops animations and releases the captured frame. Late capture
// results are released on arrival.
func (c *Coordinator) Shutdown() {
	if c.shutdown {
		return
	}
	c.stopFade()
	c.shutdown = true
	c.pendingGen = 0
	c.releaseOwned()
	c.publish()
}

func accelerateDecelerate(t float64) float64 {
	return math.Cos((t+1)*math.Pi)/2 + 0.5
}

func (c *Coordinator) reportedState() State {
	if c.phase == StateIdle && c.pendingGen != 0 {
		return StateCapturing
	}
	return c.phase
}

// publish refreshes the cross-goroutine snapshot and reports state changes.
func (c *Coordinator) publish() {
	next := Status{
		State:          c.reportedState(),
		Overlay:        c.shown,
		CapturePending: c.pendingGen != 0,
		Cycles:         c.cycles,
	}

	c.mu.Lock()
	prev := c.status.State
	c.status = next
	c.mu.Unlock()

	if prev != next.State {
		c.logger.Debug("transition", "from", prev.String(), "to", next.State.String())
		c.obs.StateChanged(prev, next.State)
	}
}
