package hostevent

import (
	"log/slog"
	"sync/atomic"
)

// Poster queues work onto the UI loop.
type Poster interface {
	Post(fn func()) bool
}

// Transition is the part of the resume-transition coordinator driven by
// lifecycle events.
type Transition interface {
	ShowColdStartMask()
	OnPause()
	OnRendererReady()
	Shutdown()
}

// FocusPolicy re-applies window presentation on focus gain.
type FocusPolicy interface {
	OnFocusGained()
}

// EngineLink forwards lifecycle events to the native engine.
type EngineLink interface {
	Forward(ev Event)
}

// Options configure a Dispatcher.
type Options struct {
	ColdStartMask bool
	Logger        *slog.Logger

	// OnResume runs on the loop after a Resume event is routed.
	OnResume func()
	// OnDestroy runs on the loop after the transition has been shut down.
	OnDestroy func()
}

// Dispatcher turns host lifecycle events into calls on the coordinator and
// the window policy, always on the UI loop.
type Dispatcher struct {
	loop       Poster
	transition Transition
	policy     FocusPolicy
	link       EngineLink
	opts       Options
	logger     *slog.Logger

	started   atomic.Bool
	destroyed atomic.Bool
}

// NewDispatcher creates a dispatcher. policy and link may be nil.
func NewDispatcher(loop Poster, transition Transition, policy FocusPolicy, link EngineLink, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		loop:       loop,
		transition: transition,
		policy:     policy,
		link:       link,
		opts:       opts,
		logger:     logger,
	}
}

// Start performs the cold-start sequence once: the opaque mask (if enabled)
// and an initial window policy application.
func (d *Dispatcher) Start() bool {
	if !d.started.CompareAndSwap(false, true) {
		return false
	}
	return d.loop.Post(func() {
		if d.opts.ColdStartMask {
			d.transition.ShowColdStartMask()
		}
		if d.policy != nil {
			d.policy.OnFocusGained()
		}
	})
}

// Dispatch queues ev for handling on the loop. It returns false when the
// loop no longer accepts work or the host has been destroyed.
func (d *Dispatcher) Dispatch(ev Event) bool {
	if d.destroyed.Load() {
		d.logger.Debug("event after destroy dropped", "event", ev.Kind.String())
		return false
	}
	return d.loop.Post(func() { d.handle(ev) })
}

func (d *Dispatcher) handle(ev Event) {
	d.logger.Debug("lifecycle event", "event", ev.Kind.String(), "has_focus", ev.HasFocus)

	switch ev.Kind {
	case Pause:
		d.transition.OnPause()
	case Resume:
		if d.opts.OnResume != nil {
			d.opts.OnResume()
		}
	case FocusChanged:
		if ev.HasFocus && d.policy != nil {
			d.policy.OnFocusGained()
		}
	case RendererReady:
		d.transition.OnRendererReady()
	case Destroy:
		if !d.destroyed.CompareAndSwap(false, true) {
			return
		}
		d.transition.Shutdown()
		if d.opts.OnDestroy != nil {
			d.opts.OnDestroy()
		}
	default:
		d.logger.Warn("unknown lifecycle event", "kind", int(ev.Kind))
		return
	}

	// The engine originates the ready signal, so it is not echoed back.
	if d.link != nil && ev.Kind != RendererReady {
		d.link.Forward(ev)
	}
}
