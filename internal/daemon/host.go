package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/unmhost/internal/config"
	"github.com/1broseidon/unmhost/internal/hostevent"
	"github.com/1broseidon/unmhost/internal/ipc"
	"github.com/1broseidon/unmhost/internal/metrics"
	"github.com/1broseidon/unmhost/internal/pacing"
	"github.com/1broseidon/unmhost/internal/platform"
	"github.com/1broseidon/unmhost/internal/transition"
	"github.com/1broseidon/unmhost/internal/uiloop"
	"github.com/1broseidon/unmhost/internal/windowpolicy"
)

// shutdownGrace bounds how long Run waits for the loop to release frames.
const shutdownGrace = 2 * time.Second

// EventRefreshRate is the SUBSCRIBE event sent when the display rate changes.
const EventRefreshRate = "refresh_rate"

// Options wire a Host.
type Options struct {
	Config     *config.Config
	ConfigPath string
	Backend    platform.Backend
	// Recorder is optional; nil disables metrics.
	Recorder *metrics.Recorder
	// Level, when set, follows log_level across reloads.
	Level  *slog.LevelVar
	Logger *slog.Logger
}

// Host assembles the UI loop, the transition coordinator, the window policy
// controller and the engine link around one platform backend.
type Host struct {
	backend    platform.Backend
	loop       *uiloop.Loop
	controller *windowpolicy.Controller
	coord      *transition.Coordinator
	dispatcher *hostevent.Dispatcher
	pacer      *pacing.Pacer
	server     *ipc.Server
	refresh    *Reconciler
	recorder   *metrics.Recorder
	level      *slog.LevelVar
	logger     *slog.Logger
	configPath string

	cfgMu sync.RWMutex
	cfg   *config.Config

	reloads  chan *config.Config
	done     chan struct{}
	doneOnce sync.Once
}

// New builds a host. Nothing runs until Run.
func New(opts Options) (*Host, error) {
	if opts.Backend == nil {
		return nil, errors.New("daemon: backend is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings, err := policySettings(cfg)
	if err != nil {
		return nil, err
	}

	h := &Host{
		backend:    opts.Backend,
		recorder:   opts.Recorder,
		level:      opts.Level,
		logger:     logger,
		configPath: opts.ConfigPath,
		cfg:        cfg,
		reloads:    make(chan *config.Config, 1),
		done:       make(chan struct{}),
	}

	h.loop = uiloop.New(logger.With("component", "uiloop"))
	h.controller = windowpolicy.NewController(opts.Backend, opts.Backend, settings, logger.With("component", "windowpolicy"))

	var observer transition.Observer
	if h.recorder != nil {
		observer = h.recorder
	}
	h.coord = transition.NewCoordinator(h.loop, opts.Backend, opts.Backend, opts.Backend.Overlay(), transition.Options{
		FadeDuration:  cfg.FadeDuration,
		FrameInterval: cfg.FadeFrameInterval,
		Observer:      observer,
		Logger:        logger.With("component", "transition"),
	})
	h.pacer = pacing.New(h.controller, cfg.TargetFPS)

	h.server, err = ipc.NewServer(cfg, opts.ConfigPath, h, h.reloads, logger.With("component", "ipc"))
	if err != nil {
		return nil, err
	}
	if h.recorder != nil {
		h.server.SetObserver(h.recorder)
	}

	h.dispatcher = hostevent.NewDispatcher(h.loop, h.coord, h.controller, h.server, hostevent.Options{
		ColdStartMask: cfg.ColdStartMask,
		Logger:        logger.With("component", "hostevent"),
		OnResume:      h.onResume,
		OnDestroy:     h.onDestroy,
	})

	h.refresh = NewReconciler(ReconcilerConfig{
		Interval: cfg.RefreshPollInterval,
		Logger:   logger.With("component", "reconciler"),
	}, h.controller, h.onRefreshChange)

	return h, nil
}

func policySettings(cfg *config.Config) (windowpolicy.Settings, error) {
	mode, err := platform.ParseCutoutMode(string(cfg.CutoutMode))
	if err != nil {
		return windowpolicy.Settings{}, &config.ValidationError{Path: "cutout_mode", Err: err}
	}
	return windowpolicy.Settings{
		Immersive:           cfg.Immersive,
		Cutout:              mode,
		FallbackRefreshRate: cfg.FallbackRefreshRate,
	}, nil
}

// Run serves the engine link and processes lifecycle events until ctx is
// done or the host window is destroyed. On return every captured frame has
// been released.
func (h *Host) Run(ctx context.Context) error {
	if err := h.server.Start(); err != nil {
		return err
	}
	defer h.server.Stop()

	// The loop outlives ctx so shutdown can still run on it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- h.loop.Run(loopCtx)
	}()

	auxCtx, stopAux := context.WithCancel(ctx)
	defer stopAux()

	h.dispatcher.Start()
	go h.refresh.Run(auxCtx)

	if addr := h.Config().MetricsAddr; addr != "" && h.recorder != nil {
		go func() {
			if err := h.recorder.Serve(auxCtx, addr, h.logger); err != nil {
				h.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if h.configPath != "" {
		watcher := config.NewWatcher(h.configPath, h.logger.With("component", "config"), func(res *config.LoadResult) {
			h.queueReload(res.Config)
		})
		if err := watcher.Start(auxCtx); err != nil {
			h.logger.Warn("config watch disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	h.logger.Info("host running", "socket", h.server.SocketPath())

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("shutting down host")
			h.Dispatch(hostevent.NewEvent(hostevent.Destroy))
			select {
			case <-h.done:
			case <-time.After(shutdownGrace):
				h.logger.Warn("transition shutdown timed out")
			}
			return nil
		case <-h.done:
			h.logger.Info("host window destroyed")
			return nil
		case cfg := <-h.reloads:
			h.ApplyConfig(cfg)
		case err := <-loopErr:
			return fmt.Errorf("ui loop exited: %w", err)
		}
	}
}

func (h *Host) queueReload(cfg *config.Config) {
	select {
	case h.reloads <- cfg:
	default:
		h.logger.Debug("reload already pending, dropped")
	}
}

// Reload re-reads the config file and applies it.
func (h *Host) Reload() error {
	res, err := config.LoadFromPath(h.configPath)
	if err != nil {
		return err
	}
	h.ApplyConfig(res.Config)
	return nil
}

// ApplyConfig swaps in a validated configuration. Window title and surface
// class are fixed for the life of the backend.
func (h *Host) ApplyConfig(cfg *config.Config) {
	settings, err := policySettings(cfg)
	if err != nil {
		h.logger.Warn("config rejected", "error", err)
		return
	}

	h.cfgMu.Lock()
	old := h.cfg
	h.cfg = cfg
	h.cfgMu.Unlock()

	h.server.UpdateConfig(cfg)
	h.controller.UpdateSettings(settings)
	if old.TargetFPS != cfg.TargetFPS {
		h.pacer.SetTargetFPS(cfg.TargetFPS)
	}
	fade, step := cfg.FadeDuration, cfg.FadeFrameInterval
	h.loop.Post(func() { h.coord.SetTiming(fade, step) })

	if h.level != nil {
		if lvl, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			h.level.Set(lvl)
		}
	}
	if old.WindowTitle != cfg.WindowTitle || old.SurfaceClass != cfg.SurfaceClass {
		h.logger.Warn("window_title and surface_class changes need a restart")
	}
	h.logger.Info("configuration applied", "target_fps", cfg.TargetFPS, "fade", cfg.FadeDuration)
}

// Config returns the active configuration.
func (h *Host) Config() *config.Config {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return h.cfg
}

// Dispatch implements ipc.Host and is the entry point for platform events.
func (h *Host) Dispatch(ev hostevent.Event) bool {
	if h.recorder != nil {
		h.recorder.ObserveEvent(ev.Kind.String())
	}
	return h.dispatcher.Dispatch(ev)
}

// Status implements ipc.Host.
func (h *Host) Status() transition.Status {
	return h.coord.Status()
}

// QueryRefreshRate implements ipc.Host.
func (h *Host) QueryRefreshRate() float64 {
	return h.controller.QueryRefreshRate()
}

// FrameInterval implements ipc.Host.
func (h *Host) FrameInterval() time.Duration {
	return h.pacer.Interval()
}

// Displays implements ipc.DisplayLister when the backend can enumerate.
func (h *Host) Displays() ([]platform.Display, error) {
	lister, ok := h.backend.(ipc.DisplayLister)
	if !ok {
		return nil, errors.New("backend cannot enumerate displays")
	}
	return lister.Displays()
}

// Done is closed once the host has shut down its transition.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// onResume runs on the loop. The display may have changed while hidden;
// the rate queries hit the window system, so they run off the loop.
func (h *Host) onResume() {
	go func() {
		h.pacer.Reset()
		h.refresh.ReconcileNow()
	}()
}

func (h *Host) onDestroy() {
	h.doneOnce.Do(func() { close(h.done) })
}

func (h *Host) onRefreshChange(old, current float64) {
	if h.recorder != nil {
		h.recorder.ObserveRefreshRate(current)
	}
	if old == 0 {
		return
	}
	h.pacer.Reset()
	h.server.Broadcast(ipc.LifecycleEvent{
		Event:       EventRefreshRate,
		RefreshRate: current,
		Time:        time.Now(),
	})
}

var _ ipc.Host = (*Host)(nil)
