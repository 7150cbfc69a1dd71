package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/unmhost/internal/transition"
)

const namespace = "unmhost"

// Recorder holds the host's Prometheus metrics. It implements
// transition.Observer.
type Recorder struct {
	registry *prometheus.Registry

	Transitions     *prometheus.CounterVec
	Captures        *prometheus.CounterVec
	ReadySignals    *prometheus.CounterVec
	FramesReleased  prometheus.Counter
	State           prometheus.Gauge
	OverlayDuration prometheus.Histogram
	Events          *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	RefreshRate     prometheus.Gauge

	mu           sync.Mutex
	overlaySince time.Time
	now          func() time.Time
}

// New creates a recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		now:      time.Now,

		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Resume-transition state changes",
			},
			[]string{"from", "to"},
		),
		Captures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captures_total",
				Help:      "Render surface captures by result",
			},
			[]string{"result"},
		),
		ReadySignals: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ready_signals_total",
				Help:      "Renderer ready signals by outcome",
			},
			[]string{"outcome"},
		),
		FramesReleased: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_released_total",
				Help:      "Captured frame buffers released",
			},
		),
		State: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transition_state",
				Help:      "Current transition state (0 idle, 1 capturing, 2 overlay_shown, 3 fading)",
			},
		),
		OverlayDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "overlay_visible_seconds",
				Help:      "Time the overlay masked the render surface",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
			},
		),
		Events: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_events_total",
				Help:      "Host lifecycle events",
			},
			[]string{"event"},
		),
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ipc_commands_total",
				Help:      "IPC commands by status",
			},
			[]string{"command", "status"},
		),
		RefreshRate: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "display_refresh_rate_hz",
				Help:      "Last reported display refresh rate",
			},
		),
	}
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// StateChanged implements transition.Observer.
func (r *Recorder) StateChanged(from, to transition.State) {
	r.Transitions.WithLabelValues(from.String(), to.String()).Inc()
	r.State.Set(float64(to))

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case to == transition.StateOverlayShown && r.overlaySince.IsZero():
		r.overlaySince = r.now()
	case to == transition.StateIdle || to == transition.StateCapturing:
		if !r.overlaySince.IsZero() {
			r.OverlayDuration.Observe(r.now().Sub(r.overlaySince).Seconds())
			r.overlaySince = time.Time{}
		}
	}
}

// CaptureFinished implements transition.Observer.
func (r *Recorder) CaptureFinished(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	r.Captures.WithLabelValues(result).Inc()
}

// ReadySignal implements transition.Observer.
func (r *Recorder) ReadySignal(accepted bool) {
	outcome := "ignored"
	if accepted {
		outcome = "accepted"
	}
	r.ReadySignals.WithLabelValues(outcome).Inc()
}

// FrameReleased implements transition.Observer.
func (r *Recorder) FrameReleased() {
	r.FramesReleased.Inc()
}

// ObserveEvent counts a host lifecycle event by name.
func (r *Recorder) ObserveEvent(name string) {
	r.Events.WithLabelValues(name).Inc()
}

// ObserveCommand counts an IPC command by its response status.
func (r *Recorder) ObserveCommand(command, status string) {
	r.Commands.WithLabelValues(command, status).Inc()
}

// ObserveRefreshRate records the latest refresh rate query.
func (r *Recorder) ObserveRefreshRate(hz float64) {
	r.RefreshRate.Set(hz)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

var _ transition.Observer = (*Recorder)(nil)
