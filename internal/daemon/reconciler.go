package daemon

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// refreshEpsilon is the smallest refresh rate change, in Hz, worth reporting.
const refreshEpsilon = 0.01

// RateSource reports the current display refresh rate in Hz.
type RateSource interface {
	QueryRefreshRate() float64
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically re-reads the display refresh rate and reports
// changes, e.g. after the host window moves to another monitor or a mode
// switch.
type Reconciler struct {
	interval time.Duration
	source   RateSource
	onChange func(old, current float64)
	logger   *slog.Logger

	mu   sync.Mutex
	last float64
}

// NewReconciler creates a new reconciler. onChange also runs on the first
// pass, with old == 0.
func NewReconciler(cfg ReconcilerConfig, source RateSource, onChange func(old, current float64)) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval: interval,
		source:   source,
		onChange: onChange,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("refresh reconciler started", "interval", r.interval)
	r.reconcile()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	current := r.source.QueryRefreshRate()

	r.mu.Lock()
	old := r.last
	changed := math.Abs(current-old) > refreshEpsilon
	if changed {
		r.last = current
	}
	r.mu.Unlock()

	if !changed {
		return
	}
	if old != 0 {
		r.logger.Info("display refresh rate changed", "from_hz", old, "to_hz", current)
	}
	if r.onChange != nil {
		r.onChange(old, current)
	}
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}

// Last returns the most recently observed refresh rate, 0 before the first
// pass.
func (r *Reconciler) Last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
