package pacing

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRefreshRate is used when the source reports nothing usable.
const DefaultRefreshRate = 60.0

// RefreshSource reports the display refresh rate in Hz.
type RefreshSource interface {
	QueryRefreshRate() float64
}

// Stats describes the most recent paced frame.
type Stats struct {
	Frames    uint64
	Interval  time.Duration
	FrameTime time.Duration // time between the last two Wait returns
	Oversleep time.Duration // how far FrameTime overshot Interval
}

// FrameInterval returns the frame budget for a target frame rate, falling
// back to the display refresh rate when targetFPS <= 0.
func FrameInterval(targetFPS int, refreshRate float64) time.Duration {
	if targetFPS > 0 {
		return time.Duration(float64(time.Second) / float64(targetFPS))
	}
	if refreshRate <= 0 || math.IsNaN(refreshRate) || math.IsInf(refreshRate, 0) {
		refreshRate = DefaultRefreshRate
	}
	return time.Duration(float64(time.Second) / refreshRate)
}

// Pacer spaces frames at a fixed interval.
type Pacer struct {
	source RefreshSource

	mu        sync.Mutex
	targetFPS int
	interval  time.Duration
	limiter   *rate.Limiter
	last      time.Time
	stats     Stats
}

// New creates a pacer. source may be nil, in which case display-following
// pacing uses DefaultRefreshRate.
func New(source RefreshSource, targetFPS int) *Pacer {
	p := &Pacer{source: source, targetFPS: targetFPS}
	p.Reset()
	return p
}

// Reset re-reads the refresh rate and restarts pacing. Call it on resume,
// when the display may have changed.
func (p *Pacer) Reset() {
	rr := DefaultRefreshRate
	if p.source != nil {
		rr = p.source.QueryRefreshRate()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = FrameInterval(p.targetFPS, rr)
	p.limiter = rate.NewLimiter(rate.Every(p.interval), 1)
	p.last = time.Time{}
	p.stats = Stats{Interval: p.interval}
}

// SetTargetFPS changes the target frame rate and resets pacing.
func (p *Pacer) SetTargetFPS(fps int) {
	p.mu.Lock()
	p.targetFPS = fps
	p.mu.Unlock()
	p.Reset()
}

// Interval returns the current frame budget.
func (p *Pacer) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Wait blocks until the next frame slot or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	limiter := p.limiter
	p.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if limiter != p.limiter {
		// Reset while waiting; the next Wait starts a fresh sequence.
		return nil
	}
	if !p.last.IsZero() {
		p.stats.FrameTime = now.Sub(p.last)
		p.stats.Oversleep = max(p.stats.FrameTime-p.interval, 0)
	}
	p.last = now
	p.stats.Frames++
	return nil
}

// Stats returns the pacing statistics since the last Reset.
func (p *Pacer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
