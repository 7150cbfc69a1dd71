package uiloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Run when the loop was already stopped.
var ErrStopped = errors.New("ui loop stopped")

// Loop is the single goroutine that owns overlay and window state.
//
// Work from other goroutines reaches the loop through Post. Tasks run in FIFO
// order, one at a time, on the goroutine that called Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an idle loop. Call Run to start processing tasks.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
		now:    time.Now,
	}
}

// Post queues fn for execution on the loop. It never blocks and returns false
// once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// After runs fn on the loop once d has elapsed. The returned stop function
// cancels the timer and reports whether it was still pending.
func (l *Loop) After(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return t.Stop
}

// Now returns the loop clock.
func (l *Loop) Now() time.Time {
	return l.now()
}

// Run processes tasks until ctx is cancelled. Tasks still queued at shutdown
// are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.mu.Unlock()

	l.logger.Debug("ui loop started")
	defer func() {
		l.mu.Lock()
		l.stopped = true
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()
		l.logger.Debug("ui loop stopped", "dropped_tasks", dropped)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn, ok := l.next()
			if !ok {
				break
			}
			l.runTask(fn)
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) runTask(fn func()) {
	// A panicking task must not take the window owner down with it.
	defer func() {
		if err := recover(); err != nil {
			l.logger.Error("ui task panic recovered", "error", err)
		}
	}()
	fn()
}

// Sync posts fn and waits until it has run on the loop or ctx is done.
func (l *Loop) Sync(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
