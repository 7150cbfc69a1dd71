package transition

import (
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/unmhost/internal/frame"
	"github.com/1broseidon/unmhost/internal/platform"
	"github.com/1broseidon/unmhost/internal/viewtree"
)

// manualScheduler is a deterministic stand-in for the UI loop. Posted tasks
// run when the test drains them; timers fire when the clock is advanced.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	tasks  []func()
	timers []*manualTimer
	closed bool
}

type manualTimer struct {
	due     time.Time
	fn      func()
	stopped bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Unix(1700000000, 0)}
}

func (s *manualScheduler) Post(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.tasks = append(s.tasks, fn)
	return true
}

func (s *manualScheduler) After(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{due: s.now.Add(d), fn: fn}
	s.timers = append(s.timers, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *manualScheduler) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *manualScheduler) runPending() {
	for {
		s.mu.Lock()
		tasks := s.tasks
		s.tasks = nil
		s.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

// waitAndRun blocks until a capture result has been posted, then runs it.
func (s *manualScheduler) waitAndRun(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.tasks)
		s.mu.Unlock()
		if n > 0 {
			s.runPending()
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for a posted task")
}

// advance moves the clock forward and fires every timer that falls due,
// including timers scheduled by the timers it fires.
func (s *manualScheduler) advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		idx := -1
		for i, t := range s.timers {
			if t.stopped || t.due.After(target) {
				continue
			}
			if idx < 0 || t.due.Before(s.timers[idx].due) {
				idx = i
			}
		}
		if idx < 0 {
			s.now = target
			s.timers = pruneTimers(s.timers)
			s.mu.Unlock()
			return
		}
		next := s.timers[idx]
		next.stopped = true
		s.now = next.due
		s.mu.Unlock()

		next.fn()
		s.runPending()
	}
}

func pruneTimers(timers []*manualTimer) []*manualTimer {
	live := timers[:0]
	for _, t := range timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	return live
}

type overlayCall struct {
	op    string
	frame *frame.Frame
	alpha float64
	shown bool
}

type fakeOverlay struct {
	calls   []overlayCall
	image   *frame.Frame
	alpha   float64
	visible bool
}

func (o *fakeOverlay) SetImage(f *frame.Frame) {
	o.calls = append(o.calls, overlayCall{op: "image", frame: f})
	o.image = f
}

func (o *fakeOverlay) SetAlpha(alpha float64) {
	o.calls = append(o.calls, overlayCall{op: "alpha", alpha: alpha})
	o.alpha = alpha
}

func (o *fakeOverlay) SetVisible(visible bool) {
	o.calls = append(o.calls, overlayCall{op: "visible", shown: visible})
	o.visible = visible
}

type testNode struct {
	id       uint64
	children []viewtree.Node
}

func (n *testNode) NodeID() uint64            { return n.id }
func (n *testNode) Children() []viewtree.Node { return n.children }

type testSurface struct {
	testNode
	valid  bool
	bounds image.Rectangle
}

func (s *testSurface) Valid() bool             { return s.valid }
func (s *testSurface) Bounds() image.Rectangle { return s.bounds }

type fakeViews struct {
	root viewtree.Node
	err  error
}

func (v *fakeViews) RootView() (viewtree.Node, error) { return v.root, v.err }

func hierarchyWithSurface(valid bool) *fakeViews {
	surface := &testSurface{
		testNode: testNode{id: 3},
		valid:    valid,
		bounds:   image.Rect(0, 0, 64, 32),
	}
	content := &testNode{id: 2, children: []viewtree.Node{surface}}
	return &fakeViews{root: &testNode{id: 1, children: []viewtree.Node{content}}}
}

func hierarchyWithoutSurface() *fakeViews {
	content := &testNode{id: 2}
	return &fakeViews{root: &testNode{id: 1, children: []viewtree.Node{content}}}
}

type copyRequest struct {
	rect image.Rectangle
	ch   chan platform.CopyResult
}

type fakeCopier struct {
	mu       sync.Mutex
	requests []copyRequest
}

func (c *fakeCopier) CopySurface(_ viewtree.Surface, rect image.Rectangle) <-chan platform.CopyResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan platform.CopyResult, 1)
	c.requests = append(c.requests, copyRequest{rect: rect, ch: ch})
	return ch
}

func (c *fakeCopier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *fakeCopier) complete(t *testing.T, i int, res platform.CopyResult) {
	t.Helper()
	c.mu.Lock()
	if i >= len(c.requests) {
		c.mu.Unlock()
		t.Fatalf("copy request %d was never issued", i)
	}
	ch := c.requests[i].ch
	c.mu.Unlock()
	ch <- res
}

type countingObserver struct {
	transitions []State
	captures    map[bool]int
	ready       map[bool]int
	released    int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{captures: map[bool]int{}, ready: map[bool]int{}}
}

func (o *countingObserver) StateChanged(_, to State) { o.transitions = append(o.transitions, to) }
func (o *countingObserver) CaptureFinished(ok bool)  { o.captures[ok]++ }
func (o *countingObserver) ReadySignal(accepted bool) {
	o.ready[accepted]++
}
func (o *countingObserver) FrameReleased() { o.released++ }

type harness struct {
	sched   *manualScheduler
	views   *fakeViews
	copier  *fakeCopier
	overlay *fakeOverlay
	obs     *countingObserver
	c       *Coordinator
}

func newHarness(views *fakeViews) *harness {
	h := &harness{
		sched:   newManualScheduler(),
		views:   views,
		copier:  &fakeCopier{},
		overlay: &fakeOverlay{},
		obs:     newCountingObserver(),
	}
	h.c = NewCoordinator(h.sched, h.views, h.copier, h.overlay, Options{
		FadeDuration:  DefaultFadeDuration,
		FrameInterval: DefaultFrameInterval,
		Observer:      h.obs,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func (h *harness) expectState(t *testing.T, want State) {
	t.Helper()
	if got := h.c.State(); got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func (h *harness) fadeOut(t *testing.T) {
	t.Helper()
	h.c.OnRendererReady()
	h.expectState(t, StateFading)
	h.sched.advance(DefaultFadeDuration + DefaultFrameInterval)
	h.expectState(t, StateIdle)
}

func TestColdStartMaskFadesOnReady(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))

	h.c.ShowColdStartMask()
	h.expectState(t, StateOverlayShown)
	if !h.overlay.visible || h.overlay.alpha != 1.0 || h.overlay.image != nil {
		t.Fatalf("cold start overlay = visible %v alpha %v image %v, want opaque black", h.overlay.visible, h.overlay.alpha, h.overlay.image)
	}

	h.c.OnRendererReady()
	h.expectState(t, StateFading)

	h.sched.advance(DefaultFadeDuration / 2)
	h.expectState(t, StateFading)
	if h.overlay.alpha <= 0 || h.overlay.alpha >= 1 {
		t.Fatalf("mid-fade alpha = %v, want between 0 and 1", h.overlay.alpha)
	}

	h.sched.advance(DefaultFadeDuration)
	h.expectState(t, StateIdle)
	if h.overlay.visible || h.overlay.image != nil || h.overlay.alpha != 0 {
		t.Fatalf("overlay after fade = visible %v alpha %v image %v", h.overlay.visible, h.overlay.alpha, h.overlay.image)
	}
}

func TestOverlayNeverFadesWithoutReadySignal(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.ShowColdStartMask()

	h.sched.advance(10 * time.Second)
	h.expectState(t, StateOverlayShown)

	// Suspend and resume without a ready signal keeps the mask up.
	h.c.OnPause()
	h.sched.advance(10 * time.Second)
	h.expectState(t, StateOverlayShown)
	if h.copier.count() != 0 {
		t.Fatalf("pause while masked issued %d copies", h.copier.count())
	}
}

func TestCaptureShowsFrameAndReleasesOnce(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))

	h.c.OnPause()
	h.expectState(t, StateCapturing)
	if h.copier.count() != 1 {
		t.Fatalf("copies = %d, want 1", h.copier.count())
	}
	if got := h.copier.requests[0].rect; got != image.Rect(0, 0, 64, 32) {
		t.Fatalf("copy rect = %v, want surface bounds", got)
	}

	f := frame.New(64, 32)
	h.copier.complete(t, 0, platform.CopyResult{Frame: f})
	h.sched.waitAndRun(t)

	h.expectState(t, StateOverlayShown)
	if h.overlay.image != f || h.overlay.alpha != 1.0 || !h.overlay.visible {
		t.Fatalf("overlay not showing captured frame")
	}
	st := h.c.Status()
	if st.Overlay.FrameID != f.ID() || st.CapturePending {
		t.Fatalf("status = %+v", st)
	}

	h.sched.advance(time.Second)
	if f.ReleaseCount() != 0 {
		t.Fatalf("frame released before fade")
	}

	h.fadeOut(t)
	if f.ReleaseCount() != 1 {
		t.Fatalf("release count = %d, want 1", f.ReleaseCount())
	}
	if h.overlay.image != nil || h.overlay.visible {
		t.Fatalf("overlay still holds frame after fade")
	}
	if h.obs.released != 1 || h.obs.captures[true] != 1 {
		t.Fatalf("observer released=%d captures=%v", h.obs.released, h.obs.captures)
	}
}

func TestPauseWithoutSurfaceStaysIdle(t *testing.T) {
	for name, views := range map[string]*fakeViews{
		"missing": hierarchyWithoutSurface(),
		"invalid": hierarchyWithSurface(false),
		"no root": {},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(views)

			h.c.OnPause()
			h.expectState(t, StateIdle)
			if h.copier.count() != 0 {
				t.Fatalf("copy issued without a valid surface")
			}

			h.c.OnRendererReady()
			h.expectState(t, StateIdle)
			if len(h.overlay.calls) != 0 {
				t.Fatalf("overlay mutated: %+v", h.overlay.calls)
			}
			if h.obs.ready[false] != 1 {
				t.Fatalf("ready signal not reported as ignored")
			}
		})
	}
}

func TestReadyWhileIdleIsNoop(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.OnRendererReady()
	h.c.OnRendererReady()
	h.expectState(t, StateIdle)
	if len(h.overlay.calls) != 0 {
		t.Fatalf("overlay mutated: %+v", h.overlay.calls)
	}
}

func TestCopyFailureLeavesOverlayUntouched(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))

	h.c.OnPause()
	h.copier.complete(t, 0, platform.CopyResult{Err: platform.ErrCopyFailed})
	h.sched.waitAndRun(t)

	h.expectState(t, StateIdle)
	if len(h.overlay.calls) != 0 {
		t.Fatalf("overlay mutated on copy failure: %+v", h.overlay.calls)
	}
	if h.obs.captures[false] != 1 {
		t.Fatalf("failed capture not observed")
	}

	// A failure result that still carries pixels must not leak them.
	h.c.OnPause()
	partial := frame.New(4, 4)
	h.copier.complete(t, 1, platform.CopyResult{Frame: partial, Err: platform.ErrCopyFailed})
	h.sched.waitAndRun(t)
	if partial.ReleaseCount() != 1 {
		t.Fatalf("partial frame release count = %d, want 1", partial.ReleaseCount())
	}
}

func TestSupersededCaptureIsReleased(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))

	h.c.OnPause()
	h.c.OnPause()
	if h.copier.count() != 2 {
		t.Fatalf("copies = %d, want 2", h.copier.count())
	}

	stale := frame.New(64, 32)
	h.copier.complete(t, 0, platform.CopyResult{Frame: stale})
	h.sched.waitAndRun(t)

	h.expectState(t, StateCapturing)
	if stale.ReleaseCount() != 1 {
		t.Fatalf("stale release count = %d, want 1", stale.ReleaseCount())
	}
	if len(h.overlay.calls) != 0 {
		t.Fatalf("stale result touched the overlay")
	}

	fresh := frame.New(64, 32)
	h.copier.complete(t, 1, platform.CopyResult{Frame: fresh})
	h.sched.waitAndRun(t)
	h.expectState(t, StateOverlayShown)
	if h.overlay.image != fresh {
		t.Fatalf("overlay is not showing the latest capture")
	}

	h.fadeOut(t)
	if fresh.ReleaseCount() != 1 || stale.ReleaseCount() != 1 {
		t.Fatalf("release counts fresh=%d stale=%d, want 1 each", fresh.ReleaseCount(), stale.ReleaseCount())
	}
}

func TestPauseWithoutSurfaceSupersedesInFlightCapture(t *testing.T) {
	views := hierarchyWithSurface(true)
	h := newHarness(views)

	h.c.OnPause()
	views.root = &testNode{id: 1}
	h.c.OnPause()
	h.expectState(t, StateIdle)

	late := frame.New(64, 32)
	h.copier.complete(t, 0, platform.CopyResult{Frame: late})
	h.sched.waitAndRun(t)

	h.expectState(t, StateIdle)
	if late.ReleaseCount() != 1 {
		t.Fatalf("late release count = %d, want 1", late.ReleaseCount())
	}
	if len(h.overlay.calls) != 0 {
		t.Fatalf("overlay mutated by superseded capture")
	}
}

func TestCaptureDuringFadeReplacesFrame(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))

	h.c.OnPause()
	first := frame.New(64, 32)
	h.copier.complete(t, 0, platform.CopyResult{Frame: first})
	h.sched.waitAndRun(t)

	h.c.OnRendererReady()
	h.sched.advance(DefaultFadeDuration / 3)
	h.expectState(t, StateFading)

	h.c.OnPause()
	st := h.c.Status()
	if st.State != StateFading || !st.CapturePending {
		t.Fatalf("status during fade with capture = %+v", st)
	}

	second := frame.New(64, 32)
	h.copier.complete(t, 1, platform.CopyResult{Frame: second})
	h.sched.waitAndRun(t)

	h.expectState(t, StateOverlayShown)
	if h.overlay.image != second || h.overlay.alpha != 1.0 {
		t.Fatalf("overlay = image %v alpha %v, want second frame opaque", h.overlay.image, h.overlay.alpha)
	}
	if first.ReleaseCount() != 1 {
		t.Fatalf("first release count = %d, want 1", first.ReleaseCount())
	}

	// The interrupted fade must not resume on its own.
	h.sched.advance(time.Second)
	h.expectState(t, StateOverlayShown)

	h.fadeOut(t)
	if first.ReleaseCount() != 1 || second.ReleaseCount() != 1 {
		t.Fatalf("release counts first=%d second=%d, want 1 each", first.ReleaseCount(), second.ReleaseCount())
	}
}

func TestFadeCompletesBeforePendingCapture(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))

	h.c.OnPause()
	first := frame.New(64, 32)
	h.copier.complete(t, 0, platform.CopyResult{Frame: first})
	h.sched.waitAndRun(t)

	h.c.OnRendererReady()
	h.c.OnPause()
	h.sched.advance(DefaultFadeDuration + DefaultFrameInterval)

	h.expectState(t, StateCapturing)
	if first.ReleaseCount() != 1 {
		t.Fatalf("first release count = %d, want 1", first.ReleaseCount())
	}

	second := frame.New(64, 32)
	h.copier.complete(t, 1, platform.CopyResult{Frame: second})
	h.sched.waitAndRun(t)
	h.expectState(t, StateOverlayShown)

	h.fadeOut(t)
	if first.ReleaseCount() != 1 || second.ReleaseCount() != 1 {
		t.Fatalf("release counts first=%d second=%d, want 1 each", first.ReleaseCount(), second.ReleaseCount())
	}
}

func TestDuplicateReadyDuringFadeIgnored(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.ShowColdStartMask()
	h.c.OnRendererReady()
	h.sched.advance(DefaultFadeDuration / 2)
	alpha := h.overlay.alpha

	h.c.OnRendererReady()
	h.expectState(t, StateFading)
	if h.overlay.alpha != alpha {
		t.Fatalf("duplicate ready restarted the fade")
	}
	if h.obs.ready[true] != 1 || h.obs.ready[false] != 1 {
		t.Fatalf("ready counts = %v", h.obs.ready)
	}

	h.sched.advance(DefaultFadeDuration)
	h.expectState(t, StateIdle)
}

func TestFadeAlphaDecreasesMonotonically(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.ShowColdStartMask()
	h.overlay.calls = nil

	h.c.OnRendererReady()
	h.sched.advance(DefaultFadeDuration + DefaultFrameInterval)

	last := 1.0
	steps := 0
	for _, call := range h.overlay.calls {
		if call.op != "alpha" {
			continue
		}
		if call.alpha > last {
			t.Fatalf("alpha rose from %v to %v", last, call.alpha)
		}
		last = call.alpha
		steps++
	}
	if last != 0 {
		t.Fatalf("final alpha = %v, want 0", last)
	}
	if steps < 10 {
		t.Fatalf("fade used %d alpha steps, want a smooth animation", steps)
	}
}

func TestZeroFadeDurationHidesImmediately(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.SetTiming(0, DefaultFrameInterval)
	h.c.ShowColdStartMask()

	h.c.OnRendererReady()
	h.expectState(t, StateIdle)
	if h.overlay.visible {
		t.Fatalf("overlay still visible")
	}
}

func TestColdStartMaskSkippedWhileCapturing(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.OnPause()
	h.c.ShowColdStartMask()
	h.expectState(t, StateCapturing)
	if len(h.overlay.calls) != 0 {
		t.Fatalf("mask shown over an in-flight capture")
	}
}

func TestShutdownReleasesOwnedAndLateFrames(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))

	h.c.OnPause()
	shown := frame.New(64, 32)
	h.copier.complete(t, 0, platform.CopyResult{Frame: shown})
	h.sched.waitAndRun(t)

	h.c.OnRendererReady()
	h.c.OnPause()
	h.c.Shutdown()
	h.c.Shutdown()
	if shown.ReleaseCount() != 1 {
		t.Fatalf("shown release count = %d, want 1", shown.ReleaseCount())
	}

	late := frame.New(64, 32)
	h.copier.complete(t, 1, platform.CopyResult{Frame: late})
	h.sched.waitAndRun(t)
	if late.ReleaseCount() != 1 {
		t.Fatalf("late release count = %d, want 1", late.ReleaseCount())
	}

	h.sched.advance(time.Second)
	if shown.ReleaseCount() != 1 {
		t.Fatalf("fade released the frame again after shutdown")
	}
}

func TestCaptureAfterLoopClosedIsReleased(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.OnPause()
	h.sched.close()

	f := frame.New(8, 8)
	h.copier.complete(t, 0, platform.CopyResult{Frame: f})

	deadline := time.Now().Add(2 * time.Second)
	for !f.Released() {
		if time.Now().After(deadline) {
			t.Fatalf("frame not released after loop closed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStateTransitionsObserved(t *testing.T) {
	h := newHarness(hierarchyWithSurface(true))
	h.c.OnPause()
	h.copier.complete(t, 0, platform.CopyResult{Frame: frame.New(64, 32)})
	h.sched.waitAndRun(t)
	h.fadeOut(t)

	want := []State{StateCapturing, StateOverlayShown, StateFading, StateIdle}
	if len(h.obs.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", h.obs.transitions, want)
	}
	for i := range want {
		if h.obs.transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", h.obs.transitions, want)
		}
	}
	if h.c.Status().Cycles != 1 {
		t.Fatalf("cycles = %d, want 1", h.c.Status().Cycles)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:         "idle",
		StateCapturing:    "capturing",
		StateOverlayShown: "overlay_shown",
		StateFading:       "fading",
		State(42):         "unknown",
	} {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
