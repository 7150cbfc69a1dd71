//go:build linux

package platform

import (
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/unmhost/internal/hostevent"
	"github.com/1broseidon/unmhost/internal/x11"
)

type fakeEvents struct {
	win xproto.Window
	ev  x11.WindowEvents
}

func (f *fakeEvents) WatchWindow(win xproto.Window, ev x11.WindowEvents) error {
	f.win, f.ev = win, ev
	return nil
}

// watch attaches a backend to a scripted event source and returns the
// source and the kinds dispatched so far.
func watch(t *testing.T) (*fakeEvents, *[]string) {
	t.Helper()
	src := &fakeEvents{}
	b := &LinuxBackend{
		events: src,
		host:   0x400001,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	var got []string
	err := b.WatchLifecycle(func(ev hostevent.Event) {
		name := ev.Kind.String()
		if ev.Kind == hostevent.FocusChanged && !ev.HasFocus {
			name += ":lost"
		}
		got = append(got, name)
	})
	if err != nil {
		t.Fatalf("WatchLifecycle: %v", err)
	}
	if src.win != 0x400001 {
		t.Fatalf("watched window %#x, want host", src.win)
	}
	return src, &got
}

func expectKinds(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestLifecycleIconifyPausesBeforeUnmap(t *testing.T) {
	src, got := watch(t)

	src.ev.Iconify()
	expectKinds(t, *got, "pause")

	// The window manager's follow-up notifications are the same hide.
	src.ev.Hidden(true)
	src.ev.Unmap()
	expectKinds(t, *got, "pause")

	src.ev.Map()
	src.ev.Hidden(false)
	expectKinds(t, *got, "pause", "resume")
}

func TestLifecycleHiddenWithoutUnmap(t *testing.T) {
	src, got := watch(t)

	src.ev.Hidden(true)
	src.ev.Hidden(true)
	src.ev.Hidden(false)
	expectKinds(t, *got, "pause", "resume")
}

func TestLifecycleUnmapIsFallback(t *testing.T) {
	src, got := watch(t)

	src.ev.Unmap()
	expectKinds(t, *got, "pause")

	// A state change while withdrawn is not a show.
	src.ev.Hidden(false)
	expectKinds(t, *got, "pause")

	src.ev.Map()
	expectKinds(t, *got, "pause", "resume")
}

func TestLifecycleInitialMapIsNotResume(t *testing.T) {
	src, got := watch(t)
	src.ev.Map()
	src.ev.Hidden(false)
	expectKinds(t, *got)
}

func TestLifecycleFocusAndDestroy(t *testing.T) {
	src, got := watch(t)
	src.ev.Focus(true)
	src.ev.Focus(false)
	src.ev.Destroy()
	expectKinds(t, *got, "focus", "focus:lost", "destroy")
}
