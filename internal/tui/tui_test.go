package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/unmhost/internal/config"
	"github.com/1broseidon/unmhost/internal/ipc"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   []string
	down    bool
	reloads int
}

func (f *fakeClient) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.down {
		return errors.New("host down")
	}
	return nil
}

func (f *fakeClient) GetStatus() (*ipc.StatusData, error) {
	if err := f.record("status"); err != nil {
		return nil, err
	}
	return &ipc.StatusData{State: "idle", RefreshRate: 60}, nil
}

func (f *fakeClient) GetRefreshRate() (*ipc.RefreshRateData, error) {
	if err := f.record("rate"); err != nil {
		return nil, err
	}
	return &ipc.RefreshRateData{RefreshRate: 60, FrameIntervalNS: int64(time.Second / 60)}, nil
}

func (f *fakeClient) Ready() error              { return f.record("ready") }
func (f *fakeClient) Pause() error              { return f.record("pause") }
func (f *fakeClient) Resume() error             { return f.record("resume") }
func (f *fakeClient) Focus(hasFocus bool) error { return f.record("focus:" + boolName(hasFocus)) }

func (f *fakeClient) Reload() error {
	f.mu.Lock()
	f.reloads++
	f.mu.Unlock()
	return f.record("reload")
}

func boolName(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testModel(t *testing.T, client Client) model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := newModel(path, client)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(model)
}

func TestStatusPollMarksConnected(t *testing.T) {
	client := &fakeClient{}
	m := testModel(t, client)

	msg := m.pollStatus()()
	next, _ := m.Update(msg)
	m = next.(model)
	if !m.connected {
		t.Fatal("expected connected after successful poll")
	}
	if m.statusTab.State() != "idle" {
		t.Fatalf("state = %q, want idle", m.statusTab.State())
	}

	client.down = true
	next, _ = m.Update(m.pollStatus()())
	m = next.(model)
	if m.connected {
		t.Fatal("expected disconnected after failed poll")
	}
	if m.statusTab.State() != "" {
		t.Fatalf("stale state %q kept after failed poll", m.statusTab.State())
	}
}

func TestStatusKeysSendLifecycleCommands(t *testing.T) {
	client := &fakeClient{}
	m := testModel(t, client)

	for _, k := range []string{"r", "p", "u", "f", "F"} {
		_, cmd := m.Update(key(k))
		if cmd == nil {
			t.Fatalf("key %q produced no command", k)
		}
		msg := cmd()
		if am, ok := msg.(actionMsg); !ok || am.err != nil {
			t.Fatalf("key %q: got %#v", k, msg)
		}
	}

	want := []string{"ready", "pause", "resume", "focus:true", "focus:false"}
	if strings.Join(client.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", client.calls, want)
	}
}

func TestActionKeysIgnoredOffStatusTab(t *testing.T) {
	client := &fakeClient{}
	m := testModel(t, client)

	next, _ := m.Update(key("2"))
	m = next.(model)
	if m.activeTab != TabEvents {
		t.Fatalf("activeTab = %v, want Events", m.activeTab)
	}
	m.Update(key("p"))
	if len(client.calls) != 0 {
		t.Fatalf("lifecycle command sent from events tab: %v", client.calls)
	}
}

func TestTabCycling(t *testing.T) {
	m := testModel(t, &fakeClient{})
	for _, want := range []Tab{TabEvents, TabSettings, TabStatus} {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = next.(model)
		if m.activeTab != want {
			t.Fatalf("activeTab = %v, want %v", m.activeTab, want)
		}
	}
}

func TestEventsTabBounded(t *testing.T) {
	e := NewEventsTab()
	e, _ = e.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	base := time.Now()
	for i := range maxEvents + 5 {
		e.Add(ipc.LifecycleEvent{Event: "pause", Time: base.Add(time.Duration(i) * time.Millisecond)})
	}
	if e.Len() != maxEvents {
		t.Fatalf("Len = %d, want %d", e.Len(), maxEvents)
	}
	first, ok := e.list.Items()[0].(eventItem)
	if !ok {
		t.Fatal("unexpected item type")
	}
	if want := base.Add(time.Duration(maxEvents+4) * time.Millisecond); !first.ev.Time.Equal(want) {
		t.Fatalf("newest event not first: %v", first.ev.Time)
	}
}

func TestEventItemDescription(t *testing.T) {
	focused := true
	item := eventItem{ev: ipc.LifecycleEvent{Event: "focus", HasFocus: &focused, Time: time.Now()}}
	if !strings.Contains(item.Description(), "has_focus=true") {
		t.Fatalf("description = %q", item.Description())
	}
	item = eventItem{ev: ipc.LifecycleEvent{Event: "refresh_rate", RefreshRate: 144, Time: time.Now()}}
	if !strings.Contains(item.Description(), "144.00 Hz") {
		t.Fatalf("description = %q", item.Description())
	}
}

func TestSettingsApplyForm(t *testing.T) {
	cfg := config.DefaultConfig()
	g := NewSettingsTab(cfg)
	g.loadFormValues()

	g.fFadeDuration = "400ms"
	g.fTargetFPS = "30"
	g.fFallbackRate = "-1"
	g.fCutoutMode = string(config.CutoutNever)
	g.fImmersive = !cfg.Immersive
	g.applyForm()

	if cfg.FadeDuration != 400*time.Millisecond {
		t.Fatalf("FadeDuration = %v", cfg.FadeDuration)
	}
	if cfg.TargetFPS != 30 {
		t.Fatalf("TargetFPS = %d", cfg.TargetFPS)
	}
	if cfg.FallbackRefreshRate != config.DefaultFallbackRefreshRate {
		t.Fatalf("invalid fallback rate applied: %v", cfg.FallbackRefreshRate)
	}
	if cfg.CutoutMode != config.CutoutNever {
		t.Fatalf("CutoutMode = %q", cfg.CutoutMode)
	}
}

func TestFormValidators(t *testing.T) {
	if validateDuration("1s") != nil || validateDuration("soon") == nil || validateDuration("-1s") == nil {
		t.Fatal("validateDuration")
	}
	if validateNonNegativeInt("0") != nil || validateNonNegativeInt("-2") == nil || validateNonNegativeInt("x") == nil {
		t.Fatal("validateNonNegativeInt")
	}
	if validatePositiveFloat("59.94") != nil || validatePositiveFloat("0") == nil {
		t.Fatal("validatePositiveFloat")
	}
}

func TestSaveWritesConfigAndReloads(t *testing.T) {
	client := &fakeClient{}
	m := testModel(t, client)
	next, _ := m.Update(m.pollStatus()())
	m = next.(model)

	m.result.Config.TargetFPS = 45
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(model)
	if m.saveOverlay.phase != savePreview {
		t.Fatalf("phase = %v, want preview", m.saveOverlay.phase)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if !m.saveOverlay.SaveSucceeded() {
		t.Fatalf("save failed: %v", m.saveOverlay.err)
	}
	if client.reloads != 1 {
		t.Fatalf("reloads = %d, want 1", client.reloads)
	}

	res, err := config.LoadFromPath(m.configPath)
	if err != nil {
		t.Fatalf("reload saved file: %v", err)
	}
	if res.Config.TargetFPS != 45 {
		t.Fatalf("saved TargetFPS = %d, want 45", res.Config.TargetFPS)
	}
}

func TestSaveWithoutChanges(t *testing.T) {
	m := testModel(t, &fakeClient{})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(model)
	if m.saveOverlay.phase != saveResult || m.saveOverlay.err == nil {
		t.Fatal("expected 'no changes' result")
	}
	if _, err := os.Stat(m.configPath); !os.IsNotExist(err) {
		t.Fatalf("config file written without changes: %v", err)
	}
}

func TestComputeChanges(t *testing.T) {
	a := config.DefaultConfig()
	b := cloneConfig(a)
	if changes := computeChanges(a, b); len(changes) != 0 {
		t.Fatalf("identical configs differ: %v", changes)
	}

	b.LogLevel = "debug"
	b.MetricsAddr = "127.0.0.1:9100"
	changes := computeChanges(a, b)
	if len(changes) != 2 {
		t.Fatalf("changes = %v, want 2", changes)
	}
	// Keys come back sorted.
	if changes[0].key != "log_level" || changes[0].old != "info" || changes[0].new != "debug" {
		t.Fatalf("changes[0] = %+v", changes[0])
	}
	if changes[1].key != "metrics_addr" || changes[1].old != `""` {
		t.Fatalf("changes[1] = %+v", changes[1])
	}
}

type scriptedSubscriber struct {
	calls int
}

func (s *scriptedSubscriber) Subscribe(ctx context.Context, fn func(ipc.LifecycleEvent)) error {
	s.calls++
	fn(ipc.LifecycleEvent{Event: "resume"})
	return errors.New("closed")
}

func TestForwardEventsReportsDrop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &scriptedSubscriber{}
	var got []tea.Msg
	done := make(chan struct{})
	go func() {
		defer close(done)
		forwardEvents(ctx, sub, func(msg tea.Msg) {
			got = append(got, msg)
			if len(got) == 2 {
				cancel()
			}
		})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		cancel()
		t.Fatal("forwardEvents did not stop")
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if ev, ok := got[0].(eventMsg); !ok || ev.Event != "resume" {
		t.Fatalf("first message = %#v", got[0])
	}
	if sm, ok := got[1].(subscriptionMsg); !ok || sm.err == nil {
		t.Fatalf("second message = %#v", got[1])
	}
}
