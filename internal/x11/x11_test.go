package x11

import (
	"math"
	"testing"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

func TestModeRefreshRate(t *testing.T) {
	tests := []struct {
		name string
		mode randr.ModeInfo
		want float64
	}{
		{
			name: "1080p60",
			mode: randr.ModeInfo{DotClock: 148500000, Htotal: 2200, Vtotal: 1125},
			want: 60,
		},
		{
			name: "1440p144",
			mode: randr.ModeInfo{DotClock: 586590000, Htotal: 2720, Vtotal: 1497},
			want: 144.06,
		},
		{
			name: "interlaced doubles the field rate",
			mode: randr.ModeInfo{DotClock: 74250000, Htotal: 2200, Vtotal: 1125, ModeFlags: randr.ModeFlagInterlace},
			want: 60,
		},
		{
			name: "doublescan halves the rate",
			mode: randr.ModeInfo{DotClock: 148500000, Htotal: 2200, Vtotal: 1125, ModeFlags: randr.ModeFlagDoubleScan},
			want: 30,
		},
		{
			name: "zero totals",
			mode: randr.ModeInfo{DotClock: 148500000},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := modeRefreshRate(tt.mode)
			if math.Abs(got-tt.want) > 0.01 {
				t.Fatalf("modeRefreshRate() = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

func TestMonitorAt(t *testing.T) {
	monitors := []Monitor{
		{ID: 0, Name: "DP-1", X: 0, Y: 0, Width: 1920, Height: 1080},
		{ID: 1, Name: "HDMI-1", X: 1920, Y: 0, Width: 2560, Height: 1440},
	}
	if m := monitorAt(monitors, 2000, 100); m == nil || m.Name != "HDMI-1" {
		t.Fatalf("expected HDMI-1, got %+v", m)
	}
	if m := monitorAt(monitors, 1919, 1079); m == nil || m.Name != "DP-1" {
		t.Fatalf("expected DP-1, got %+v", m)
	}
	if m := monitorAt(monitors, 100, 1200); m != nil {
		t.Fatalf("expected no monitor below DP-1, got %+v", m)
	}
}

func TestClipRect(t *testing.T) {
	x, y, w, h := clipRect(0, 0, 1920, 1080, 0, 32, 1920, 1048)
	if x != 0 || y != 32 || w != 1920 || h != 1048 {
		t.Fatalf("clipRect = %d,%d %dx%d", x, y, w, h)
	}
	// Work area on another monitor leaves the monitor untouched.
	x, y, w, h = clipRect(1920, 0, 1920, 1080, 0, 0, 1920, 1048)
	if x != 1920 || y != 0 || w != 1920 || h != 1080 {
		t.Fatalf("disjoint clipRect = %d,%d %dx%d", x, y, w, h)
	}
}

func TestRowsPerRequest(t *testing.T) {
	if got := rowsPerRequest(1920, 262140); got != 34 {
		t.Fatalf("rowsPerRequest(1920) = %d, want 34", got)
	}
	if got := rowsPerRequest(100000, 262140); got != 1 {
		t.Fatalf("oversized rows should still send one row, got %d", got)
	}
	if got := rowsPerRequest(0, 262140); got != 1 {
		t.Fatalf("zero width = %d, want 1", got)
	}
}

func TestPixelConversionRoundTrip(t *testing.T) {
	rgba := []byte{
		0x10, 0x20, 0x30, 0x80,
		0xff, 0x00, 0x7f, 0x00,
	}
	for _, lsb := range []bool{true, false} {
		wire := make([]byte, len(rgba))
		rgbaToZPixmap(wire, rgba, 2, lsb)
		back := make([]byte, len(rgba))
		zpixmapToRGBA(back, wire, 2, lsb)
		for i := 0; i < 2; i++ {
			p := back[i*4 : i*4+4]
			want := rgba[i*4 : i*4+4]
			if p[0] != want[0] || p[1] != want[1] || p[2] != want[2] || p[3] != 0xff {
				t.Fatalf("lsb=%v pixel %d = %v, want rgb %v opaque", lsb, i, p, want[:3])
			}
		}
	}
}

func TestZPixmapLSBIsBGRX(t *testing.T) {
	dst := make([]byte, 4)
	zpixmapToRGBA(dst, []byte{0x01, 0x02, 0x03, 0x00}, 1, true)
	if dst[0] != 0x03 || dst[1] != 0x02 || dst[2] != 0x01 || dst[3] != 0xff {
		t.Fatalf("BGRX decode = %v", dst)
	}
}

func TestFocusRelevant(t *testing.T) {
	tests := []struct {
		mode, detail byte
		want         bool
	}{
		{xproto.NotifyModeNormal, xproto.NotifyDetailNonlinear, true},
		{xproto.NotifyModeWhileGrabbed, xproto.NotifyDetailAncestor, true},
		{xproto.NotifyModeGrab, xproto.NotifyDetailNonlinear, false},
		{xproto.NotifyModeUngrab, xproto.NotifyDetailNonlinear, false},
		{xproto.NotifyModeNormal, xproto.NotifyDetailPointer, false},
		{xproto.NotifyModeNormal, xproto.NotifyDetailInferior, false},
	}
	for _, tt := range tests {
		if got := focusRelevant(tt.mode, tt.detail); got != tt.want {
			t.Errorf("focusRelevant(%d, %d) = %v, want %v", tt.mode, tt.detail, got, tt.want)
		}
	}
}

func TestMatchesClass(t *testing.T) {
	if !matchesClass("UnmSurface", "unm", "unmsurface") {
		t.Fatalf("class match should ignore case")
	}
	if !matchesClass("Other", "UnmSurface", "UnmSurface") {
		t.Fatalf("instance should match")
	}
	if matchesClass("", "", "") {
		t.Fatalf("empty wanted class must not match")
	}
}

func TestBackgroundValues(t *testing.T) {
	const black = 0x000000ff // a PseudoColor server may put black anywhere
	mask, values := backgroundValues(0, black)
	if mask != xproto.CwBackPixmap|xproto.CwBackPixel {
		t.Fatalf("mask = %#x", mask)
	}
	if len(values) != 2 || values[0] != xproto.BackPixmapNone || values[1] != black {
		t.Fatalf("values = %v, want [none black]", values)
	}

	mask, values = backgroundValues(xproto.Pixmap(77), black)
	if mask != xproto.CwBackPixmap || len(values) != 1 || values[0] != 77 {
		t.Fatalf("pixmap background = %#x %v", mask, values)
	}
}

func TestHiddenState(t *testing.T) {
	if !hiddenState([]string{"_NET_WM_STATE_FULLSCREEN", "_NET_WM_STATE_HIDDEN"}) {
		t.Fatal("hidden state not detected")
	}
	if hiddenState([]string{"_NET_WM_STATE_FULLSCREEN"}) || hiddenState(nil) {
		t.Fatal("visible window reported hidden")
	}
}

func TestIconifyRequest(t *testing.T) {
	const (
		host        = xproto.Window(0x400001)
		changeState = xproto.Atom(311)
	)
	msg := func(win xproto.Window, typ xproto.Atom, format byte, state uint32) xproto.ClientMessageEvent {
		return xproto.ClientMessageEvent{
			Window: win,
			Type:   typ,
			Format: format,
			Data:   xproto.ClientMessageDataUnionData32New([]uint32{state, 0, 0, 0, 0}),
		}
	}

	tests := []struct {
		name string
		ev   xproto.ClientMessageEvent
		want bool
	}{
		{"iconify host", msg(host, changeState, 32, 3), true},
		{"other window", msg(host+1, changeState, 32, 3), false},
		{"other message", msg(host, changeState+1, 32, 3), false},
		{"normal state", msg(host, changeState, 32, 1), false},
		{"wrong format", msg(host, changeState, 8, 3), false},
	}
	for _, tt := range tests {
		if got := iconifyRequest(tt.ev, host, changeState); got != tt.want {
			t.Errorf("%s: iconifyRequest = %v, want %v", tt.name, got, tt.want)
		}
	}
}
