package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/1broseidon/unmhost/internal/ipc"
	"github.com/1broseidon/unmhost/internal/pacing"
	"github.com/1broseidon/unmhost/internal/tui"
)

const (
	formatAuto = "auto"
	formatText = "text"
	formatJSON = "json"
)

// resolveFormat picks text for terminals and JSON for pipes when format is auto.
func resolveFormat(format string, isTTY bool) (string, error) {
	switch format {
	case formatText, formatJSON:
		return format, nil
	case formatAuto, "":
		if isTTY {
			return formatText, nil
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: auto, text, json)", format)
	}
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runLifecycle(name string, args []string) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: unmhost %s\n", name)
		fmt.Fprintln(os.Stderr, "")
		switch name {
		case "ready":
			fmt.Fprintln(os.Stderr, "Tell the host the renderer has produced a frame.")
		case "pause":
			fmt.Fprintln(os.Stderr, "Deliver a pause event, as if the host window was hidden.")
		case "resume":
			fmt.Fprintln(os.Stderr, "Deliver a resume event, as if the host window came back.")
		}
	}
	if code := parseNoArgs(fs, name, args); code >= 0 {
		return code
	}

	client := ipc.NewClient()
	var err error
	switch name {
	case "ready":
		err = client.Ready()
	case "pause":
		err = client.Pause()
	case "resume":
		err = client.Resume()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runFocus(args []string) int {
	fs := flag.NewFlagSet("focus", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	lost := fs.Bool("lost", false, "Report focus lost instead of gained")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost focus [--lost]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Deliver a focus change. Gaining focus reapplies the window policy.")
	}
	if code := parseNoArgs(fs, "focus", args); code >= 0 {
		return code
	}

	if err := ipc.NewClient().Focus(!*lost); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	format := fs.String("format", formatAuto, "Output format: auto, text or json")
	asJSON := fs.Bool("json", false, "Shorthand for --format json")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost status [--json | --format FORMAT]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show host status via IPC. Prints JSON when stdout is not a terminal.")
	}
	if code := parseNoArgs(fs, "status", args); code >= 0 {
		return code
	}
	if *asJSON {
		*format = formatJSON
	}
	out, err := resolveFormat(*format, stdoutIsTerminal())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if out == formatJSON {
		if err := writeJSON(os.Stdout, status); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	printStatus(os.Stdout, status)
	return 0
}

func printStatus(w io.Writer, s *ipc.StatusData) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "state:\t%s\n", s.State)
	fmt.Fprintf(tw, "overlay:\t%s\n", overlaySummary(s))
	fmt.Fprintf(tw, "has_frame:\t%v\n", s.HasFrame)
	fmt.Fprintf(tw, "capture_pending:\t%v\n", s.CapturePending)
	fmt.Fprintf(tw, "cycles:\t%d\n", s.Cycles)
	fmt.Fprintf(tw, "refresh_rate:\t%.2f Hz\n", s.RefreshRate)
	fmt.Fprintf(tw, "uptime:\t%s\n", time.Duration(s.UptimeSeconds)*time.Second)
	tw.Flush()
}

func overlaySummary(s *ipc.StatusData) string {
	if !s.OverlayVisible {
		return "hidden"
	}
	return fmt.Sprintf("visible (alpha %.2f)", s.OverlayAlpha)
}

func runRefreshRate(args []string) int {
	fs := flag.NewFlagSet("refresh-rate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost refresh-rate [--json]")
	}
	if code := parseNoArgs(fs, "refresh-rate", args); code >= 0 {
		return code
	}

	data, err := ipc.NewClient().GetRefreshRate()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		if err := writeJSON(os.Stdout, data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	fmt.Printf("refresh_rate:   %.2f Hz\n", data.RefreshRate)
	fmt.Printf("target_fps:     %s\n", describeTarget(data.TargetFPS))
	fmt.Printf("frame_interval: %s\n", data.FrameInterval())
	return 0
}

func describeTarget(fps int) string {
	if fps <= 0 {
		return "display"
	}
	return fmt.Sprintf("%d", fps)
}

func runDisplays(args []string) int {
	fs := flag.NewFlagSet("displays", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost displays [--json]")
	}
	if code := parseNoArgs(fs, "displays", args); code >= 0 {
		return code
	}

	data, err := ipc.NewClient().GetDisplays()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		if err := writeJSON(os.Stdout, data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGEOMETRY\tUSABLE\tRATE")
	for _, d := range data.Displays {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\n", d.ID, d.Name,
			geometry(d.Width, d.Height, d.X, d.Y),
			geometry(d.UsableWidth, d.UsableHeight, d.UsableX, d.UsableY),
			d.RefreshRate)
	}
	tw.Flush()
	return 0
}

// geometry formats a rectangle the way X11 tools do: WxH+X+Y.
func geometry(w, h, x, y int) string {
	return fmt.Sprintf("%dx%d+%d+%d", w, h, x, y)
}

// remoteRate asks the running host for its refresh rate. Errors read as 0,
// which the pacer treats as unknown.
type remoteRate struct {
	client *ipc.Client
}

func (r remoteRate) QueryRefreshRate() float64 {
	data, err := r.client.GetRefreshRate()
	if err != nil {
		return 0
	}
	return data.RefreshRate
}

func runPace(args []string) int {
	fs := flag.NewFlagSet("pace", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	frames := fs.Int("frames", 120, "Number of frames to pace")
	fps := fs.Int("fps", 0, "Target frame rate (0 follows the display)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost pace [--frames N] [--fps N]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Pace frames at the host's display rate and report timing.")
	}
	if code := parseNoArgs(fs, "pace", args); code >= 0 {
		return code
	}
	if *frames <= 0 {
		fmt.Fprintln(os.Stderr, "--frames must be positive")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pacer := pacing.New(remoteRate{client: ipc.NewClient()}, *fps)
	start := time.Now()
	var worst time.Duration
	for range *frames {
		if err := pacer.Wait(ctx); err != nil {
			break
		}
		worst = max(worst, pacer.Stats().Oversleep)
	}
	stats := pacer.Stats()
	elapsed := time.Since(start)

	fmt.Printf("frames:         %d\n", stats.Frames)
	fmt.Printf("frame_interval: %s\n", stats.Interval)
	if stats.Frames > 1 {
		fmt.Printf("average:        %s\n", elapsed/time.Duration(stats.Frames))
	}
	fmt.Printf("worst_overrun:  %s\n", worst)
	return 0
}

func runSubscribe(args []string) int {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost subscribe")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print lifecycle events from the host as JSON lines until interrupted.")
	}
	if code := parseNoArgs(fs, "subscribe", args); code >= 0 {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err := ipc.NewClient().Subscribe(ctx, func(ev ipc.LifecycleEvent) {
		enc.Encode(ev)
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost reload")
	}
	if code := parseNoArgs(fs, "reload", args); code >= 0 {
		return code
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/unmhost/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost tui [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive monitor for a running host. Works offline for editing settings.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  1-3, tab   Switch between Status, Events and Settings")
		fmt.Fprintln(os.Stderr, "  r p u      Send ready, pause, resume (Status tab)")
		fmt.Fprintln(os.Stderr, "  f F        Send focus gained / lost (Status tab)")
		fmt.Fprintln(os.Stderr, "  e          Edit settings (Settings tab)")
		fmt.Fprintln(os.Stderr, "  ctrl-s     Save settings and reload the host")
		fmt.Fprintln(os.Stderr, "  q, ctrl-c  Quit")
	}
	if code := parseNoArgs(fs, "tui", args); code >= 0 {
		return code
	}

	if err := tui.Run(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
