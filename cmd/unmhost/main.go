package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runHost(os.Args[2:]))
	case "ready", "pause", "resume":
		os.Exit(runLifecycle(os.Args[1], os.Args[2:]))
	case "focus":
		os.Exit(runFocus(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "refresh-rate":
		os.Exit(runRefreshRate(os.Args[2:]))
	case "displays":
		os.Exit(runDisplays(os.Args[2:]))
	case "pace":
		os.Exit(runPace(os.Args[2:]))
	case "subscribe":
		os.Exit(runSubscribe(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: unmhost <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run                 Attach to the host window and run (foreground)")
	fmt.Fprintln(w, "  status              Show transition state")
	fmt.Fprintln(w, "  refresh-rate        Show display refresh rate and frame budget")
	fmt.Fprintln(w, "  displays            List displays")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  ready               Signal that the renderer drew its first frame")
	fmt.Fprintln(w, "  pause               Deliver a pause to the host")
	fmt.Fprintln(w, "  resume              Deliver a resume to the host")
	fmt.Fprintln(w, "  focus               Deliver a focus change to the host")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  pace                Run the frame pacer against the host refresh rate")
	fmt.Fprintln(w, "  subscribe           Stream lifecycle events as JSON lines")
	fmt.Fprintln(w, "  reload              Reload configuration")
	fmt.Fprintln(w, "  tui                 Open interactive monitor")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'unmhost <command> --help' for command-specific options.")
}

// parseNoArgs parses a flag set for a command that takes no positional
// arguments. It returns -1 when the caller should continue.
func parseNoArgs(fs *flag.FlagSet, name string, args []string) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", name)
		fs.Usage()
		return 2
	}
	return -1
}
