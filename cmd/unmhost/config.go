package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/unmhost/internal/config"
)

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  unmhost config validate [--path PATH]")
	fmt.Fprintln(w, "  unmhost config print [--path PATH] [--effective|--defaults]")
	fmt.Fprintln(w, "  unmhost config explain [--path PATH] <key>")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Keys: %s\n", strings.Join(config.Keys(), ", "))
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 {
		printConfigUsage(os.Stderr)
		return 2
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "validate":
		return configValidate(rest)
	case "print":
		return configPrint(rest)
	case "explain":
		return configExplain(rest)
	case "help", "-h", "--help":
		printConfigUsage(os.Stdout)
		return 0
	}
	fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n\n", sub)
	printConfigUsage(os.Stderr)
	return 2
}

// configFlags returns a flag set for a config subcommand with the shared
// --path flag registered.
func configFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("config "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file (default ~/.config/unmhost/config.yaml)")
	return fs, path
}

func configValidate(args []string) int {
	fs, path := configFlags("validate")
	if rc := parseNoArgs(fs, "config validate", args); rc >= 0 {
		return rc
	}
	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	switch n := len(res.Files); n {
	case 0:
		fmt.Println("config: ok (defaults and environment only)")
	default:
		fmt.Printf("config: ok (%d file(s))\n", n)
	}
	return 0
}

func configPrint(args []string) int {
	fs, path := configFlags("print")
	defaults := fs.Bool("defaults", false, "Print built-in defaults, ignoring files and environment")
	if rc := parseNoArgs(fs, "config print", args); rc >= 0 {
		return rc
	}

	cfg := config.DefaultConfig()
	if !*defaults {
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, f := range res.Files {
			fmt.Printf("# loaded: %s\n", f)
		}
		cfg = res.Config
	}
	return printYAML(cfg)
}

func configExplain(args []string) int {
	fs, path := configFlags("explain")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "config explain takes exactly one <key>")
		return 2
	}
	key := fs.Arg(0)

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	value, src, err := config.Explain(res, key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("key:    %s\n", key)
	fmt.Printf("source: %s\n", formatSource(src))
	fmt.Println("value:")
	return printYAML(value)
}

func printYAML(v any) int {
	out, err := yaml.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	os.Stdout.Write(out)
	return 0
}

// formatSource renders where a value came from: file:PATH[:LINE:COL],
// env:NAME or default.
func formatSource(src config.Source) string {
	if src.Kind == "" {
		src.Kind = config.SourceDefault
	}
	parts := []string{string(src.Kind)}
	switch src.Kind {
	case config.SourceFile:
		if src.File != "" {
			parts = append(parts, src.File)
		}
		if src.File != "" && src.Line > 0 {
			parts = append(parts, strconv.Itoa(src.Line), strconv.Itoa(src.Column))
		}
	case config.SourceEnv:
		if src.Name != "" {
			parts = append(parts, src.Name)
		}
	}
	return strings.Join(parts, ":")
}
