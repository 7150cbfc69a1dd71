package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/unmhost/internal/config"
	"github.com/1broseidon/unmhost/internal/daemon"
	"github.com/1broseidon/unmhost/internal/hostevent"
	"github.com/1broseidon/unmhost/internal/metrics"
	"github.com/1broseidon/unmhost/internal/platform"
	"github.com/1broseidon/unmhost/internal/runtimepath"
)

func runHost(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/unmhost/config.yaml)")
	display := fs.String("display", "", "X display (overrides config and $DISPLAY)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: unmhost run [--path PATH] [--display DISPLAY]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Attach to the host window and manage its lifecycle until it is destroyed.")
		fmt.Fprintln(os.Stderr, "SIGHUP reloads configuration; SIGINT and SIGTERM shut down.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if code := parseNoArgs(fs, "run", args); code >= 0 {
		return code
	}

	configPath := *path
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			log.Printf("Failed to resolve config path: %v", err)
			return 1
		}
		configPath = p
	}

	res, err := config.LoadFromPath(configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	cfg := res.Config
	if *display != "" {
		cfg.Display = *display
	}

	level := new(slog.LevelVar)
	if lvl, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
		level.Set(lvl)
	}
	out, closeLog, err := openLogOutput(cfg.LogFile)
	if err != nil {
		log.Printf("Failed to open log file: %v", err)
		return 1
	}
	defer closeLog()
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	lockPath, err := runtimepath.LockPath()
	if err != nil {
		logger.Error("runtime dir unavailable", "error", err)
		return 1
	}
	lock, err := runtimepath.AcquireLock(lockPath)
	if err != nil {
		if errors.Is(err, runtimepath.ErrLocked) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		logger.Error("failed to take runtime lock", "error", err)
		return 1
	}
	defer lock.Release()

	backend, err := platform.NewLinuxBackend(platform.LinuxOptions{
		Display:      cfg.Display,
		WindowTitle:  cfg.WindowTitle,
		SurfaceClass: cfg.SurfaceClass,
		Logger:       logger.With("component", "x11"),
	})
	if err != nil {
		logger.Error("failed to attach to host window", "error", err)
		return 1
	}
	defer backend.Disconnect()
	logger.Info("attached to host window", "window", uint32(backend.HostWindowID()), "title", cfg.WindowTitle)

	host, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Backend:    backend,
		Recorder:   metrics.New(),
		Level:      level,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create host", "error", err)
		return 1
	}

	if err := backend.WatchLifecycle(func(ev hostevent.Event) { host.Dispatch(ev) }); err != nil {
		logger.Error("failed to watch host window", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					logger.Info("received SIGHUP, reloading config")
					if err := host.Reload(); err != nil {
						logger.Warn("config reload failed", "error", err)
					}
					continue
				}
				logger.Info("received signal, shutting down", "signal", sig.String())
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		backend.EventLoop()
	}()

	runErr := host.Run(ctx)
	backend.Quit()
	<-eventsDone

	if runErr != nil {
		logger.Error("host stopped", "error", runErr)
		return 1
	}
	logger.Info("host stopped")
	return 0
}

func openLogOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
