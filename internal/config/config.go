package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CutoutMode names how content may extend into a display cutout.
type CutoutMode string

const (
	CutoutDefault    CutoutMode = "default"
	CutoutShortEdges CutoutMode = "short-edges"
	CutoutNever      CutoutMode = "never"
	CutoutAlways     CutoutMode = "always"
)

const (
	DefaultWindowTitle         = "unm"
	DefaultSurfaceClass        = "UnmSurface"
	DefaultFadeDuration        = 250 * time.Millisecond
	DefaultFadeFrameInterval   = 16 * time.Millisecond
	DefaultFallbackRefreshRate = 60.0
	DefaultRefreshPollInterval = 5 * time.Second
)

// Config is the effective host configuration.
type Config struct {
	// Display overrides $DISPLAY for the X connection.
	Display string `yaml:"display"`
	// WindowTitle selects the host window (_NET_WM_NAME or WM_NAME, exact match).
	WindowTitle string `yaml:"window_title"`
	// SurfaceClass is the WM_CLASS of the render surface child window.
	SurfaceClass string `yaml:"surface_class"`

	FadeDuration      time.Duration `yaml:"fade_duration"`
	FadeFrameInterval time.Duration `yaml:"fade_frame_interval"`
	ColdStartMask     bool          `yaml:"cold_start_mask"`

	Immersive           bool       `yaml:"immersive"`
	CutoutMode          CutoutMode `yaml:"cutout_mode"`
	FallbackRefreshRate float64    `yaml:"fallback_refresh_rate"`
	// TargetFPS <= 0 means pace frames at the display refresh rate.
	TargetFPS           int           `yaml:"target_fps"`
	RefreshPollInterval time.Duration `yaml:"refresh_poll_interval"`

	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		WindowTitle:         DefaultWindowTitle,
		SurfaceClass:        DefaultSurfaceClass,
		FadeDuration:        DefaultFadeDuration,
		FadeFrameInterval:   DefaultFadeFrameInterval,
		ColdStartMask:       true,
		Immersive:           true,
		CutoutMode:          CutoutShortEdges,
		FallbackRefreshRate: DefaultFallbackRefreshRate,
		TargetFPS:           0,
		RefreshPollInterval: DefaultRefreshPollInterval,
		LogLevel:            "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WindowTitle) == "" {
		return &ValidationError{Path: "window_title", Err: fmt.Errorf("must not be empty")}
	}
	if strings.TrimSpace(c.SurfaceClass) == "" {
		return &ValidationError{Path: "surface_class", Err: fmt.Errorf("must not be empty")}
	}
	if c.FadeDuration < 0 || c.FadeDuration > 10*time.Second {
		return &ValidationError{Path: "fade_duration", Err: fmt.Errorf("must be between 0s and 10s, got %s", c.FadeDuration)}
	}
	if c.FadeFrameInterval <= 0 || c.FadeFrameInterval > time.Second {
		return &ValidationError{Path: "fade_frame_interval", Err: fmt.Errorf("must be between 1ns and 1s, got %s", c.FadeFrameInterval)}
	}
	switch c.CutoutMode {
	case CutoutDefault, CutoutShortEdges, CutoutNever, CutoutAlways:
	default:
		return &ValidationError{Path: "cutout_mode", Err: fmt.Errorf("invalid value %q (valid: default, short-edges, never, always)", c.CutoutMode)}
	}
	if c.FallbackRefreshRate <= 0 || math.IsNaN(c.FallbackRefreshRate) || math.IsInf(c.FallbackRefreshRate, 0) {
		return &ValidationError{Path: "fallback_refresh_rate", Err: fmt.Errorf("must be a positive number")}
	}
	if c.TargetFPS > 1000 {
		return &ValidationError{Path: "target_fps", Err: fmt.Errorf("must be at most 1000, got %d", c.TargetFPS)}
	}
	if c.RefreshPollInterval < 0 {
		return &ValidationError{Path: "refresh_poll_interval", Err: fmt.Errorf("must not be negative")}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return &ValidationError{Path: "log_level", Err: err}
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
}

// Save writes the configuration to the default config path.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
