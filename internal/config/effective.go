package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Source.Kind == SourceEnv && e.Source.Name != "" {
		return fmt.Sprintf("%s (from %s): %v", e.Path, e.Source.Name, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig applies a merged raw layer on top of the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Display != nil {
		cfg.Display = strings.TrimSpace(*raw.Display)
	}
	if raw.WindowTitle != nil {
		cfg.WindowTitle = *raw.WindowTitle
	}
	if raw.SurfaceClass != nil {
		cfg.SurfaceClass = strings.TrimSpace(*raw.SurfaceClass)
	}
	if raw.FadeDuration != nil {
		cfg.FadeDuration = *raw.FadeDuration
	}
	if raw.FadeFrameInterval != nil {
		cfg.FadeFrameInterval = *raw.FadeFrameInterval
	}
	if raw.ColdStartMask != nil {
		cfg.ColdStartMask = *raw.ColdStartMask
	}
	if raw.Immersive != nil {
		cfg.Immersive = *raw.Immersive
	}
	if raw.CutoutMode != nil {
		mode, err := normalizeCutoutMode(*raw.CutoutMode)
		if err != nil {
			return nil, &ValidationError{Path: "cutout_mode", Err: err}
		}
		cfg.CutoutMode = mode
	}
	if raw.FallbackRefreshRate != nil {
		cfg.FallbackRefreshRate = *raw.FallbackRefreshRate
	}
	if raw.TargetFPS != nil {
		cfg.TargetFPS = *raw.TargetFPS
	}
	if raw.RefreshPollInterval != nil {
		cfg.RefreshPollInterval = *raw.RefreshPollInterval
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}
	if raw.LogFile != nil {
		path, err := expandHome(strings.TrimSpace(*raw.LogFile))
		if err != nil {
			return nil, &ValidationError{Path: "log_file", Err: err}
		}
		cfg.LogFile = path
	}
	if raw.MetricsAddr != nil {
		cfg.MetricsAddr = strings.TrimSpace(*raw.MetricsAddr)
	}

	return cfg, nil
}

func normalizeCutoutMode(s string) (CutoutMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default":
		return CutoutDefault, nil
	case "short-edges", "short_edges", "shortedges":
		return CutoutShortEdges, nil
	case "never":
		return CutoutNever, nil
	case "always":
		return CutoutAlways, nil
	default:
		return "", fmt.Errorf("invalid value %q (valid: default, short-edges, never, always)", s)
	}
}
