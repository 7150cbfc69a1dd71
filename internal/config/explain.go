package config

import (
	"fmt"
	"sort"
)

// Keys lists the configuration paths Explain understands.
func Keys() []string {
	keys := make([]string, 0, len(lookups))
	for k := range lookups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var lookups = map[string]func(*Config) any{
	"display":               func(c *Config) any { return c.Display },
	"window_title":          func(c *Config) any { return c.WindowTitle },
	"surface_class":         func(c *Config) any { return c.SurfaceClass },
	"fade_duration":         func(c *Config) any { return c.FadeDuration.String() },
	"fade_frame_interval":   func(c *Config) any { return c.FadeFrameInterval.String() },
	"cold_start_mask":       func(c *Config) any { return c.ColdStartMask },
	"immersive":             func(c *Config) any { return c.Immersive },
	"cutout_mode":           func(c *Config) any { return string(c.CutoutMode) },
	"fallback_refresh_rate": func(c *Config) any { return c.FallbackRefreshRate },
	"target_fps":            func(c *Config) any { return c.TargetFPS },
	"refresh_poll_interval": func(c *Config) any { return c.RefreshPollInterval.String() },
	"log_level":             func(c *Config) any { return c.LogLevel },
	"log_file":              func(c *Config) any { return c.LogFile },
	"metrics_addr":          func(c *Config) any { return c.MetricsAddr },
}

// Explain returns the effective value at path and where it came from.
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	lookup, ok := lookups[path]
	if !ok {
		return nil, Source{}, fmt.Errorf("unknown config key %q", path)
	}
	value := lookup(res.Config)

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault}, nil
}
