package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// RawConfig is one layer of configuration. Nil fields are unset and leave
// the lower layer in place. Each field can also be set from an UNMHOST_*
// variable named after it, e.g. UNMHOST_FADE_DURATION.
type RawConfig struct {
	Include             IncludeList    `yaml:"include" ignored:"true"`
	Display             *string        `yaml:"display" split_words:"true"`
	WindowTitle         *string        `yaml:"window_title" split_words:"true"`
	SurfaceClass        *string        `yaml:"surface_class" split_words:"true"`
	FadeDuration        *time.Duration `yaml:"fade_duration" split_words:"true"`
	FadeFrameInterval   *time.Duration `yaml:"fade_frame_interval" split_words:"true"`
	ColdStartMask       *bool          `yaml:"cold_start_mask" split_words:"true"`
	Immersive           *bool          `yaml:"immersive" split_words:"true"`
	CutoutMode          *string        `yaml:"cutout_mode" split_words:"true"`
	FallbackRefreshRate *float64       `yaml:"fallback_refresh_rate" split_words:"true"`
	TargetFPS           *int           `yaml:"target_fps" split_words:"true"`
	RefreshPollInterval *time.Duration `yaml:"refresh_poll_interval" split_words:"true"`
	LogLevel            *string        `yaml:"log_level" split_words:"true"`
	LogFile             *string        `yaml:"log_file" split_words:"true"`
	MetricsAddr         *string        `yaml:"metrics_addr" split_words:"true"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.WindowTitle != nil {
		out.WindowTitle = overlay.WindowTitle
	}
	if overlay.SurfaceClass != nil {
		out.SurfaceClass = overlay.SurfaceClass
	}
	if overlay.FadeDuration != nil {
		out.FadeDuration = overlay.FadeDuration
	}
	if overlay.FadeFrameInterval != nil {
		out.FadeFrameInterval = overlay.FadeFrameInterval
	}
	if overlay.ColdStartMask != nil {
		out.ColdStartMask = overlay.ColdStartMask
	}
	if overlay.Immersive != nil {
		out.Immersive = overlay.Immersive
	}
	if overlay.CutoutMode != nil {
		out.CutoutMode = overlay.CutoutMode
	}
	if overlay.FallbackRefreshRate != nil {
		out.FallbackRefreshRate = overlay.FallbackRefreshRate
	}
	if overlay.TargetFPS != nil {
		out.TargetFPS = overlay.TargetFPS
	}
	if overlay.RefreshPollInterval != nil {
		out.RefreshPollInterval = overlay.RefreshPollInterval
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.LogFile != nil {
		out.LogFile = overlay.LogFile
	}
	if overlay.MetricsAddr != nil {
		out.MetricsAddr = overlay.MetricsAddr
	}

	return out
}
