package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/unmhost/internal/config"
)

// SettingsTab shows and edits the tunable host settings.
type SettingsTab struct {
	cfg *config.Config

	width  int
	height int

	editing bool
	form    *huh.Form

	// Form-bound values (strings for huh, converted on submit)
	fFadeDuration  string
	fFadeStep      string
	fColdStartMask bool
	fImmersive     bool
	fCutoutMode    string
	fTargetFPS     string
	fFallbackRate  string
	fLogLevel      string
}

// NewSettingsTab creates a SettingsTab from the loaded config.
func NewSettingsTab(cfg *config.Config) SettingsTab {
	return SettingsTab{cfg: cfg}
}

// Update handles messages for the settings tab.
func (g SettingsTab) Update(msg tea.Msg) (SettingsTab, tea.Cmd) {
	if g.editing {
		return g.updateEditing(msg)
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "e" && g.cfg != nil {
			g.startEditing()
			return g, g.form.Init()
		}
	case tea.WindowSizeMsg:
		g.width = msg.Width
		g.height = msg.Height
	}
	return g, nil
}

func (g SettingsTab) updateEditing(msg tea.Msg) (SettingsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			g.editing = false
			g.form = nil
			return g, nil
		}
	case tea.WindowSizeMsg:
		g.width = msg.Width
		g.height = msg.Height
	}

	form, cmd := g.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		g.form = f
	}

	switch g.form.State {
	case huh.StateCompleted:
		g.applyForm()
		g.editing = false
		g.form = nil
		return g, nil
	case huh.StateAborted:
		g.editing = false
		g.form = nil
		return g, nil
	}
	return g, cmd
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validatePositiveFloat(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func (g *SettingsTab) loadFormValues() {
	cfg := g.cfg
	g.fFadeDuration = cfg.FadeDuration.String()
	g.fFadeStep = cfg.FadeFrameInterval.String()
	g.fColdStartMask = cfg.ColdStartMask
	g.fImmersive = cfg.Immersive
	g.fCutoutMode = string(cfg.CutoutMode)
	g.fTargetFPS = strconv.Itoa(cfg.TargetFPS)
	g.fFallbackRate = strconv.FormatFloat(cfg.FallbackRefreshRate, 'f', -1, 64)
	g.fLogLevel = cfg.LogLevel
}

func (g *SettingsTab) startEditing() {
	g.loadFormValues()

	cutoutOpts := huh.NewOptions(
		string(config.CutoutDefault),
		string(config.CutoutShortEdges),
		string(config.CutoutNever),
		string(config.CutoutAlways),
	)
	levelOpts := huh.NewOptions("debug", "info", "warn", "error")

	g.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("fade_duration").
				Title("Fade Duration").
				Description("How long the overlay takes to fade out").
				Validate(validateDuration).
				Value(&g.fFadeDuration),

			huh.NewInput().
				Key("fade_frame_interval").
				Title("Fade Step").
				Description("Time between fade alpha updates").
				Validate(validateDuration).
				Value(&g.fFadeStep),

			huh.NewConfirm().
				Key("cold_start_mask").
				Title("Cold Start Mask").
				Description("Cover the window until the first frame is ready").
				Value(&g.fColdStartMask),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Key("immersive").
				Title("Immersive").
				Description("Hide system bars while focused").
				Value(&g.fImmersive),

			huh.NewSelect[string]().
				Key("cutout_mode").
				Title("Cutout Mode").
				Options(cutoutOpts...).
				Value(&g.fCutoutMode),

			huh.NewInput().
				Key("target_fps").
				Title("Target FPS").
				Description("0 follows the display refresh rate").
				Validate(validateNonNegativeInt).
				Value(&g.fTargetFPS),

			huh.NewInput().
				Key("fallback_refresh_rate").
				Title("Fallback Refresh Rate").
				Description("Used when the display reports nothing").
				Validate(validatePositiveFloat).
				Value(&g.fFallbackRate),

			huh.NewSelect[string]().
				Key("log_level").
				Title("Log Level").
				Options(levelOpts...).
				Value(&g.fLogLevel),
		),
	).WithWidth(max(g.width-4, 40)).WithShowHelp(true).WithShowErrors(true)

	g.editing = true
}

// applyForm copies validated form values into the config. Values that fail
// to parse leave the field unchanged.
func (g *SettingsTab) applyForm() {
	if g.cfg == nil {
		return
	}
	if d, err := time.ParseDuration(strings.TrimSpace(g.fFadeDuration)); err == nil && d >= 0 {
		g.cfg.FadeDuration = d
	}
	if d, err := time.ParseDuration(strings.TrimSpace(g.fFadeStep)); err == nil && d >= 0 {
		g.cfg.FadeFrameInterval = d
	}
	g.cfg.ColdStartMask = g.fColdStartMask
	g.cfg.Immersive = g.fImmersive
	if g.fCutoutMode != "" {
		g.cfg.CutoutMode = config.CutoutMode(g.fCutoutMode)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(g.fTargetFPS)); err == nil && v >= 0 {
		g.cfg.TargetFPS = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(g.fFallbackRate), 64); err == nil && v > 0 {
		g.cfg.FallbackRefreshRate = v
	}
	if g.fLogLevel != "" {
		g.cfg.LogLevel = g.fLogLevel
	}
}

// View renders the settings, or the form while editing.
func (g SettingsTab) View(loadErr error) string {
	if g.editing && g.form != nil {
		return g.viewEditing()
	}

	cfg := g.cfg
	if cfg == nil {
		msg := "No config loaded"
		if loadErr != nil {
			msg += "\n" + loadErr.Error()
		}
		return lipgloss.NewStyle().
			Width(g.width).
			Height(g.height).
			Foreground(colorMuted).
			Align(lipgloss.Center, lipgloss.Center).
			Render(msg)
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(colorText).
		Width(24).
		Align(lipgloss.Right).
		PaddingRight(2)
	valueStyle := lipgloss.NewStyle().
		Foreground(colorBright).
		Bold(true)
	dimStyle := lipgloss.NewStyle().
		Foreground(colorMuted)

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	target := "display"
	if cfg.TargetFPS > 0 {
		target = strconv.Itoa(cfg.TargetFPS)
	}

	lines := []string{
		row("Window Title", cfg.WindowTitle),
		row("Surface Class", cfg.SurfaceClass),
		"",
		row("Fade Duration", cfg.FadeDuration.String()),
		row("Fade Step", cfg.FadeFrameInterval.String()),
		row("Cold Start Mask", strconv.FormatBool(cfg.ColdStartMask)),
		"",
		row("Immersive", strconv.FormatBool(cfg.Immersive)),
		row("Cutout Mode", string(cfg.CutoutMode)),
		row("Target FPS", target),
		row("Fallback Refresh Rate", fmt.Sprintf("%.2f Hz", cfg.FallbackRefreshRate)),
		row("Log Level", cfg.LogLevel),
		"",
		dimStyle.Render("  Press 'e' to edit, ctrl-s to save"),
	}

	return lipgloss.NewStyle().
		Width(g.width).
		Height(g.height).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func (g SettingsTab) viewEditing() string {
	header := lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true).
		Render("Editing Settings") +
		lipgloss.NewStyle().
			Foreground(colorMuted).
			Render("  (esc to cancel)")

	return lipgloss.NewStyle().
		Width(g.width).
		Height(g.height).
		Padding(1, 2).
		Render(header + "\n\n" + g.form.View())
}
