package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/unmhost/internal/ipc"
)

// statusAction maps a status-tab key to a lifecycle action.
func statusAction(key string) string {
	switch key {
	case "r":
		return "ready"
	case "p":
		return "pause"
	case "u":
		return "resume"
	case "f":
		return "focus"
	case "F":
		return "blur"
	}
	return ""
}

// StatusTab shows the latest GET_STATUS and GET_REFRESH_RATE replies.
type StatusTab struct {
	status *ipc.StatusData
	rate   *ipc.RefreshRateData
	err    error

	lastAction    string
	lastActionErr error
	lastActionAt  time.Time

	width  int
	height int
}

// NewStatusTab creates an empty status tab.
func NewStatusTab() StatusTab {
	return StatusTab{}
}

// SetStatus records a poll result. A failed poll clears the old reply.
func (s *StatusTab) SetStatus(status *ipc.StatusData, rate *ipc.RefreshRateData, err error) {
	s.err = err
	if status != nil || err != nil {
		s.status = status
	}
	if rate != nil || err != nil {
		s.rate = rate
	}
}

// SetAction records the outcome of a lifecycle command.
func (s *StatusTab) SetAction(name string, err error) {
	s.lastAction = name
	s.lastActionErr = err
	s.lastActionAt = time.Now()
}

// State returns the last known transition state, or "".
func (s StatusTab) State() string {
	if s.status == nil {
		return ""
	}
	return s.status.State
}

// Update handles messages for the status tab.
func (s StatusTab) Update(msg tea.Msg) (StatusTab, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		s.width = msg.Width
		s.height = msg.Height
	}
	return s, nil
}

// View implements tea.Model.
func (s StatusTab) View() string {
	contentStyle := lipgloss.NewStyle().
		Width(s.width).
		Height(s.height).
		Padding(1, 2)

	if s.status == nil {
		msg := "Waiting for host..."
		if s.err != nil {
			msg = s.err.Error()
		}
		return contentStyle.
			Foreground(colorMuted).
			Align(lipgloss.Center, lipgloss.Center).
			Render(msg)
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(colorText).
		Width(18).
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

	st := s.status
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(stateColor(st.State)).
		Padding(0, 1).
		Render(strings.ToUpper(st.State))

	lines := []string{
		labelStyle.Render("State") + badge,
		"",
		row("Overlay", overlayText(st)),
		row("Frame held", fmt.Sprintf("%v", st.HasFrame)),
		row("Capture pending", fmt.Sprintf("%v", st.CapturePending)),
		row("Suspend cycles", fmt.Sprintf("%d", st.Cycles)),
		"",
		row("Refresh rate", fmt.Sprintf("%.2f Hz", st.RefreshRate)),
	}
	if s.rate != nil {
		target := "display"
		if s.rate.TargetFPS > 0 {
			target = fmt.Sprintf("%d fps", s.rate.TargetFPS)
		}
		lines = append(lines,
			row("Pacing", target),
			row("Frame budget", s.rate.FrameInterval().String()),
		)
	}
	lines = append(lines,
		row("Uptime", (time.Duration(st.UptimeSeconds)*time.Second).String()),
		"",
	)

	if s.lastAction != "" {
		result := lipgloss.NewStyle().Foreground(colorOK).Render("ok")
		if s.lastActionErr != nil {
			result = lipgloss.NewStyle().Foreground(colorErr).Render(s.lastActionErr.Error())
		}
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  last: %s at %s: ", s.lastAction, s.lastActionAt.Format("15:04:05")))+result)
	}

	return contentStyle.Render(strings.Join(lines, "\n"))
}

func overlayText(st *ipc.StatusData) string {
	if !st.OverlayVisible {
		return "hidden"
	}
	filled := int(st.OverlayAlpha*10 + 0.5)
	filled = min(max(filled, 0), 10)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	return fmt.Sprintf("%s %.2f", bar, st.OverlayAlpha)
}
