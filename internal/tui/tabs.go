package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabStatus Tab = iota
	TabEvents
	TabSettings
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabStatus:
		return "Status"
	case TabEvents:
		return "Events"
	case TabSettings:
		return "Settings"
	default:
		return "?"
	}
}

// Shared palette (ANSI 256).
const (
	colorAccent = lipgloss.Color("62")
	colorBright = lipgloss.Color("15")
	colorText   = lipgloss.Color("250")
	colorMuted  = lipgloss.Color("241")
	colorPanel  = lipgloss.Color("236")
	colorBar    = lipgloss.Color("235")
	colorOK     = lipgloss.Color("42")
	colorWarn   = lipgloss.Color("208")
	colorErr    = lipgloss.Color("196")
)

var tabLabel = lipgloss.NewStyle().Padding(0, 2)

// renderTabBar renders "1:Status 2:Events 3:Settings" with the active tab
// highlighted.
func renderTabBar(active Tab, width int) string {
	sep := lipgloss.NewStyle().Background(colorBar).Render(" ")
	row := ""
	for t := range tabCount {
		style := tabLabel.Foreground(colorText).Background(colorPanel)
		if t == active {
			style = tabLabel.Bold(true).Foreground(colorBright).Background(colorAccent)
		}
		if t > 0 {
			row += sep
		}
		row += style.Render(fmt.Sprintf("%d:%s", int(t)+1, t))
	}
	return lipgloss.NewStyle().Width(width).MarginBottom(1).Render(row)
}

// stateColor maps a transition state name to its badge color.
func stateColor(state string) lipgloss.Color {
	switch state {
	case "idle":
		return colorOK
	case "capturing":
		return lipgloss.Color("226")
	case "overlay_shown":
		return colorWarn
	case "fading":
		return lipgloss.Color("75")
	}
	return colorMuted
}

// renderStatusBar renders the host connection status bar.
func renderStatusBar(connected bool, state string, width int) string {
	dot, text := colorMuted, " host not running"
	if connected {
		dot, text = colorOK, " host connected"
		if state != "" {
			text += "  " + lipgloss.NewStyle().Foreground(stateColor(state)).Render(state)
		}
	}
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		Background(colorBar).
		Foreground(colorText).
		Render(lipgloss.NewStyle().Foreground(dot).Render("●") + text)
}

// renderHelpBar renders the bottom keybinding bar for the active tab.
func renderHelpBar(active Tab, width int) string {
	help := "tab: switch  1-3: jump  q: quit"
	switch active {
	case TabStatus:
		help = "r: ready  p: pause  u: resume  f/F: focus/blur  " + help
	case TabSettings:
		help = "e: edit  ctrl-s: save  " + help
	}
	return lipgloss.NewStyle().Width(width).Padding(0, 1).Foreground(colorMuted).Render(help)
}
