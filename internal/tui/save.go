package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/unmhost/internal/config"
)

type savePhase int

const (
	saveHidden  savePhase = iota
	savePreview           // showing changes, awaiting confirm
	saveResult            // showing outcome message
)

// settingChange is one config key whose value differs from the saved file.
type settingChange struct {
	key      string
	old, new string
}

// SaveOverlay previews pending setting changes and writes them on confirm.
type SaveOverlay struct {
	phase        savePhase
	changes      []settingChange
	err          error
	reloaded     bool
	path         string
	scrollOffset int
}

// Active reports whether the overlay is visible.
func (s SaveOverlay) Active() bool {
	return s.phase != saveHidden
}

// Show computes the pending changes and opens the preview.
func (s *SaveOverlay) Show(original, current *config.Config) {
	s.err = nil
	s.reloaded = false
	s.scrollOffset = 0

	s.changes = computeChanges(original, current)
	if len(s.changes) == 0 {
		s.phase = saveResult
		s.err = fmt.Errorf("no changes to save")
		return
	}
	s.phase = savePreview
}

// SaveSucceeded reports whether the last save completed without error.
func (s SaveOverlay) SaveSucceeded() bool {
	return s.phase == saveResult && s.err == nil
}

// Update handles input while the overlay is active. Confirming validates
// cfg, writes it to path and, when the host is up, asks it to reload.
func (s SaveOverlay) Update(msg tea.KeyMsg, cfg *config.Config, path string, client Client, connected bool) SaveOverlay {
	switch s.phase {
	case savePreview:
		switch msg.String() {
		case "esc":
			s.phase = saveHidden
		case "enter", "y":
			s.err = cfg.Validate()
			if s.err == nil {
				s.err = cfg.SaveTo(path)
			}
			if s.err == nil && connected && client != nil {
				s.reloaded = client.Reload() == nil
			}
			s.path = path
			s.phase = saveResult
		case "up", "k":
			s.scrollOffset = max(s.scrollOffset-1, 0)
		case "down", "j":
			s.scrollOffset++
		}
	case saveResult:
		s.phase = saveHidden
	}
	return s
}

// View renders the overlay for the given content area dimensions.
func (s SaveOverlay) View(width, height int) string {
	switch s.phase {
	case savePreview:
		return s.viewPreview(width, height)
	case saveResult:
		return s.viewResult(width, height)
	}
	return ""
}

func (s SaveOverlay) viewPreview(areaW, areaH int) string {
	boxW := min(max(areaW-8, 30), 80)

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorBright)
	keyStyle := lipgloss.NewStyle().Foreground(colorText).Width(keyColumnWidth(s.changes))
	oldStyle := lipgloss.NewStyle().Foreground(colorErr).Strikethrough(true)
	newStyle := lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	footStyle := lipgloss.NewStyle().Foreground(colorMuted)

	title := titleStyle.Render(fmt.Sprintf("Save Config: %d pending change(s)", len(s.changes)))

	// title, blank lines, footer, border and padding take 10 rows
	rows := max(areaH-10, 3)
	off := min(s.scrollOffset, max(len(s.changes)-rows, 0))
	end := min(off+rows, len(s.changes))

	lines := make([]string, 0, end-off)
	for _, c := range s.changes[off:end] {
		lines = append(lines, keyStyle.Render(c.key)+oldStyle.Render(c.old)+" → "+newStyle.Render(c.new))
	}

	footer := footStyle.Render("enter: save  esc: cancel  j/k: scroll")
	content := title + "\n\n" + strings.Join(lines, "\n") + "\n\n" + footer

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Width(boxW).
		Render(content)

	return lipgloss.Place(areaW, areaH, lipgloss.Center, lipgloss.Center, box)
}

func keyColumnWidth(changes []settingChange) int {
	w := 0
	for _, c := range changes {
		w = max(w, len(c.key))
	}
	return w + 2
}

func (s SaveOverlay) viewResult(areaW, areaH int) string {
	boxW := min(max(areaW-8, 30), 60)

	var msg string
	if s.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(colorErr).Bold(true)
		msg = errStyle.Render("Error: " + s.err.Error())
	} else {
		okStyle := lipgloss.NewStyle().Foreground(colorOK).Bold(true)
		msg = okStyle.Render("Saved " + s.path)
		if s.reloaded {
			msg += "\n" + lipgloss.NewStyle().Foreground(colorOK).Render("Host reloaded")
		} else {
			msg += "\n" + lipgloss.NewStyle().Foreground(colorMuted).Render("Host not connected; changes apply when it starts")
		}
	}

	footer := lipgloss.NewStyle().Foreground(colorMuted).Render("press any key to dismiss")
	content := msg + "\n\n" + footer

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Width(boxW).
		Render(content)

	return lipgloss.Place(areaW, areaH, lipgloss.Center, lipgloss.Center, box)
}

// computeChanges lists every explainable key whose value differs, in key order.
func computeChanges(original, current *config.Config) []settingChange {
	if original == nil || current == nil {
		return nil
	}
	before := &config.LoadResult{Config: original}
	after := &config.LoadResult{Config: current}

	var changes []settingChange
	for _, key := range config.Keys() {
		a, _, errA := config.Explain(before, key)
		b, _, errB := config.Explain(after, key)
		if errA != nil || errB != nil {
			continue
		}
		old, cur := fmt.Sprint(a), fmt.Sprint(b)
		if old != cur {
			changes = append(changes, settingChange{key: key, old: quoteEmpty(old), new: quoteEmpty(cur)})
		}
	}
	return changes
}

func quoteEmpty(s string) string {
	if s == "" {
		return `""`
	}
	return s
}

// cloneConfig creates a deep copy of a Config via YAML round-trip.
func cloneConfig(cfg *config.Config) *config.Config {
	if cfg == nil {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	var clone config.Config
	if err := yaml.Unmarshal(data, &clone); err != nil {
		return nil
	}
	return &clone
}
