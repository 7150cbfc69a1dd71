package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/unmhost/internal/ipc"
)

// maxEvents bounds the event log.
const maxEvents = 200

// eventItem is a list item for one lifecycle event.
type eventItem struct {
	ev ipc.LifecycleEvent
}

func (i eventItem) Title() string {
	color := colorText
	switch i.ev.Event {
	case "pause", "destroy":
		color = lipgloss.Color("208")
	case "resume":
		color = colorOK
	case "focus":
		color = lipgloss.Color("75")
	case "refresh_rate":
		color = lipgloss.Color("226")
	}
	return lipgloss.NewStyle().Foreground(color).Render(i.ev.Event)
}

func (i eventItem) Description() string {
	at := i.ev.Time.Format("15:04:05.000")
	switch {
	case i.ev.HasFocus != nil:
		return fmt.Sprintf("%s  has_focus=%v", at, *i.ev.HasFocus)
	case i.ev.RefreshRate > 0:
		return fmt.Sprintf("%s  %.2f Hz", at, i.ev.RefreshRate)
	}
	return at
}

func (i eventItem) FilterValue() string { return i.ev.Event }

// EventsTab lists lifecycle events from SUBSCRIBE, newest first.
type EventsTab struct {
	list    list.Model
	linkErr error
	width   int
	height  int
}

// NewEventsTab creates an empty event log.
func NewEventsTab() EventsTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(colorBright).
		BorderForeground(colorAccent)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(colorText).
		BorderForeground(colorAccent)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Lifecycle events"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorBright).
		Background(colorAccent).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	return EventsTab{list: l}
}

// Add prepends ev, dropping the oldest entry past maxEvents.
func (e *EventsTab) Add(ev ipc.LifecycleEvent) tea.Cmd {
	e.linkErr = nil
	cmd := e.list.InsertItem(0, eventItem{ev: ev})
	if n := len(e.list.Items()); n > maxEvents {
		e.list.RemoveItem(n - 1)
	}
	return cmd
}

// SetLinkError records why the subscription dropped.
func (e *EventsTab) SetLinkError(err error) {
	e.linkErr = err
}

// Len returns the number of logged events.
func (e EventsTab) Len() int {
	return len(e.list.Items())
}

// Update handles messages for the events tab.
func (e EventsTab) Update(msg tea.Msg) (EventsTab, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		e.width = msg.Width
		e.height = msg.Height
		e.list.SetSize(e.width, max(e.height-1, 1))
		return e, nil
	}
	var cmd tea.Cmd
	e.list, cmd = e.list.Update(msg)
	return e, cmd
}

// View implements tea.Model.
func (e EventsTab) View() string {
	if e.width == 0 || e.height == 0 {
		return ""
	}
	footer := ""
	if e.linkErr != nil {
		footer = lipgloss.NewStyle().
			Foreground(colorErr).
			Render("  subscription lost, retrying: " + e.linkErr.Error())
	}
	body := lipgloss.NewStyle().
		Width(e.width).
		Height(max(e.height-1, 1)).
		Render(e.list.View())
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}
