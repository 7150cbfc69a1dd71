package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/unmhost/internal/config"
	"github.com/1broseidon/unmhost/internal/ipc"
)

type tickMsg time.Time

type statusMsg struct {
	status *ipc.StatusData
	rate   *ipc.RefreshRateData
	err    error
}

type eventMsg ipc.LifecycleEvent

type subscriptionMsg struct {
	err error
}

type actionMsg struct {
	name string
	err  error
}

// model is the root bubbletea model for the monitor.
type model struct {
	configPath string
	result     *config.LoadResult
	loadErr    error
	client     Client

	activeTab Tab

	statusTab   StatusTab
	eventsTab   EventsTab
	settingsTab SettingsTab

	// Save overlay
	originalConfig *config.Config
	saveOverlay    SaveOverlay

	connected bool

	width  int
	height int
}

func newModel(configPath string, client Client) model {
	m := model{
		configPath: configPath,
		client:     client,
		activeTab:  TabStatus,
	}
	m.loadConfig()

	var cfg *config.Config
	if m.result != nil {
		cfg = m.result.Config
		m.originalConfig = cloneConfig(cfg)
	}
	m.statusTab = NewStatusTab()
	m.eventsTab = NewEventsTab()
	m.settingsTab = NewSettingsTab(cfg)
	return m
}

func (m *model) loadConfig() {
	res, err := config.LoadFromPath(m.configPath)
	if err != nil {
		m.loadErr = err
		return
	}
	m.result = res
	m.loadErr = nil
}

func (m model) pollStatus() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		status, err := client.GetStatus()
		if err != nil {
			return statusMsg{err: err}
		}
		rate, err := client.GetRefreshRate()
		return statusMsg{status: status, rate: rate, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// runAction sends a lifecycle command off the update goroutine.
func (m model) runAction(name string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		var err error
		switch name {
		case "ready":
			err = client.Ready()
		case "pause":
			err = client.Pause()
		case "resume":
			err = client.Resume()
		case "focus":
			err = client.Focus(true)
		case "blur":
			err = client.Focus(false)
		}
		return actionMsg{name: name, err: err}
	}
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	return max(m.height-4, 1)
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height
	sub := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
	m.statusTab, _ = m.statusTab.Update(sub)
	m.eventsTab, _ = m.eventsTab.Update(sub)
	m.settingsTab, _ = m.settingsTab.Update(sub)
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.pollStatus(), tick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Background messages are handled whatever has input focus.
	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.pollStatus(), tick())
	case statusMsg:
		m.connected = msg.err == nil
		m.statusTab.SetStatus(msg.status, msg.rate, msg.err)
		return m, nil
	case eventMsg:
		return m, m.eventsTab.Add(ipc.LifecycleEvent(msg))
	case subscriptionMsg:
		m.eventsTab.SetLinkError(msg.err)
		return m, nil
	case actionMsg:
		m.statusTab.SetAction(msg.name, msg.err)
		return m, m.pollStatus()
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	}

	// Save overlay captures all input when active
	if m.saveOverlay.Active() {
		if km, ok := msg.(tea.KeyMsg); ok {
			if km.String() == "ctrl+c" {
				return m, tea.Quit
			}
			prevPhase := m.saveOverlay.phase
			m.saveOverlay = m.saveOverlay.Update(km, m.result.Config, m.configPath, m.client, m.connected)
			if prevPhase == savePreview && m.saveOverlay.SaveSucceeded() {
				m.originalConfig = cloneConfig(m.result.Config)
			}
		}
		return m, nil
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+s" {
		if m.result != nil && m.result.Config != nil {
			m.saveOverlay.Show(m.originalConfig, m.result.Config)
		}
		return m, nil
	}

	// The settings form consumes keys; only ctrl+c escapes to quit.
	if m.activeTab == TabSettings && m.settingsTab.editing {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.settingsTab, cmd = m.settingsTab.Update(msg)
		return m, cmd
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabStatus
			return m, nil
		case "2":
			m.activeTab = TabEvents
			return m, nil
		case "3":
			m.activeTab = TabSettings
			return m, nil
		}
	}

	switch m.activeTab {
	case TabStatus:
		if km, ok := msg.(tea.KeyMsg); ok {
			if name := statusAction(km.String()); name != "" {
				return m, m.runAction(name)
			}
		}
	case TabEvents:
		var cmd tea.Cmd
		m.eventsTab, cmd = m.eventsTab.Update(msg)
		return m, cmd
	case TabSettings:
		var cmd tea.Cmd
		m.settingsTab, cmd = m.settingsTab.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.connected, m.statusTab.State(), m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.activeTab, m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := max(m.height-usedHeight, 1)

	var content string
	switch {
	case m.saveOverlay.Active():
		content = m.saveOverlay.View(m.width, contentHeight)
	case m.activeTab == TabStatus:
		content = m.statusTab.View()
	case m.activeTab == TabEvents:
		content = m.eventsTab.View()
	case m.activeTab == TabSettings:
		content = m.settingsTab.View(m.loadErr)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}
