package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/unmhost/internal/config"
	"github.com/1broseidon/unmhost/internal/ipc"
)

// Client is the slice of the IPC client the monitor drives.
type Client interface {
	GetStatus() (*ipc.StatusData, error)
	GetRefreshRate() (*ipc.RefreshRateData, error)
	Ready() error
	Pause() error
	Resume() error
	Focus(hasFocus bool) error
	Reload() error
}

// Subscriber streams lifecycle events.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(ipc.LifecycleEvent)) error
}

const (
	pollInterval   = 500 * time.Millisecond
	resubscribeGap = 2 * time.Second
)

// Run starts the interactive monitor. configPath selects the file the
// settings tab edits; empty means the default location.
func Run(configPath string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	client := ipc.NewClient()
	p := tea.NewProgram(newModel(configPath, client), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go forwardEvents(ctx, client, p.Send)

	_, err := p.Run()
	return err
}

// forwardEvents keeps a subscription open, reconnecting while the host is
// away, and hands each event to send.
func forwardEvents(ctx context.Context, sub Subscriber, send func(tea.Msg)) {
	for {
		err := sub.Subscribe(ctx, func(ev ipc.LifecycleEvent) {
			send(eventMsg(ev))
		})
		if ctx.Err() != nil {
			return
		}
		send(subscriptionMsg{err: err})
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeGap):
		}
	}
}
