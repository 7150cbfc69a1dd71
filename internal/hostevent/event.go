package hostevent

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a host lifecycle event.
type Kind int

const (
	// Pause means the host is being suspended and the render surface is about to go away.
	Pause Kind = iota + 1
	// Resume means the host is visible again.
	Resume
	// FocusChanged carries the new input focus in Event.HasFocus.
	FocusChanged
	// RendererReady is the engine's signal that a live frame is on screen.
	RendererReady
	// Destroy means the host window is gone.
	Destroy
)

var kindNames = map[Kind]string{
	Pause:         "pause",
	Resume:        "resume",
	FocusChanged:  "focus",
	RendererReady: "ready",
	Destroy:       "destroy",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a lower-case event name back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event %q", s)
}

// Event is one lifecycle message delivered to the host.
type Event struct {
	Kind     Kind
	HasFocus bool // FocusChanged only
	At       time.Time
}

// NewEvent stamps an event with the current time.
func NewEvent(kind Kind) Event {
	return Event{Kind: kind, At: time.Now()}
}

// NewFocusEvent builds a FocusChanged event.
func NewFocusEvent(hasFocus bool) Event {
	return Event{Kind: FocusChanged, HasFocus: hasFocus, At: time.Now()}
}
