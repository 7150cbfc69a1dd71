package transition

// State is the resume-transition phase.
type State int

const (
	// StateIdle means no overlay is shown and no capture is in flight.
	StateIdle State = iota
	// StateCapturing means a surface copy is in flight and the overlay is hidden.
	StateCapturing
	// StateOverlayShown means the overlay is opaque and waiting for the ready signal.
	StateOverlayShown
	// StateFading means the overlay is animating out.
	StateFading
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateOverlayShown:
		return "overlay_shown"
	case StateFading:
		return "fading"
	default:
		return "unknown"
	}
}

// OverlayState mirrors what the overlay view currently shows.
type OverlayState struct {
	Visible bool
	Alpha   float64
	FrameID uint64 // 0 when no captured frame backs the overlay
}

// Status is a point-in-time snapshot safe to read from any goroutine.
type Status struct {
	State          State
	Overlay        OverlayState
	CapturePending bool
	Cycles         uint64 // suspend cycles that issued a capture
}

// Observer receives transition events. Implementations must be cheap and
// must not call back into the Coordinator.
type Observer interface {
	StateChanged(from, to State)
	CaptureFinished(ok bool)
	ReadySignal(accepted bool)
	FrameReleased()
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
func (nopObserver) CaptureFinished(bool)      {}
func (nopObserver) ReadySignal(bool)          {}
func (nopObserver) FrameReleased()            {}
