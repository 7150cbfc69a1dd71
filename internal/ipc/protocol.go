package ipc

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReady          CommandType = "READY"
	CommandPause          CommandType = "PAUSE"
	CommandResume         CommandType = "RESUME"
	CommandFocus          CommandType = "FOCUS"
	CommandGetStatus      CommandType = "GET_STATUS"
	CommandGetRefreshRate CommandType = "GET_REFRESH_RATE"
	CommandGetDisplays    CommandType = "GET_DISPLAYS"
	CommandReload         CommandType = "RELOAD"
	CommandSubscribe      CommandType = "SUBSCRIBE"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// FocusPayload is the payload for FOCUS.
type FocusPayload struct {
	HasFocus bool `json:"has_focus"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	State          string  `json:"state"`
	OverlayVisible bool    `json:"overlay_visible"`
	OverlayAlpha   float64 `json:"overlay_alpha"`
	HasFrame       bool    `json:"has_frame"`
	CapturePending bool    `json:"capture_pending"`
	Cycles         uint64  `json:"cycles"`
	RefreshRate    float64 `json:"refresh_rate"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	HostRunning    bool    `json:"host_running"`
}

// RefreshRateData represents the data returned by GET_REFRESH_RATE
type RefreshRateData struct {
	RefreshRate     float64 `json:"refresh_rate"`
	TargetFPS       int     `json:"target_fps"`
	FrameIntervalNS int64   `json:"frame_interval_ns"`
}

// FrameInterval returns the paced frame budget.
func (d RefreshRateData) FrameInterval() time.Duration {
	return time.Duration(d.FrameIntervalNS)
}

// DisplayInfo represents information about a single display
type DisplayInfo struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	RefreshRate float64 `json:"refresh_rate"`

	// Usable is the work area left by panels and docks.
	UsableX      int `json:"usable_x"`
	UsableY      int `json:"usable_y"`
	UsableWidth  int `json:"usable_width"`
	UsableHeight int `json:"usable_height"`
}

// DisplaysData represents the data returned by GET_DISPLAYS
type DisplaysData struct {
	Displays []DisplayInfo `json:"displays"`
}

// LifecycleEvent is one line of a SUBSCRIBE stream.
type LifecycleEvent struct {
	Event       string    `json:"event"`
	HasFocus    *bool     `json:"has_focus,omitempty"`
	RefreshRate float64   `json:"refresh_rate,omitempty"`
	Time        time.Time `json:"time"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
