package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/unmhost/internal/config"
	"github.com/1broseidon/unmhost/internal/hostevent"
	"github.com/1broseidon/unmhost/internal/platform"
	"github.com/1broseidon/unmhost/internal/runtimepath"
	"github.com/1broseidon/unmhost/internal/transition"
)

const subscriberBuffer = 32

// Host is what the server drives and reports on.
type Host interface {
	Dispatch(ev hostevent.Event) bool
	Status() transition.Status
	QueryRefreshRate() float64
	FrameInterval() time.Duration
}

// DisplayLister is implemented by hosts that can enumerate displays.
type DisplayLister interface {
	Displays() ([]platform.Display, error)
}

// CommandObserver is told about every handled command.
type CommandObserver interface {
	ObserveCommand(command, status string)
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	configPath   string
	listener     net.Listener
	cfg          *config.Config
	cfgMu        sync.RWMutex
	host         Host
	observer     CommandObserver
	logger       *slog.Logger
	startTime    time.Time
	reloadChan   chan<- *config.Config
	shuttingDown bool
	shutdownMu   sync.Mutex

	subMu  sync.Mutex
	subs   map[*subscriber]struct{}
	stopCh chan struct{}
}

type subscriber struct {
	events chan LifecycleEvent
}

// NewServer creates a new IPC server. Reloaded configs are delivered on
// reloadChan without blocking.
func NewServer(cfg *config.Config, configPath string, host Host, reloadChan chan<- *config.Config, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		configPath: configPath,
		cfg:        cfg,
		host:       host,
		logger:     logger,
		startTime:  time.Now(),
		reloadChan: reloadChan,
		subs:       make(map[*subscriber]struct{}),
		stopCh:     make(chan struct{}),
	}, nil
}

// SetObserver registers a command observer. Call before Start.
func (s *Server) SetObserver(o CommandObserver) {
	s.observer = o
}

// SocketPath returns the socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShuttingDown() {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) isShuttingDown() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shuttingDown
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// One JSON request per line.
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Debug("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.writeResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	if req.Command == CommandSubscribe {
		s.serveSubscription(conn, reader)
		return
	}

	resp := s.handleCommand(req)
	if s.observer != nil {
		s.observer.ObserveCommand(string(req.Command), resp.Status)
	}
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) {
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Debug("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReady:
		return s.handleEvent(hostevent.NewEvent(hostevent.RendererReady))
	case CommandPause:
		return s.handleEvent(hostevent.NewEvent(hostevent.Pause))
	case CommandResume:
		return s.handleEvent(hostevent.NewEvent(hostevent.Resume))
	case CommandFocus:
		return s.handleFocus(req.Payload)
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetRefreshRate:
		return s.handleGetRefreshRate()
	case CommandGetDisplays:
		return s.handleGetDisplays()
	case CommandReload:
		return s.handleReload()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleEvent(ev hostevent.Event) *Response {
	if !s.host.Dispatch(ev) {
		return NewErrorResponse("host is shutting down")
	}
	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleFocus(payload json.RawMessage) *Response {
	var req FocusPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid focus payload: %v", err))
		}
	} else {
		req.HasFocus = true
	}
	return s.handleEvent(hostevent.NewFocusEvent(req.HasFocus))
}

func (s *Server) handleGetStatus() *Response {
	st := s.host.Status()
	status := StatusData{
		State:          st.State.String(),
		OverlayVisible: st.Overlay.Visible,
		OverlayAlpha:   st.Overlay.Alpha,
		HasFrame:       st.Overlay.FrameID != 0,
		CapturePending: st.CapturePending,
		Cycles:         st.Cycles,
		RefreshRate:    s.host.QueryRefreshRate(),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		HostRunning:    true,
	}

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleGetRefreshRate() *Response {
	s.cfgMu.RLock()
	target := s.cfg.TargetFPS
	s.cfgMu.RUnlock()

	data := RefreshRateData{
		RefreshRate:     s.host.QueryRefreshRate(),
		TargetFPS:       target,
		FrameIntervalNS: int64(s.host.FrameInterval()),
	}
	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleGetDisplays() *Response {
	lister, ok := s.host.(DisplayLister)
	if !ok {
		return NewErrorResponse("display enumeration not supported")
	}
	displays, err := lister.Displays()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get displays: %v", err))
	}

	infos := make([]DisplayInfo, len(displays))
	for i, d := range displays {
		infos[i] = DisplayInfo{
			ID:          d.ID,
			Name:        d.Name,
			X:           d.Bounds.X,
			Y:           d.Bounds.Y,
			Width:       d.Bounds.Width,
			Height:      d.Bounds.Height,
			RefreshRate: d.RefreshRate,

			UsableX:      d.Usable.X,
			UsableY:      d.Usable.Y,
			UsableWidth:  d.Usable.Width,
			UsableHeight: d.Usable.Height,
		}
	}

	resp, _ := NewOKResponse(DisplaysData{Displays: infos})
	return resp
}

func (s *Server) handleReload() *Response {
	s.logger.Info("IPC: received RELOAD")

	res, err := config.LoadFromPath(s.configPath)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}

	s.UpdateConfig(res.Config)

	select {
	case s.reloadChan <- res.Config:
	default:
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

// serveSubscription acknowledges SUBSCRIBE and streams lifecycle events
// until the client hangs up or the server stops.
func (s *Server) serveSubscription(conn net.Conn, reader *bufio.Reader) {
	sub := &subscriber{events: make(chan LifecycleEvent, subscriberBuffer)}
	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()
	defer func() {
		s.subMu.Lock()
		delete(s.subs, sub)
		s.subMu.Unlock()
	}()

	ok, _ := NewOKResponse(nil)
	s.writeResponse(conn, ok)
	if s.observer != nil {
		s.observer.ObserveCommand(string(CommandSubscribe), StatusOK)
	}

	hangup := make(chan struct{})
	go func() {
		io.Copy(io.Discard, reader)
		close(hangup)
	}()

	enc := json.NewEncoder(conn)
	for {
		select {
		case <-hangup:
			return
		case <-s.stopCh:
			return
		case ev := <-sub.events:
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := enc.Encode(ev); err != nil {
				s.logger.Debug("subscriber write failed", "error", err)
				return
			}
		}
	}
}

// Broadcast sends ev to every subscriber. Subscribers that fall behind miss
// events rather than stall the host.
func (s *Server) Broadcast(ev LifecycleEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs {
		select {
		case sub.events <- ev:
		default:
			s.logger.Debug("subscriber lagging, dropped event", "event", ev.Event)
		}
	}
}

// Forward implements hostevent.EngineLink.
func (s *Server) Forward(ev hostevent.Event) {
	out := LifecycleEvent{Event: ev.Kind.String(), Time: ev.At}
	if ev.Kind == hostevent.FocusChanged {
		hasFocus := ev.HasFocus
		out.HasFocus = &hasFocus
	}
	if out.Time.IsZero() {
		out.Time = time.Now()
	}
	s.Broadcast(out)
}

// Subscribers returns the number of connected subscribers.
func (s *Server) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	close(s.stopCh)
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}

// GetConfig returns the current config (thread-safe)
func (s *Server) GetConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig updates the config (thread-safe)
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
}

var _ hostevent.EngineLink = (*Server)(nil)
