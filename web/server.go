package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/clipshare/config"
	"markestedt/clipshare/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin accepts non-browser clients (no Origin header) and pages
// served from the loopback host. Transfer messages carry clipboard text.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// History is the part of the transfer store the dashboard reads.
type History interface {
	GetTransfers(limit, offset int) ([]storage.Transfer, error)
	GetTransferCount() (int, error)
	DeleteTransfer(id int64) error
	GetOverallStats(days int) (*storage.OverallStats, error)
	GetDailyStats(days int) ([]storage.DailyStats, error)
	GetPortStats(days int) ([]storage.PortStats, error)
}

// SessionStatus describes one session for the dashboard.
type SessionStatus struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
	Baud    int    `json:"baud"`
	State   string `json:"state"`
	Hotkey  string `json:"hotkey,omitempty"`
}

// Status is the live application state.
type Status struct {
	Mode          string        `json:"mode"`
	Line          string        `json:"line"`
	Notifications bool          `json:"notifications"`
	Sender        SessionStatus `json:"sender"`
	Receiver      SessionStatus `json:"receiver"`
}

// Options wires the server to the application. History may be nil when
// history is disabled.
type Options struct {
	Port        int
	History     History
	Status      func() Status
	Config      func() *config.Config
	ApplyConfig func(*config.Config) error
	Logger      *slog.Logger
}

// Server represents the web server
type Server struct {
	opts   Options
	hub    *Hub
	logger *slog.Logger

	mu  sync.Mutex
	srv *http.Server
}

// NewServer creates a new web server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Port <= 0 {
		opts.Port = config.DefaultWebPort
	}

	hub := NewHub()
	go hub.Run()

	return &Server{
		opts:   opts,
		hub:    hub,
		logger: logger.With("component", "web"),
	}
}

// Handler returns the dashboard's routes.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Start listens on localhost and serves until Shutdown. It returns nil after
// a clean shutdown.
func (s *Server) Start() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort("127.0.0.1", fmt.Sprint(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("Starting web server", "port", s.opts.Port, "url", s.URL())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown stops the listener and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()

	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// URL is the dashboard address.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.opts.Port)
}

// BroadcastStatus pushes a status snapshot to all connected clients
func (s *Server) BroadcastStatus(status Status) {
	s.hub.BroadcastMessage(Message{Type: MessageTypeStatus, Data: status})
}

// BroadcastTransfer pushes a new transfer to all connected clients
func (s *Server) BroadcastTransfer(t *storage.Transfer) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeTransfer,
		Data: TransferMessage{
			ID:        t.ID,
			Direction: t.Direction,
			Port:      t.Port,
			Chars:     t.Chars,
			Preview:   t.Preview,
			Success:   t.Success,
			Error:     t.ErrorMessage,
			Timestamp: t.Timestamp.UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	if s.opts.Status != nil {
		s.hub.BroadcastMessage(Message{Type: MessageTypeStatus, Data: s.opts.Status()})
	}
}
