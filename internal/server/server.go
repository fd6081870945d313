package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hdlbus/acbridge/internal/logging"
)

// StateUpdate is one JSON message on the state stream: the full
// visible state of one unit after a change.
type StateUpdate struct {
	Device      string    `json:"device"`
	Name        string    `json:"name,omitempty"`
	Power       bool      `json:"power"`
	TargetTemp  int       `json:"target_temp"`
	CurrentTemp int       `json:"current_temp,omitempty"`
	Mode        string    `json:"mode"`
	Fan         string    `json:"fan"`
	At          time.Time `json:"at"`
}

// Config holds the server configuration
type Config struct {
	Listen string // Bind address, e.g. ":8673"
}

const writeTimeout = 5 * time.Second

// Server streams unit state changes to WebSocket subscribers. Each
// subscriber receives the last known state of every unit on connect,
// then every change as it happens.
type Server struct {
	config *Config
	httpd  *http.Server

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
	last  map[string]StateUpdate
}

// New creates a new Server instance
func New(config *Config) *Server {
	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local-network tool; subscribers are trusted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
		last:  make(map[string]StateUpdate),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	s.httpd = &http.Server{
		Addr:    config.Listen,
		Handler: mux,
	}

	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpd.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	logging.Info("State stream listening",
		zap.String("addr", ln.Addr().String()),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpd.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Publish records the unit's latest state and broadcasts it to every
// subscriber. Failed subscribers are dropped.
func (s *Server) Publish(u StateUpdate) {
	payload, err := json.Marshal(u)
	if err != nil {
		logging.Error("Failed to encode state update", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last[u.Device] = u

	for addr, conn := range s.conns {
		if err := writeUpdate(addr, conn, payload); err != nil {
			logging.Warn("Dropping slow subscriber",
				zap.String("remote_addr", addr),
				zap.Error(err),
			)
			conn.Close()
			delete(s.conns, addr)
		}
	}
}

// writeUpdate sends one JSON text message with a deadline and logs the
// outbound traffic.
func writeUpdate(addr string, conn *websocket.Conn, payload []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	logging.LogWebSocketMessage(addr, "sent", websocket.TextMessage, payload)
	return nil
}

// SubscriberCount returns the number of connected subscribers.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down state stream...")

	s.mu.Lock()
	for addr, conn := range s.conns {
		logging.Info("Closing subscriber", zap.String("remote_addr", addr))
		conn.Close()
	}
	s.conns = make(map[string]*websocket.Conn)
	s.mu.Unlock()

	return s.httpd.Shutdown(ctx)
}

// handleStream upgrades the connection and registers it as a
// subscriber. The connection stays open until the client goes away;
// inbound messages are ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	remoteAddr := conn.RemoteAddr().String()

	logging.Info("Subscriber connected", zap.String("remote_addr", remoteAddr))

	// Register and replay the current snapshot while holding the lock
	// so no update can slip between snapshot and live stream.
	s.mu.Lock()
	s.conns[remoteAddr] = conn
	snapshotErr := false
	for _, u := range s.last {
		payload, err := json.Marshal(u)
		if err != nil {
			continue
		}
		if err := writeUpdate(remoteAddr, conn, payload); err != nil {
			snapshotErr = true
			break
		}
	}
	if snapshotErr {
		conn.Close()
		delete(s.conns, remoteAddr)
	}
	s.mu.Unlock()
	if snapshotErr {
		return
	}

	// Read loop exists only to notice the client closing.
	go func() {
		defer func() {
			conn.Close()
			s.mu.Lock()
			delete(s.conns, remoteAddr)
			s.mu.Unlock()
			logging.Info("Subscriber disconnected", zap.String("remote_addr", remoteAddr))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
