// Package backendtest provides an in-process backend daemon simulator for
// tests. It speaks the same NDJSON protocol over a UNIX socket as the real
// privileged backend, with command handling scripted by the test.
package backendtest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/stellar-vpn/stellar-desktop/internal/backend/protocol"
)

// Handler is called for each incoming request and returns the response to
// send back.
type Handler func(req *protocol.Request) *protocol.Response

// Server accepts client connections on a UNIX socket and dispatches requests
// to the configured handler. Events can be broadcast to all clients.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    Handler

	mu      sync.RWMutex
	conns   map[net.Conn]*sync.Mutex
	running bool
}

// NewServer creates a server that answers requests with handler.
// Panics if handler is nil to fail fast in test setup.
func NewServer(socketPath string, handler Handler) *Server {
	if handler == nil {
		panic("backendtest: NewServer called with nil handler")
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		conns:      make(map[net.Conn]*sync.Mutex),
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go s.acceptLoop()

	return nil
}

// Stop shuts the server down and closes all client connections.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
	_ = os.Remove(s.socketPath)
}

// Broadcast sends an event to all connected clients.
func (s *Server) Broadcast(event *protocol.Event) {
	s.mu.RLock()
	conns := make(map[net.Conn]*sync.Mutex, len(s.conns))
	for conn, mu := range s.conns {
		conns[conn] = mu
	}
	s.mu.RUnlock()

	for conn, mu := range conns {
		if err := sendJSON(conn, mu, event); err != nil {
			slog.Warn("Failed to send event to client", "error", err)
		}
	}
}

// BroadcastStatus is a convenience for pushing a status_changed event.
func (s *Server) BroadcastStatus(payload string) {
	event, err := protocol.NewEvent(protocol.EventStatusChanged, protocol.StatusChangedData{Status: payload})
	if err != nil {
		panic(err)
	}
	s.Broadcast(event)
}

// BroadcastLogLine is a convenience for pushing a log_line event.
func (s *Server) BroadcastLogLine(line string) {
	event, err := protocol.NewEvent(protocol.EventLogLine, protocol.LogLineData{Line: line})
	if err != nil {
		panic(err)
	}
	s.Broadcast(event)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return
			}
			slog.Error("Accept error", "error", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = &sync.Mutex{}
		s.mu.Unlock()

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	s.mu.RLock()
	writeMu := s.conns[conn]
	s.mu.RUnlock()
	if writeMu == nil {
		return
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				slog.Debug("Read error", "error", err)
			}
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp := protocol.NewErrorResponse("", protocol.ErrCodeInvalidRequest, "invalid JSON")
			_ = sendJSON(conn, writeMu, resp)
			continue
		}

		resp := s.handler(&req)
		if err := sendJSON(conn, writeMu, resp); err != nil {
			return
		}
	}
}

func sendJSON(conn net.Conn, mu *sync.Mutex, v interface{}) error {
	mu.Lock()
	defer mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	_, err = conn.Write(data)
	return err
}
