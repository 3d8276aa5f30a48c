// Package host implements the host side of the ftpsh IPC channel: a Unix
// domain socket server that dispatches named operations to handlers.
package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"

	ftpsh "github.com/Paranoid-AF/ftpsh"
)

// HandlerFunc executes one operation. The context is cancelled when the
// server closes. Returning a *ftpsh.Error sends its code to the client; any
// other error is reported as "server_fault".
type HandlerFunc func(ctx context.Context, args []string) (any, error)

// Server listens on a Unix domain socket for operation requests.
type Server struct {
	listener net.Listener
	sockPath string

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	conns    map[net.Conn]context.CancelFunc
	closed   bool

	wg sync.WaitGroup
}

// NewServer creates a server bound to the given socket path.
func NewServer(sockPath string) (*Server, error) {
	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		sockPath: sockPath,
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[net.Conn]context.CancelFunc),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.sockPath }

// Handle registers h for operation, replacing any earlier handler.
func (s *Server) Handle(operation string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[operation] = h
}

// Serve accepts connections and handles requests until Close is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			cancel()
			conn.Close()
			return nil
		}
		s.conns[conn] = cancel
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConn(ctx, conn)
	}
}

// Close stops accepting, drops open connections, waits for their handlers
// and removes the socket file.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for conn, cancel := range s.conns {
		cancel()
		conn.Close()
	}
	s.mu.Unlock()

	s.listener.Close()
	s.wg.Wait()
	os.Remove(s.sockPath)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.conns[conn]; ok {
			cancel()
			delete(s.conns, conn)
		}
		s.mu.Unlock()
		conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		slog.Debug("request", "data", string(raw))

		var req ftpsh.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			slog.Warn("invalid request", "error", err)
			return
		}

		resp := s.dispatch(ctx, &req)
		resp.RequestID = req.RequestID

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to marshal response", "error", err)
			return
		}

		slog.Debug("response", "data", string(data))

		if _, err := conn.Write(append(data, '\n')); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *ftpsh.Request) *ftpsh.Response {
	s.mu.RLock()
	h, ok := s.handlers[req.Operation]
	s.mu.RUnlock()
	if !ok {
		return &ftpsh.Response{Error: &ftpsh.Error{
			Code:    "unknown_operation",
			Message: "unknown operation: " + req.Operation,
		}}
	}

	result, err := h(ctx, req.Args)
	if err != nil {
		var herr *ftpsh.Error
		if errors.As(err, &herr) {
			return &ftpsh.Response{Error: herr}
		}
		return &ftpsh.Response{Error: &ftpsh.Error{Code: "server_fault", Message: err.Error()}}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return &ftpsh.Response{Error: &ftpsh.Error{Code: "server_fault", Message: "encode result: " + err.Error()}}
	}
	return &ftpsh.Response{Result: data}
}
