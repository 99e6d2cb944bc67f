package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"scribe/internal/logging"
)

// Server answers control requests for one daemon on a unix socket.
type Server struct {
	path   string
	logger *slog.Logger
	ln     net.Listener
	rpc    *rpc.Server
	stop   context.CancelFunc

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer binds path, replacing any stale socket file. The socket is only
// reachable by the daemon's user.
func NewServer(ctx context.Context, path string, ctrl Controller, logger *slog.Logger) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("ipc server requires a controller")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serveCtx, stop := context.WithCancel(ctx)
	srv := rpc.NewServer()
	if err := srv.RegisterName(serviceName, &service{ctrl: ctrl, logger: logger, ctx: serveCtx}); err != nil {
		stop()
		ln.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return &Server{
		path:   path,
		logger: logger,
		ln:     ln,
		rpc:    srv,
		stop:   stop,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

func (s *Server) Path() string { return s.path }

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				s.logger.Warn("ipc accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "scribe daemon commands may not reach the daemon"),
					logging.String(logging.FieldErrorHint, "check permissions on the data directory"))
				continue
			}
			if !s.track(conn) {
				conn.Close()
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrack(conn)
				s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
			}()
		}
	}()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Close stops accepting, hangs up on connected clients and removes the
// socket file.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.stop()
	_ = s.ln.Close()
	s.wg.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("ipc socket cleanup failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "a stale socket file remains until the next start"))
	}
}

// service is the RPC receiver; its exported methods are the wire API.
type service struct {
	ctrl   Controller
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.ctrl.Snapshot(s.ctx)
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *PauseResponse) error {
	if err := s.ctrl.Pause(s.ctx); err != nil {
		return err
	}
	resp.Paused = true
	s.logger.Info("workers paused", logging.String(logging.FieldEventType, "daemon_paused"))
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	if err := s.ctrl.Resume(s.ctx); err != nil {
		return err
	}
	resp.Paused = false
	s.logger.Info("workers resumed", logging.String(logging.FieldEventType, "daemon_resumed"))
	return nil
}
