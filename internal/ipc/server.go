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
	"time"

	"corrflow/internal/api"
	"corrflow/internal/logging"
)

const healthTimeout = 10 * time.Second

// Backend is the daemon surface served over the socket.
type Backend interface {
	Status(ctx context.Context) api.DaemonStatus
	Health(ctx context.Context) (api.Health, error)
}

// Server answers control requests from the CLI on a Unix socket.
type Server struct {
	socket   string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server
	ctx      context.Context
	cancel   context.CancelFunc

	wg sync.WaitGroup // accept loop only; connections end when clients hang up
}

// NewServer binds socket, replacing any stale file left by a previous run.
// stop runs when a client asks the daemon to exit; nil disables Stop.
func NewServer(ctx context.Context, socket string, backend Backend, stop func(), logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc: nil backend")
	}
	if err := os.Remove(socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ipc: clear stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", socket, err)
	}

	s := &Server{
		socket:   socket,
		logger:   logging.NewComponentLogger(logger, "ipc"),
		listener: ln,
		rpc:      rpc.NewServer(),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	handler := &service{backend: backend, stop: stop, logger: s.logger, ctx: s.ctx}
	if err := s.rpc.RegisterName(ServiceName, handler); err != nil {
		s.cancel()
		_ = ln.Close()
		return nil, fmt.Errorf("ipc: register: %w", err)
	}
	return s, nil
}

// Serve accepts connections in the background until the server context ends
// or Close is called.
func (s *Server) Serve() {
	context.AfterFunc(s.ctx, func() { _ = s.listener.Close() })
	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Debug("ipc listening", logging.String("socket", s.socket))
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		switch {
		case err == nil:
		case s.ctx.Err() != nil, errors.Is(err, net.ErrClosed):
			return
		default:
			logging.WarnWithContext(s.logger, "ipc accept failed", "ipc_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "CLI status and stop requests may fail"),
				logging.String(logging.FieldErrorHint, "check the socket directory permissions"),
			)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		go s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Close stops accepting and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	if err := os.Remove(s.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(s.logger, "socket cleanup failed", "ipc_socket_cleanup_failed",
			logging.String("socket", s.socket),
			logging.Error(err),
			logging.String(logging.FieldImpact, "next daemon start must replace the stale socket"),
		)
	}
}

type service struct {
	backend Backend
	stop    func()
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.backend.Status(s.ctx)
	return nil
}

func (s *service) Health(_ HealthRequest, resp *HealthResponse) error {
	ctx, cancel := context.WithTimeout(s.ctx, healthTimeout)
	defer cancel()
	h, err := s.backend.Health(ctx)
	if err != nil {
		return err
	}
	resp.Health = h
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	if s.stop == nil {
		return errors.New("this daemon does not accept stop requests")
	}
	s.logger.Info("stop requested over ipc", logging.String(logging.FieldEventType, "daemon_stop_requested"))
	resp.Stopping = true
	go s.stop()
	return nil
}
