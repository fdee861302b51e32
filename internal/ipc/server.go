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

	"retrovue/internal/daemon"
	"retrovue/internal/logging"
	"retrovue/internal/runtime"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("RetroVue", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket", logging.Args(
			logging.String("socket", s.path),
			logging.Error(err),
		)...)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockPath
	resp.SocketPath = status.SocketPath
	resp.Channels = status.Channels
	return nil
}

func (s *service) Health(_ HealthRequest, resp *HealthResponse) error {
	resp.Channels = s.daemon.Health()
	for _, h := range resp.Channels {
		if h.CheckedAt.After(resp.CheckedAt) {
			resp.CheckedAt = h.CheckedAt
		}
	}
	return nil
}

func (s *service) SetMode(req SetModeRequest, resp *SetModeResponse) error {
	mode, err := runtime.ParseMode(req.Mode)
	if err != nil {
		return err
	}
	director := s.daemon.Director()
	if req.Channel == "" {
		s.log().Info("station mode change requested", logging.String("mode", req.Mode))
		if err := director.SetGlobalMode(s.ctx, mode); err != nil {
			return err
		}
		resp.Mode = string(mode)
		resp.Channels = len(director.Managers())
		return nil
	}

	ch, err := s.daemon.ResolveChannel(s.ctx, req.Channel)
	if err != nil {
		return fmt.Errorf("resolve channel %q: %w", req.Channel, err)
	}
	if err := director.SetChannelMode(s.ctx, ch.ID, mode); err != nil {
		return err
	}
	resp.Mode = string(mode)
	resp.Channels = 1
	return nil
}

func (s *service) Extend(_ ExtendRequest, resp *ExtendResponse) error {
	s.log().Debug("on-demand horizon extension requested")
	errs := s.daemon.ExtendNow(s.ctx)
	if len(errs) > 0 {
		resp.Errors = errs
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("daemon stop requested via IPC")
	// Stop in the background so the acknowledgment reaches the client
	// before the process begins shutting down.
	go s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
