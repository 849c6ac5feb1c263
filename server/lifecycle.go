package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/logger"
)

// Start serves on the configured port until Stop is called
func (s *Server) Start() error {
	port := s.config().GetServerPort()
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", port)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
// After Stop it closes ln and returns nil at once.
func (s *Server) Serve(ln net.Listener) error {
	if s.getState() != ServerStateRunning {
		ln.Close()
		return nil
	}
	if err := s.startCron(); err != nil {
		ln.Close()
		return err
	}
	// Stop may land between the state check and here
	defer s.stopCron()
	s.serving.Store(true)
	defer s.serving.Store(false)

	s.logger.Infow("Server ready",
		logger.FieldAddress, ln.Addr().String(),
		logger.FieldPort, s.config().GetServerPort(),
		"rate_limit_per_minute", s.config().Server.ScheduleRunsPerMinute,
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop drains in-flight requests, stops periodic runs and disconnects clients
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Infow("Initiating server shutdown")
	s.serving.Store(false)
	s.setState(ServerStateDraining)

	s.stopCron()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = errors.Wrap(err, "http shutdown")
		s.logger.Warnw("HTTP shutdown did not complete", logger.FieldError, err)
	}

	s.hub.CloseAll()
	s.cancel()

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete", "broadcast_drops", s.hub.drops.Load())
	return shutdownErr
}

// ShutdownTimeout returns the configured graceful shutdown bound
func (s *Server) ShutdownTimeout() time.Duration {
	if n := s.config().Server.ShutdownTimeoutSeconds; n > 0 {
		return time.Duration(n) * time.Second
	}
	return DefaultShutdownTimeout
}
