package httpapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/hertz/pkg/app/server"
)

// Server runs the API on a hertz server.
type Server struct {
	h      *server.Hertz
	addr   string
	logger *slog.Logger
}

// NewServer creates a Server listening on port.
func NewServer(port int, hub Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	addr := fmt.Sprintf(":%d", port)
	h := server.New(server.WithHostPorts(addr))
	NewHandler(hub, logger).Register(h.Engine)

	return &Server{
		h:      h,
		addr:   addr,
		logger: logger.With("component", "httpapi"),
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		if err := s.h.Run(); err != nil {
			s.logger.Error("http server exited", "error", err)
		}
	}()
	s.logger.Info("http server started", "addr", s.addr)
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.h.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
