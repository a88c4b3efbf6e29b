// Package api serves the topology and live status of a SLASH2 test fleet
// over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"evalgo.org/tsuite/internal/config"
	"evalgo.org/tsuite/internal/status"
	"evalgo.org/tsuite/internal/topology"
)

// Backend provides the data served by the API.
type Backend interface {
	Registry() *topology.Registry
	Status(ctx context.Context) (status.Report, error)
}

// Server is the status HTTP server.
type Server struct {
	echo    *echo.Echo
	backend Backend
	config  config.ServerConfig
	logger  *slog.Logger
}

// New creates a new API server instance.
func New(cfg config.ServerConfig, backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	s := &Server{
		echo:    e,
		backend: backend,
		config:  cfg,
		logger:  logger.With("component", "api"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(RequestLogger(s.logger))
	s.echo.Use(SecurityHeaders)

	if s.config.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.RateLimit),
		)))
	}

	s.echo.Use(ValidateAcceptHeader)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/resources", s.listResources)
	v1.GET("/status", s.getStatus)
	v1.GET("/status/:kind", s.getStatusByKind)
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout

	s.logger.Info("status server listening", "address", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	s.logger.Info("status server stopped")
	return nil
}
