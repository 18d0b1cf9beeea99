// Package server provides the admin HTTP surface: health, readiness and
// metrics endpoints, with context-aware graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyrsmithlabs/vectord/internal/bootstrap"
	"github.com/fyrsmithlabs/vectord/internal/config"
)

// Server is the admin HTTP server.
type Server struct {
	config       *config.Config
	echo         *echo.Echo
	orchestrator *bootstrap.Orchestrator
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadyResponse is the JSON body of GET /readyz.
type ReadyResponse struct {
	State  string `json:"state"`
	Engine string `json:"engine,omitempty"`
}

// New creates the admin server. Readiness reflects the orchestrator state:
// /readyz returns 200 only while an engine is initialized and serving.
func New(cfg *config.Config, orch *bootstrap.Orchestrator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		config:       cfg,
		echo:         e,
		orchestrator: orch,
	}
	s.registerRoutes()
	return s
}

// Echo exposes the router for additional route registration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/readyz", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// handleHealth reports process liveness only.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "vectord",
	})
}

// handleReady reports bootstrap readiness. Degraded and idle states return
// 503 so load balancers stop routing vector traffic here.
func (s *Server) handleReady(c echo.Context) error {
	state := s.orchestrator.State()
	resp := ReadyResponse{State: string(state)}
	if engine, ok := s.orchestrator.CurrentEngine(); ok {
		resp.Engine = string(engine)
	}

	code := http.StatusServiceUnavailable
	if state == bootstrap.StateReady {
		code = http.StatusOK
	}
	return c.JSON(code, resp)
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully within the configured timeout.
//
// Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.config.Server.ShutdownTimeout,
		)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}
