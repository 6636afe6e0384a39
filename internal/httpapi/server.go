// Package httpapi provides the HTTP API for modeld.
package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fintrustlabs/modeld/internal/logging"
	"github.com/fintrustlabs/modeld/internal/pipeline"
	"github.com/fintrustlabs/modeld/internal/session"
)

// Server provides HTTP endpoints for modeld.
type Server struct {
	echo   *echo.Echo
	store  *session.Store
	orch   *pipeline.Orchestrator
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// NewServer creates a new HTTP server.
func NewServer(store *session.Store, orch *pipeline.Orchestrator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Carry the request id into the request context so pipeline
			// log lines correlate with the access log.
			req := c.Request()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", requestID),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		store:  store,
		orch:   orch,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.POST("/session/new", s.handleNewSession)
	api.POST("/research", s.handleResearch)
	api.POST("/confirm-model", s.handleConfirmModel)
	api.POST("/provide-data", s.handleProvideData)
	api.POST("/chat", s.handleChat)
	api.GET("/status/:id", s.handleStatus)
	api.GET("/logs/:id", s.handleLogs)
	api.GET("/logs/:id/stream", s.handleLogStream)
	api.GET("/download/:id", s.handleDownload)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
