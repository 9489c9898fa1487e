// Package server provides the process's thin administrative HTTP surface:
// liveness, readiness, and Prometheus metrics. It carries no request
// authentication or business routes — those live on the message bus.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/netmonitor/semantic-index/internal/metrics"
)

// Readier reports whether the process's dependencies (engine, embedding
// provider) are reachable and ready to serve.
type Readier interface {
	Ready(ctx context.Context) error
}

// Server is the admin HTTP server: /health, /ready, /metrics only.
type Server struct {
	cfg     Config
	logger  *zap.Logger
	router  *gin.Engine
	server  *http.Server
	readier Readier
}

// Config configures the admin server.
type Config struct {
	HTTPPort            int
	ShutdownGracePeriod time.Duration
	LogLevel            string
	// Metrics is optional; when nil no series are recorded.
	Metrics *metrics.Metrics
}

// New creates an admin server. readier may be nil, in which case /ready
// always reports ready.
func New(cfg Config, readier Readier, logger *zap.Logger) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		router:  gin.New(),
		readier: readier,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.setupRoutes()

	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		if s.cfg.Metrics != nil {
			s.cfg.Metrics.HTTPRequestsInFlight.Inc()
			defer s.cfg.Metrics.HTTPRequestsInFlight.Dec()
		}

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)

		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordHTTPRequest(method, path, status, duration.Seconds())
		}

		s.logger.Debug("admin request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", duration),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "semantic-index",
	})
}

func (s *Server) readyHandler(c *gin.Context) {
	if s.readier == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	if err := s.readier.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Start runs the HTTP server until Shutdown is called or it fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting admin server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Gin router, for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
