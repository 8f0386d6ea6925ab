// Package api implements the HTTP surface of the validation service: the
// streaming validate endpoint, artifact download, health, and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/north-identity/reconvalidator/internal/artifact"
	"github.com/north-identity/reconvalidator/internal/config"
	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/recon"
	"github.com/north-identity/reconvalidator/internal/sse"
)

// Runner starts validation runs. Satisfied by *recon.Orchestrator.
type Runner interface {
	Run(ctx context.Context, cfg recon.RunConfig) <-chan sse.Event
}

// Server is the HTTP server hosting the validation API.
type Server struct {
	cfg    config.ServerConfig
	logger logger.Logger
	http   *http.Server
}

// NewServer builds the router and wraps it in an http.Server. gatherer may
// be nil to disable the metrics endpoint.
func NewServer(
	cfg config.ServerConfig,
	runner Runner,
	store artifact.Store,
	defaults config.ValidationConfig,
	log logger.Logger,
	gatherer prometheus.Gatherer,
) *Server {
	router := NewRouter(runner, store, defaults, log, gatherer)
	return &Server{
		cfg:    cfg,
		logger: log,
		http: &http.Server{
			Addr:        cfg.Address,
			Handler:     router,
			ReadTimeout: cfg.ReadTimeout,
			// WriteTimeout defaults to zero: validate responses stream for
			// the lifetime of a run.
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// NewRouter builds the Gin engine with all routes registered.
func NewRouter(
	runner Runner,
	store artifact.Store,
	defaults config.ValidationConfig,
	log logger.Logger,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	h := &handlers{runner: runner, store: store, defaults: defaults, logger: log}
	group := router.Group("/api/recon-validation")
	group.POST("/validate", h.validate)
	group.GET("/download/:jobId", h.download)

	return router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", logger.String("address", s.cfg.Address))
	err := s.http.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// loggingMiddleware logs one line per request.
func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		)
	}
}
