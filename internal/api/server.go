package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/costargen/costargen/internal/config"
	"github.com/costargen/costargen/internal/generate"
	"github.com/costargen/costargen/internal/logging"
	"github.com/costargen/costargen/internal/provider"
	"github.com/costargen/costargen/internal/usage"
)

// Server owns the gin engine and the HTTP listener.
type Server struct {
	cfg      *config.Config
	engine   *gin.Engine
	srv      *http.Server
	service  *generate.Service
	registry *provider.Registry
	recorder *usage.Recorder
}

// NewServer builds the engine, middleware chain, and routes.
func NewServer(cfg *config.Config, service *generate.Service, registry *provider.Registry, recorder *usage.Recorder) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		engine:   gin.New(),
		service:  service,
		registry: registry,
		recorder: recorder,
	}
	s.setupMiddleware()
	s.registerRoutes()

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupMiddleware applies global middleware in order: logging, recovery,
// CORS, then the optional burst limiter.
func (s *Server) setupMiddleware() {
	s.engine.Use(logging.GinLogger())
	s.engine.Use(logging.GinRecovery())
	s.engine.Use(corsMiddleware())
	if s.cfg.RateLimit.Enabled {
		s.engine.Use(rateLimitMiddleware(s.cfg.RateLimit.RequestsPerSecond, s.cfg.RateLimit.Burst))
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/version", s.handleVersion)

	v1 := s.engine.Group("/v1")
	v1.Use(authMiddleware(s.cfg.APIKeys))
	{
		v1.POST("/generate", s.handleGenerate)
		v1.GET("/quota", s.handleQuota)
		v1.GET("/providers", s.handleProviders)
	}

	admin := s.engine.Group("/v1")
	admin.Use(adminMiddleware(s.cfg.AdminKeys))
	{
		admin.GET("/usage", s.handleUsage)
	}
}

// Start runs the listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }
