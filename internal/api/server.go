// Package api wires the relay's HTTP server: the Gin engine, its middleware and routes,
// and the listener lifecycle.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiosk-llm/relay/internal/api/middleware"
	"github.com/kiosk-llm/relay/internal/buildinfo"
	"github.com/kiosk-llm/relay/internal/config"
	"github.com/kiosk-llm/relay/internal/logging"
	"github.com/kiosk-llm/relay/internal/metrics"
	"github.com/kiosk-llm/relay/sdk/api/handlers"
	"github.com/kiosk-llm/relay/sdk/api/handlers/openai"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type serverOptionConfig struct {
	extraMiddleware     []gin.HandlerFunc
	engineConfigurator  func(*gin.Engine)
	routerConfigurators []func(*gin.Engine, *handlers.BaseAPIHandler, *config.Config)
	metrics             *metrics.Collector
}

// ServerOption customises HTTP server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends additional Gin middleware during server construction.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator allows callers to mutate the Gin engine prior to middleware setup.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigurator = fn
	}
}

// WithRouterConfigurator appends a callback after default routes are registered.
func WithRouterConfigurator(fn func(*gin.Engine, *handlers.BaseAPIHandler, *config.Config)) ServerOption {
	return func(cfg *serverOptionConfig) {
		if fn != nil {
			cfg.routerConfigurators = append(cfg.routerConfigurators, fn)
		}
	}
}

// WithMetricsCollector makes the server record into collector instead of a private one.
func WithMetricsCollector(collector *metrics.Collector) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.metrics = collector
	}
}

// Server is the relay HTTP server.
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	cfg      *config.Config
	handlers *handlers.BaseAPIHandler
	metrics  *metrics.Collector
}

// NewServer builds the Gin engine and routes for cfg. The listener is opened by Start.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	optionState := &serverOptionConfig{}
	for _, opt := range opts {
		opt(optionState)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	collector := optionState.metrics
	if collector == nil && cfg.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
	}

	engine := gin.New()
	if optionState.engineConfigurator != nil {
		optionState.engineConfigurator(engine)
	}
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}

	baseHandlers := handlers.NewBaseAPIHandlers(cfg, collector)
	engine.Use(middleware.RequestLoggingMiddleware(cfg.RequestLog, baseHandlers.Backend()))

	s := &Server{
		engine:   engine,
		cfg:      cfg,
		handlers: baseHandlers,
		metrics:  collector,
	}
	s.setupRoutes()
	for _, configure := range optionState.routerConfigurators {
		configure(engine, baseHandlers, cfg)
	}

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	openaiHandlers := openai.NewOpenAIAPIHandler(s.handlers)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/chat/completions", openaiHandlers.ChatCompletions)
	}

	s.engine.GET("/healthz", s.health)
	if s.metrics != nil {
		s.engine.GET("/metrics", func(c *gin.Context) {
			logging.SkipGinRequestLogging(c)
			s.metrics.Handler().ServeHTTP(c.Writer, c.Request)
		})
	}
}

func (s *Server) health(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": s.handlers.Backend(),
		"version": buildinfo.Version,
	})
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens on the configured address and serves until Stop is called.
// It returns nil after a graceful stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve serves on listener until Stop is called.
func (s *Server) Serve(listener net.Listener) error {
	log.Infof("relay listening on http://%s (backend=%s)", listener.Addr(), s.handlers.Backend())
	if errServe := s.server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return errServe
	}
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests until ctx is done
// or the shutdown timeout elapses.
func (s *Server) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if errStop := s.server.Shutdown(stopCtx); errStop != nil {
		log.Errorf("relay server stop failed: %v", errStop)
		return errStop
	}
	log.Info("relay server stopped")
	return nil
}
