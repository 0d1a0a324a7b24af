// Package api exposes server option helpers for embedding the relay.
//
// It wraps internal server option types so external projects can configure the embedded
// HTTP server without importing internal packages.
package api

import (
	"github.com/gin-gonic/gin"
	internalapi "github.com/kiosk-llm/relay/internal/api"
	"github.com/kiosk-llm/relay/internal/metrics"
	"github.com/kiosk-llm/relay/sdk/api/handlers"
	"github.com/kiosk-llm/relay/sdk/config"
)

// ServerOption customises HTTP server construction.
type ServerOption = internalapi.ServerOption

// Server is the relay HTTP server.
type Server = internalapi.Server

// NewServer builds a relay server for cfg.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	return internalapi.NewServer(cfg, opts...)
}

// WithMiddleware appends additional Gin middleware during server construction.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption { return internalapi.WithMiddleware(mw...) }

// WithEngineConfigurator allows callers to mutate the Gin engine prior to middleware setup.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return internalapi.WithEngineConfigurator(fn)
}

// WithRouterConfigurator appends a callback after default routes are registered.
func WithRouterConfigurator(fn func(*gin.Engine, *handlers.BaseAPIHandler, *config.Config)) ServerOption {
	return internalapi.WithRouterConfigurator(fn)
}

// WithMetricsCollector makes the server record into collector.
func WithMetricsCollector(collector *metrics.Collector) ServerOption {
	return internalapi.WithMetricsCollector(collector)
}
