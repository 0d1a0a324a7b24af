// Package handlers provides the shared HTTP handler plumbing of the relay server:
// the base handler holding the configured executor, error responses and the SSE forwarder.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiosk-llm/relay/internal/config"
	"github.com/kiosk-llm/relay/internal/interfaces"
	"github.com/kiosk-llm/relay/internal/logging"
	"github.com/kiosk-llm/relay/internal/metrics"
	"github.com/kiosk-llm/relay/internal/runtime/executor"
	"github.com/tidwall/sjson"
)

// ErrorResponse is the JSON body of every error the relay itself reports.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BaseAPIHandler holds what every API handler needs: the configuration, the executor
// for the configured backend and the metrics collector.
type BaseAPIHandler struct {
	// Cfg is the server configuration. It is read-only once the server starts.
	Cfg *config.Config

	// Executor serves chat requests. It is nil when Cfg names an unknown backend.
	Executor executor.Executor

	// Metrics records request outcomes. It may be nil.
	Metrics *metrics.Collector
}

// NewBaseAPIHandlers creates a new API handlers instance serving cfg.Backend.
func NewBaseAPIHandlers(cfg *config.Config, collector *metrics.Collector) *BaseAPIHandler {
	if cfg == nil {
		cfg = config.Default()
	}
	return &BaseAPIHandler{
		Cfg:      cfg,
		Executor: executor.New(cfg, collector),
		Metrics:  collector,
	}
}

// Backend returns the identifier of the serving executor, or the configured name when
// no executor could be built.
func (h *BaseAPIHandler) Backend() string {
	if h.Executor != nil {
		return h.Executor.Identifier()
	}
	return h.Cfg.Backend
}

// BuildErrorResponseBody builds the JSON error body {"error": "..."}.
// If errText is already valid JSON, it is returned as-is to preserve upstream error payloads.
func BuildErrorResponseBody(status int, errText string) []byte {
	trimmed := strings.TrimSpace(errText)
	if trimmed == "" {
		if status <= 0 {
			status = http.StatusInternalServerError
		}
		trimmed = http.StatusText(status)
	}
	if json.Valid([]byte(trimmed)) && (trimmed[0] == '{' || trimmed[0] == '[') {
		return []byte(trimmed)
	}
	body, _ := sjson.SetBytes([]byte(`{}`), "error", trimmed)
	return body
}

// ErrorMessageFromError maps an executor error to the status reported to the client.
// Errors carrying a status keep it; anything else is a 502.
func ErrorMessageFromError(err error) *interfaces.ErrorMessage {
	if err == nil {
		return nil
	}
	status := http.StatusBadGateway
	var se executor.StatusError
	if errors.As(err, &se) && se.StatusCode() > 0 {
		status = se.StatusCode()
	}
	return &interfaces.ErrorMessage{StatusCode: status, Error: err}
}

// WriteErrorResponse writes msg as a JSON error body with its status code.
func (h *BaseAPIHandler) WriteErrorResponse(c *gin.Context, msg *interfaces.ErrorMessage) {
	status := http.StatusInternalServerError
	if msg != nil && msg.StatusCode > 0 {
		status = msg.StatusCode
	}

	errText := http.StatusText(status)
	if msg != nil && msg.Error != nil {
		if v := strings.TrimSpace(msg.Error.Error()); v != "" {
			errText = v
		}
	}

	c.Data(status, "application/json", BuildErrorResponseBody(status, errText))
}

// GetContextWithCancel derives the context for one upstream call from the client request.
// It is cancelled when the client goes away or the returned cancel func is called, and it
// carries the request id assigned by the logging middleware.
func (h *BaseAPIHandler) GetContextWithCancel(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request.Context()
	if logging.GetRequestID(ctx) == "" {
		if requestID := logging.GetGinRequestID(c); requestID != "" {
			ctx = logging.WithRequestID(ctx, requestID)
		}
	}
	return context.WithCancel(ctx)
}

// StreamingKeepAliveInterval returns the SSE keep-alive interval for this server.
// Returning 0 disables keep-alives (default when unset).
func StreamingKeepAliveInterval(cfg *config.SDKConfig) time.Duration {
	if cfg == nil || cfg.Streaming.KeepAliveSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.Streaming.KeepAliveSeconds) * time.Second
}
