// Package openai provides the HTTP handler for the OpenAI-compatible chat completions
// endpoint. Requests are dispatched to the configured backend executor; streaming answers
// are relayed as Server-Sent Events.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiosk-llm/relay/internal/interfaces"
	"github.com/kiosk-llm/relay/internal/logging"
	"github.com/kiosk-llm/relay/internal/runtime/executor"
	"github.com/kiosk-llm/relay/sdk/api/handlers"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// OpenAIAPIHandler contains the handlers for OpenAI API endpoints.
type OpenAIAPIHandler struct {
	*handlers.BaseAPIHandler
}

// NewOpenAIAPIHandler creates a new OpenAI API handlers instance.
func NewOpenAIAPIHandler(apiHandlers *handlers.BaseAPIHandler) *OpenAIAPIHandler {
	return &OpenAIAPIHandler{
		BaseAPIHandler: apiHandlers,
	}
}

// ChatCompletions handles the /v1/chat/completions endpoint.
// The body must be a JSON object; configuration errors are answered with 400 before any
// upstream call. "stream": true selects the SSE path.
func (h *OpenAIAPIHandler) ChatCompletions(c *gin.Context) {
	start := time.Now()

	rawJSON, err := c.GetRawData()
	if err != nil {
		h.WriteErrorResponse(c, &interfaces.ErrorMessage{
			StatusCode: http.StatusBadRequest,
			Error:      fmt.Errorf("invalid request: %w", err),
		})
		return
	}
	if !json.Valid(rawJSON) || !gjson.ParseBytes(rawJSON).IsObject() {
		h.WriteErrorResponse(c, &interfaces.ErrorMessage{
			StatusCode: http.StatusBadRequest,
			Error:      errors.New("invalid JSON body: expected a JSON object"),
		})
		return
	}

	if errCfg := h.Cfg.Validate(); errCfg != nil || h.Executor == nil {
		if errCfg == nil {
			errCfg = fmt.Errorf("no executor for backend %q", h.Cfg.Backend)
		}
		h.WriteErrorResponse(c, &interfaces.ErrorMessage{StatusCode: http.StatusBadRequest, Error: errCfg})
		return
	}

	stream := gjson.GetBytes(rawJSON, "stream").Type == gjson.True

	if stream {
		h.handleStreamingResponse(c, rawJSON)
	} else {
		h.handleNonStreamingResponse(c, rawJSON)
	}
	h.Metrics.RecordRequest(h.Backend(), stream, c.Writer.Status(), time.Since(start))
}

// handleNonStreamingResponse relays a complete upstream answer. Upstream HTTP errors keep
// their status and body; transport failures become a 502.
func (h *OpenAIAPIHandler) handleNonStreamingResponse(c *gin.Context, rawJSON []byte) {
	ctx, cancel := h.GetContextWithCancel(c)
	defer cancel()

	resp, err := h.Executor.Execute(ctx, executor.Request{Payload: rawJSON})
	if err != nil {
		var se executor.StatusError
		if !errors.As(err, &se) {
			log.WithField("request_id", logging.GetRequestID(ctx)).Warnf("chat completion failed: %v", err)
		}
		h.WriteErrorResponse(c, handlers.ErrorMessageFromError(err))
		return
	}

	c.Header("Content-Type", "application/json")
	handlers.WriteUpstreamHeaders(c.Writer.Header(), resp.Headers)
	c.Status(resp.StatusCode)
	_, _ = c.Writer.Write(resp.Payload)
}

// handleStreamingResponse opens the upstream stream and forwards it as SSE. Once the
// stream has begun the status line is fixed; later failures arrive as chunks.
func (h *OpenAIAPIHandler) handleStreamingResponse(c *gin.Context, rawJSON []byte) {
	// Get the http.Flusher interface to manually flush the response.
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.WriteErrorResponse(c, &interfaces.ErrorMessage{
			StatusCode: http.StatusInternalServerError,
			Error:      errors.New("streaming not supported"),
		})
		return
	}

	ctx, cancel := h.GetContextWithCancel(c)
	defer cancel()

	result, err := h.Executor.ExecuteStream(ctx, executor.Request{Payload: rawJSON})
	if err != nil {
		log.WithField("request_id", logging.GetRequestID(ctx)).Warnf("chat completion stream failed to open: %v", err)
		h.WriteErrorResponse(c, handlers.ErrorMessageFromError(err))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	handlers.WriteUpstreamHeaders(c.Writer.Header(), result.Headers)
	c.Status(result.StatusCode)
	flusher.Flush()

	var opts handlers.StreamForwardOptions
	if result.Raw {
		opts.WriteChunk = func(chunk []byte) {
			_, _ = c.Writer.Write(chunk)
		}
	} else {
		opts = sseForwardOptions(c)
	}

	errStream := h.ForwardStream(c, flusher, result.Chunks, opts)
	switch {
	case errStream == nil:
	case errors.Is(errStream, context.Canceled) && c.Request.Context().Err() != nil:
		log.WithField("request_id", logging.GetRequestID(ctx)).Debug("client disconnected mid-stream")
		h.Metrics.RecordClientDisconnect(h.Backend())
	default:
		log.WithField("request_id", logging.GetRequestID(ctx)).Warnf("chat completion stream ended with error: %v", errStream)
	}
}

// sseForwardOptions frames every chunk as one SSE data event and closes with [DONE].
func sseForwardOptions(c *gin.Context) handlers.StreamForwardOptions {
	return handlers.StreamForwardOptions{
		WriteChunk: func(chunk []byte) {
			_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", string(chunk))
		},
		WriteDone: func() {
			_, _ = fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		},
	}
}
