package executor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kiosk-llm/relay/internal/config"
	"github.com/kiosk-llm/relay/internal/constant"
	"github.com/kiosk-llm/relay/internal/metrics"
)

// Request carries the client's chat completion request to an executor.
type Request struct {
	// Payload is the raw OpenAI chat completion request body.
	Payload []byte
}

// Response is a complete non-streaming upstream answer, ready to relay to the client.
type Response struct {
	// StatusCode is the HTTP status to relay.
	StatusCode int
	// Payload is the response body to relay.
	Payload []byte
	// Headers carries the upstream response headers.
	Headers http.Header
}

// StreamChunk represents a single streaming payload unit emitted by executors.
type StreamChunk struct {
	// Payload is the chunk to write. For framed streams it is one JSON object.
	Payload []byte
	// Err reports a terminal error encountered while producing chunks. Only raw local
	// streams use it; Gemini streams report failures as content chunks.
	Err error
}

// StreamResult wraps a streaming response.
type StreamResult struct {
	// StatusCode is the HTTP status sent with the stream headers.
	StatusCode int
	// Headers carries upstream HTTP response headers from the initial connection.
	Headers http.Header
	// Raw marks streams whose chunks are relayed byte-for-byte. Other streams carry one
	// JSON object per chunk that the handler frames as an SSE data event and closes with [DONE].
	Raw bool
	// Chunks is the channel of streaming payload units. It is closed when the stream ends.
	Chunks <-chan StreamChunk
}

// Executor serves chat completion requests against one upstream backend.
type Executor interface {
	// Identifier returns the backend identifier, as in constant.Local or constant.Gemini.
	Identifier() string
	// Execute performs a non-streaming request.
	Execute(ctx context.Context, req Request) (Response, error)
	// ExecuteStream opens a streaming request. Once it returns without error the stream
	// has begun and every further failure is reported in-band.
	ExecuteStream(ctx context.Context, req Request) (*StreamResult, error)
}

// StatusError represents an error that carries an HTTP status code.
type StatusError interface {
	error
	StatusCode() int
}

// statusErr is an upstream HTTP failure whose body is relayed verbatim.
type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("status %d", e.code)
}

func (e statusErr) StatusCode() int { return e.code }

// New returns the executor serving cfg.Backend, or nil when the backend is unknown.
func New(cfg *config.Config, collector *metrics.Collector) Executor {
	backend, ok := constant.CanonicalBackend(cfg.Backend)
	if !ok {
		return nil
	}
	switch backend {
	case constant.Gemini:
		return NewGeminiExecutor(cfg, collector)
	default:
		return NewLocalExecutor(cfg, collector)
	}
}
