// Package executor runs chat completion requests against the configured upstream.
// The local executor relays an OpenAI-compatible server verbatim; the Gemini executor
// translates to the Gemini API and re-emits its answers as OpenAI chat completions.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kiosk-llm/relay/internal/config"
	"github.com/kiosk-llm/relay/internal/constant"
	"github.com/kiosk-llm/relay/internal/metrics"
	"github.com/kiosk-llm/relay/internal/sseutil"
	chat_completions "github.com/kiosk-llm/relay/internal/translator/gemini/openai/chat-completions"
	"github.com/kiosk-llm/relay/internal/util"
)

// GeminiExecutor is a stateless executor for the Gemini API using an API key.
type GeminiExecutor struct {
	cfg     *config.Config
	client  *http.Client
	stream  *http.Client
	metrics *metrics.Collector
	retrier RateLimitRetrier
	now     func() time.Time
}

// NewGeminiExecutor creates a new Gemini executor instance. collector may be nil.
func NewGeminiExecutor(cfg *config.Config, collector *metrics.Collector) *GeminiExecutor {
	e := &GeminiExecutor{
		cfg:     cfg,
		client:  util.NewHTTPClient(&cfg.SDKConfig, cfg.UpstreamTimeout()),
		stream:  util.NewHTTPClient(&cfg.SDKConfig, 0),
		metrics: collector,
		now:     time.Now,
	}
	model := cfg.Gemini.Model
	e.retrier = RateLimitRetrier{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		DefaultDelay: cfg.RetryDefaultDelay(),
		Sleep:        WaitWithContext,
		OnRetry:      func(RetryState) { collector.RecordRateLimitRetry(model) },
		OnGiveUp:     func(RetryState) { collector.RecordRateLimitGiveUp(model) },
	}
	return e
}

// Identifier returns the executor identifier.
func (e *GeminiExecutor) Identifier() string { return constant.Gemini }

func (e *GeminiExecutor) endpoint(action string) string {
	url := fmt.Sprintf("%s/models/%s:%s", e.cfg.Gemini.BaseURL, e.cfg.Gemini.Model, action)
	if action == "streamGenerateContent" {
		url += "?alt=sse"
	}
	return url
}

func (e *GeminiExecutor) newRequest(ctx context.Context, action string, body []byte) (*http.Request, error) {
	if e.cfg.Gemini.APIKey == "" {
		return nil, statusErr{code: http.StatusBadRequest, msg: config.ErrMissingAPIKey.Error()}
	}
	httpReq, err := newJSONRequest(ctx, e.endpoint(action), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", e.cfg.Gemini.APIKey)
	if action == "streamGenerateContent" {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	logWithRequestID(ctx).Debugf("gemini request: POST %s x-goog-api-key=%s", httpReq.URL.Redacted(), util.HideAPIKey(e.cfg.Gemini.APIKey))
	return httpReq, nil
}

// Execute performs a non-streaming request to the Gemini API and wraps the answer in an
// OpenAI chat.completion object. Upstream HTTP errors are returned as StatusError with the
// upstream body.
func (e *GeminiExecutor) Execute(ctx context.Context, req Request) (Response, error) {
	body := chat_completions.ConvertOpenAIRequestToGemini(req.Payload)

	httpReq, err := e.newRequest(ctx, "generateContent", body)
	if err != nil {
		return Response{}, err
	}
	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		e.metrics.RecordUpstreamError(e.Identifier(), 0)
		return Response{}, fmt.Errorf("gemini request failed: %w", err)
	}
	defer closeBody(ctx, e.Identifier(), httpResp.Body)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		logWithRequestID(ctx).Debugf("request error, error status: %d, error message: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		e.metrics.RecordUpstreamError(e.Identifier(), httpResp.StatusCode)
		return Response{}, statusErr{code: httpResp.StatusCode, msg: string(b)}
	}
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		e.metrics.RecordUpstreamError(e.Identifier(), 0)
		return Response{}, fmt.Errorf("gemini read response: %w", err)
	}

	out := chat_completions.ConvertGeminiResponseToOpenAINonStream(data, e.cfg.Gemini.Model, e.now())
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	return Response{StatusCode: http.StatusOK, Payload: out, Headers: headers}, nil
}

// ExecuteStream performs a streaming request to the Gemini API. The returned stream has
// always begun: rate limit notices, upstream errors and content all arrive as chunks.
func (e *GeminiExecutor) ExecuteStream(ctx context.Context, req Request) (*StreamResult, error) {
	if e.cfg.Gemini.APIKey == "" {
		return nil, statusErr{code: http.StatusBadRequest, msg: config.ErrMissingAPIKey.Error()}
	}
	body := chat_completions.ConvertOpenAIRequestToGemini(req.Payload)
	state := NewStreamState(chat_completions.NewStreamEmitter(e.cfg.Gemini.Model, e.now()))
	state.OnMalformed = func(payload string) {
		logWithRequestID(ctx).Debugf("gemini stream: skipping non-JSON event: %s", util.Truncate(payload, 200, "..."))
		e.metrics.RecordMalformedEvent(e.Identifier())
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		send := func(payload []byte) bool {
			select {
			case out <- StreamChunk{Payload: payload}:
				return true
			case <-ctx.Done():
				return false
			}
		}
		notify := func(text string) error {
			if !send(state.Chunk(text)) {
				return ctx.Err()
			}
			return nil
		}

		open := func(ctx context.Context) (*http.Response, error) {
			httpReq, err := e.newRequest(ctx, "streamGenerateContent", body)
			if err != nil {
				return nil, err
			}
			return doStreaming(ctx, e.stream, httpReq, e.cfg.UpstreamTimeout())
		}
		httpResp, err := e.retrier.Open(ctx, open, notify)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, ErrRateLimitExhausted):
				e.metrics.RecordUpstreamError(e.Identifier(), http.StatusTooManyRequests)
			default:
				logWithRequestID(ctx).Warnf("gemini stream request failed: %v", err)
				e.metrics.RecordUpstreamError(e.Identifier(), 0)
				send(state.Chunk(fmt.Sprintf("[proxy upstream error %d] %v", http.StatusBadGateway, err)))
			}
			return
		}
		defer closeBody(ctx, e.Identifier(), httpResp.Body)

		if httpResp.StatusCode >= 400 {
			errText := readErrorBody(httpResp.Body)
			logWithRequestID(ctx).Debugf("request error, error status: %d, error message: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), []byte(errText)))
			e.metrics.RecordUpstreamError(e.Identifier(), httpResp.StatusCode)
			send(state.Chunk(fmt.Sprintf("[proxy upstream error %d] %s", httpResp.StatusCode, errText)))
			return
		}

		e.pump(ctx, httpResp.Body, state, send)
	}()
	return &StreamResult{StatusCode: http.StatusOK, Chunks: out}, nil
}

// pump feeds upstream reads through state and forwards each delta as one chunk.
func (e *GeminiExecutor) pump(ctx context.Context, body io.Reader, state *StreamState, send func([]byte) bool) {
	buf := make([]byte, sseutil.DefaultChunkSize)
	for {
		n, errRead := body.Read(buf)
		if n > 0 {
			deltas, done := state.Feed(buf[:n])
			for _, delta := range deltas {
				if !send(state.Chunk(delta)) {
					return
				}
			}
			if done {
				return
			}
		}
		if errRead == nil {
			continue
		}
		if errors.Is(errRead, io.EOF) {
			deltas, _ := state.Finish()
			for _, delta := range deltas {
				if !send(state.Chunk(delta)) {
					return
				}
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		logWithRequestID(ctx).Warnf("gemini stream read error: %v", errRead)
		e.metrics.RecordUpstreamError(e.Identifier(), 0)
		send(state.Chunk(fmt.Sprintf("[proxy upstream error] stream interrupted: %v", errRead)))
		return
	}
}
