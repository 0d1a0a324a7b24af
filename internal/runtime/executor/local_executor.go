package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kiosk-llm/relay/internal/config"
	"github.com/kiosk-llm/relay/internal/constant"
	"github.com/kiosk-llm/relay/internal/metrics"
	"github.com/kiosk-llm/relay/internal/sseutil"
	"github.com/kiosk-llm/relay/internal/util"
)

// LocalExecutor relays requests to an OpenAI-compatible local completion server
// (llama.cpp style). Status codes and bodies pass through untouched.
type LocalExecutor struct {
	cfg     *config.Config
	client  *http.Client
	stream  *http.Client
	metrics *metrics.Collector
}

// NewLocalExecutor creates a new local passthrough executor. collector may be nil.
func NewLocalExecutor(cfg *config.Config, collector *metrics.Collector) *LocalExecutor {
	return &LocalExecutor{
		cfg:     cfg,
		client:  util.NewHTTPClient(&cfg.SDKConfig, cfg.UpstreamTimeout()),
		stream:  util.NewHTTPClient(&cfg.SDKConfig, 0),
		metrics: collector,
	}
}

// Identifier returns the executor identifier.
func (e *LocalExecutor) Identifier() string { return constant.Local }

func (e *LocalExecutor) url() string {
	return e.cfg.LocalBaseURL + "/v1/chat/completions"
}

// Execute relays a non-streaming request and returns the upstream status and body as-is.
func (e *LocalExecutor) Execute(ctx context.Context, req Request) (Response, error) {
	httpReq, err := newJSONRequest(ctx, e.url(), req.Payload)
	if err != nil {
		return Response{}, err
	}
	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		e.metrics.RecordUpstreamError(e.Identifier(), 0)
		return Response{}, fmt.Errorf("local upstream request failed: %w", err)
	}
	defer closeBody(ctx, e.Identifier(), httpResp.Body)

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		e.metrics.RecordUpstreamError(e.Identifier(), 0)
		return Response{}, fmt.Errorf("local upstream read failed: %w", err)
	}
	if httpResp.StatusCode >= 400 {
		logWithRequestID(ctx).Debugf("request error, error status: %d, error message: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), data))
		e.metrics.RecordUpstreamError(e.Identifier(), httpResp.StatusCode)
	}
	return Response{StatusCode: httpResp.StatusCode, Payload: data, Headers: httpResp.Header.Clone()}, nil
}

// ExecuteStream relays a streaming request. Chunks are forwarded exactly as read from the
// upstream, one per read, and the upstream status is kept.
func (e *LocalExecutor) ExecuteStream(ctx context.Context, req Request) (*StreamResult, error) {
	httpReq, err := newJSONRequest(ctx, e.url(), req.Payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpResp, err := doStreaming(ctx, e.stream, httpReq, e.cfg.UpstreamTimeout())
	if err != nil {
		e.metrics.RecordUpstreamError(e.Identifier(), 0)
		return nil, fmt.Errorf("local upstream request failed: %w", err)
	}
	if httpResp.StatusCode >= 400 {
		e.metrics.RecordUpstreamError(e.Identifier(), httpResp.StatusCode)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer closeBody(ctx, e.Identifier(), httpResp.Body)

		buf := make([]byte, sseutil.DefaultChunkSize)
		for {
			n, errRead := httpResp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- StreamChunk{Payload: chunk}:
				case <-ctx.Done():
					return
				}
			}
			if errRead == nil {
				continue
			}
			if !errors.Is(errRead, io.EOF) && ctx.Err() == nil {
				logWithRequestID(ctx).Warnf("local stream read error: %v", errRead)
				e.metrics.RecordUpstreamError(e.Identifier(), 0)
				select {
				case out <- StreamChunk{Err: errRead}:
				case <-ctx.Done():
				}
			}
			return
		}
	}()
	return &StreamResult{StatusCode: httpResp.StatusCode, Headers: httpResp.Header.Clone(), Raw: true, Chunks: out}, nil
}
