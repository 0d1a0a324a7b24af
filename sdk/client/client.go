// Package client is a small Go client for the relay's chat completions endpoint.
// Streaming answers are read event by event and delivered as text deltas.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiosk-llm/relay/internal/interfaces"
	"github.com/kiosk-llm/relay/internal/sseutil"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the address the relay listens on by default.
const DefaultBaseURL = "http://127.0.0.1:18080"

// Message is one chat message.
type Message = interfaces.ChatMessage

// Request is a chat completion request.
type Request = interfaces.ChatRequest

// Completion is a non-streaming chat completion response.
type Completion = interfaces.ChatCompletion

// Chunk is one streamed chat.completion.chunk object.
type Chunk = interfaces.ChatCompletionChunk

// DeltaFunc receives each piece of streamed text as it arrives.
type DeltaFunc func(delta string)

// HTTPError reports a non-2xx answer from the relay.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTPError %d: %s", e.StatusCode, e.Body)
}

// Client posts chat completion requests to a relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the relay at baseURL. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatCompletion sends req and returns the assistant's text with surrounding whitespace
// trimmed. When req.Stream is set, onDelta (if non-nil) receives every delta in order.
func (c *Client) ChatCompletion(ctx context.Context, req Request, onDelta DeltaFunc) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if !req.Stream {
		var completion Completion
		if errDecode := json.NewDecoder(resp.Body).Decode(&completion); errDecode != nil {
			return "", fmt.Errorf("decode response: %w", errDecode)
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("response has no choices")
		}
		return strings.TrimSpace(completion.Choices[0].Message.Content), nil
	}
	return readStream(resp.Body, onDelta)
}

func readStream(body io.Reader, onDelta DeltaFunc) (string, error) {
	var full strings.Builder
	reader := sseutil.NewReader(body, 8192)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return strings.TrimSpace(full.String()), fmt.Errorf("read stream: %w", err)
		}
		if ev.Done {
			break
		}
		delta := StreamDelta([]byte(ev.Data))
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return strings.TrimSpace(full.String()), nil
}

// DecodeChunk parses one stream event payload.
func DecodeChunk(payload []byte) (*Chunk, error) {
	var chunk Chunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	return &chunk, nil
}

// StreamDelta extracts the text of one stream event: choices[0].delta.content, falling
// back to choices[0].message.content. Payloads that are not JSON yield "".
func StreamDelta(payload []byte) string {
	if !gjson.ValidBytes(payload) {
		return ""
	}
	choice := gjson.GetBytes(payload, "choices.0")
	if content := choice.Get("delta.content"); content.Type == gjson.String {
		return content.Str
	}
	if content := choice.Get("message.content"); content.Type == gjson.String {
		return content.Str
	}
	return ""
}
