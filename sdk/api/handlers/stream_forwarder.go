package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiosk-llm/relay/internal/interfaces"
	"github.com/kiosk-llm/relay/internal/runtime/executor"
)

type StreamForwardOptions struct {
	// KeepAliveInterval overrides the configured streaming keep-alive interval.
	// If nil, the configured default is used. If set to <= 0, keep-alives are disabled.
	KeepAliveInterval *time.Duration

	// WriteChunk writes a single data chunk to the response body. It should not flush.
	WriteChunk func(chunk []byte)

	// WriteTerminalError writes an error payload to the response body when streaming fails
	// after headers have already been committed. It should not flush.
	WriteTerminalError func(errMsg *interfaces.ErrorMessage)

	// WriteDone optionally writes a terminal marker once the stream ends, after any
	// terminal error. It is skipped when the client has gone away. It should not flush.
	WriteDone func()

	// WriteKeepAlive optionally writes a keep-alive heartbeat. It should not flush.
	// When nil, a standard SSE comment heartbeat is used.
	WriteKeepAlive func()
}

// ForwardStream copies chunks to the client, flushing after each one, until the channel
// closes, a chunk reports an error or the client disconnects. It returns the client's
// context error on disconnect, the chunk error on upstream failure and nil otherwise.
func (h *BaseAPIHandler) ForwardStream(c *gin.Context, flusher http.Flusher, chunks <-chan executor.StreamChunk, opts StreamForwardOptions) error {
	writeChunk := opts.WriteChunk
	if writeChunk == nil {
		writeChunk = func([]byte) {}
	}

	writeKeepAlive := opts.WriteKeepAlive
	if writeKeepAlive == nil {
		writeKeepAlive = func() {
			_, _ = c.Writer.Write([]byte(": keep-alive\n\n"))
		}
	}

	keepAliveInterval := StreamingKeepAliveInterval(&h.Cfg.SDKConfig)
	if opts.KeepAliveInterval != nil {
		keepAliveInterval = *opts.KeepAliveInterval
	}
	var keepAliveC <-chan time.Time
	if keepAliveInterval > 0 {
		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		keepAliveC = keepAlive.C
	}

	clientCtx := c.Request.Context()
	finish := func() {
		if clientCtx.Err() != nil {
			return
		}
		if opts.WriteDone != nil {
			opts.WriteDone()
		}
		flusher.Flush()
	}

	for {
		select {
		case <-clientCtx.Done():
			return clientCtx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if clientCtx.Err() != nil {
					return clientCtx.Err()
				}
				finish()
				return nil
			}
			if chunk.Err != nil {
				if opts.WriteTerminalError != nil && clientCtx.Err() == nil {
					opts.WriteTerminalError(&interfaces.ErrorMessage{StatusCode: http.StatusBadGateway, Error: chunk.Err})
				}
				finish()
				return chunk.Err
			}
			writeChunk(chunk.Payload)
			flusher.Flush()
		case <-keepAliveC:
			writeKeepAlive()
			flusher.Flush()
		}
	}
}
