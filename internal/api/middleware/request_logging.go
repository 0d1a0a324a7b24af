// Package middleware provides HTTP middleware components for the relay server.
// This file contains the request logging middleware that records what each chat
// request asks for when request-log is enabled.
package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kiosk-llm/relay/internal/logging"
)

const maxCapturedRequestBodyBytes int64 = 1 << 20 // 1 MiB

// RequestLoggingMiddleware creates a Gin middleware that logs the input of chat requests:
// sampling parameters and a truncated preview of each message. backend names the serving
// backend in the log line. The body is restored for the handler.
func RequestLoggingMiddleware(enabled bool, backend string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || !shouldLogRequest(c.Request) {
			c.Next()
			return
		}

		body, err := captureRequestBody(c)
		if err == nil && len(body) > 0 {
			logging.LogChatInput(c.Request.Context(), backend, body)
		}
		c.Next()
	}
}

// shouldLogRequest accepts POSTs to the chat completions route whose body is JSON
// of a bounded size.
func shouldLogRequest(req *http.Request) bool {
	if req == nil || req.URL == nil || req.Body == nil {
		return false
	}
	if req.Method != http.MethodPost || req.URL.Path != "/v1/chat/completions" {
		return false
	}
	contentType := strings.ToLower(strings.TrimSpace(req.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return false
	}
	return req.ContentLength <= maxCapturedRequestBodyBytes
}

// captureRequestBody reads the request body and restores it so that it can be processed
// by subsequent handlers. Bodies of unknown length are capped.
func captureRequestBody(c *gin.Context) ([]byte, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCapturedRequestBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(bodyBytes)) > maxCapturedRequestBodyBytes {
		c.Request.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(bodyBytes), c.Request.Body), Closer: c.Request.Body}
		return nil, nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	return bodyBytes, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
