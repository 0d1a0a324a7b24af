package handlers

import (
	"net/http"
	"testing"
)

func TestFilterUpstreamHeaders_RemovesConnectionScopedHeaders(t *testing.T) {
	src := http.Header{}
	src.Add("Connection", "keep-alive, x-hop-a, x-hop-b")
	src.Add("Connection", "x-hop-c")
	src.Set("Keep-Alive", "timeout=5")
	src.Set("X-Hop-A", "a")
	src.Set("X-Hop-B", "b")
	src.Set("X-Hop-C", "c")
	src.Set("X-Request-Id", "req-1")
	src.Set("Set-Cookie", "session=secret")
	src.Set("Content-Length", "42")

	filtered := FilterUpstreamHeaders(src)
	if filtered == nil {
		t.Fatalf("expected filtered headers, got nil")
	}
	if got := filtered.Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("expected X-Request-Id to be preserved, got %q", got)
	}
	for _, key := range []string{"Connection", "Keep-Alive", "X-Hop-A", "X-Hop-B", "X-Hop-C", "Set-Cookie", "Content-Length"} {
		if value := filtered.Get(key); value != "" {
			t.Fatalf("expected %s to be removed, got %q", key, value)
		}
	}
}

func TestFilterUpstreamHeaders_ReturnsNilWhenAllHeadersBlocked(t *testing.T) {
	src := http.Header{}
	src.Add("Connection", "x-hop-a")
	src.Set("X-Hop-A", "a")
	src.Set("Set-Cookie", "session=secret")

	if filtered := FilterUpstreamHeaders(src); filtered != nil {
		t.Fatalf("expected nil when all headers are filtered, got %#v", filtered)
	}
}

func TestWriteUpstreamHeaders_KeepsHandlerHeaders(t *testing.T) {
	dst := http.Header{}
	dst.Set("Content-Type", "text/event-stream")

	src := http.Header{}
	src.Set("Content-Type", "application/json")
	src.Set("X-Slot-Id", "3")
	src.Set("Transfer-Encoding", "chunked")

	WriteUpstreamHeaders(dst, src)

	if got := dst.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want handler value", got)
	}
	if got := dst.Get("X-Slot-Id"); got != "3" {
		t.Fatalf("X-Slot-Id = %q, want 3", got)
	}
	if got := dst.Get("Transfer-Encoding"); got != "" {
		t.Fatalf("Transfer-Encoding must not be copied, got %q", got)
	}
}
