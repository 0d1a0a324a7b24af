package executor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kiosk-llm/relay/internal/config"
)

func newLocalTestExecutor(t *testing.T, handler http.HandlerFunc) *LocalExecutor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.LocalBaseURL = srv.URL
	cfg.Sanitize()
	return NewLocalExecutor(cfg, nil)
}

func TestLocalExecutor_ExecutePassthrough(t *testing.T) {
	const reqBody = `{"model":"x","messages":[{"role":"user","content":"hi"}],"top_k":"weird"}`
	e := newLocalTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != reqBody {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"loading model"}`)
	})

	resp, err := e.Execute(context.Background(), Request{Payload: []byte(reqBody)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable || string(resp.Payload) != `{"error":"loading model"}` {
		t.Fatalf("resp = %d %s", resp.StatusCode, resp.Payload)
	}
}

func TestLocalExecutor_ExecuteStreamRelaysBytes(t *testing.T) {
	const stream = "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\ndata: [DONE]\n\n"
	e := newLocalTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; i < len(stream); i += 5 {
			_, _ = io.WriteString(w, stream[i:min(i+5, len(stream))])
			flusher.Flush()
		}
	})

	res, err := e.ExecuteStream(context.Background(), Request{Payload: []byte(`{"stream":true}`)})
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	if !res.Raw || res.StatusCode != http.StatusOK {
		t.Fatalf("result = %+v", res)
	}
	var sb strings.Builder
	for chunk := range res.Chunks {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		sb.Write(chunk.Payload)
	}
	if sb.String() != stream {
		t.Fatalf("relayed = %q, want %q", sb.String(), stream)
	}
}

func TestLocalExecutor_ExecuteStreamReadErrorReported(t *testing.T) {
	e := newLocalTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: ")
	})

	res, err := e.ExecuteStream(context.Background(), Request{Payload: []byte(`{"stream":true}`)})
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	var relayed strings.Builder
	var errs int
	for chunk := range res.Chunks {
		if chunk.Err != nil {
			errs++
			continue
		}
		relayed.Write(chunk.Payload)
	}
	if relayed.String() != "data: " {
		t.Fatalf("relayed = %q", relayed.String())
	}
	if errs != 1 {
		t.Fatalf("error chunks = %d, want 1", errs)
	}
}

func TestLocalExecutor_ExecuteStreamConnectError(t *testing.T) {
	e := newLocalTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {})
	e.cfg.LocalBaseURL = "http://127.0.0.1:1"

	if _, err := e.ExecuteStream(context.Background(), Request{Payload: []byte(`{}`)}); err == nil {
		t.Fatal("expected connect error")
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	if _, ok := New(cfg, nil).(*LocalExecutor); !ok {
		t.Fatal("default backend should be local")
	}
	cfg.Backend = "google"
	if _, ok := New(cfg, nil).(*GeminiExecutor); !ok {
		t.Fatal("google should map to gemini")
	}
	cfg.Backend = "unknown"
	if New(cfg, nil) != nil {
		t.Fatal("unknown backend should yield nil")
	}
}
