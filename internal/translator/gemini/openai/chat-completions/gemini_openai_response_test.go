package chat_completions

import (
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestConvertGeminiResponseToOpenAINonStream_JoinsParts(t *testing.T) {
	raw := []byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"},{"text":" world"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2,"totalTokenCount":6}}`)
	now := time.Unix(1700000000, 0)

	out := ConvertGeminiResponseToOpenAINonStream(raw, "gemini-2.5-flash", now)
	if !gjson.ValidBytes(out) {
		t.Fatalf("invalid JSON: %s", out)
	}
	checks := map[string]string{
		"object":                    "chat.completion",
		"model":                     "gemini-2.5-flash",
		"choices.0.message.role":    "assistant",
		"choices.0.message.content": "Hello world",
		"choices.0.finish_reason":   "stop",
	}
	for path, want := range checks {
		if got := gjson.GetBytes(out, path).String(); got != want {
			t.Fatalf("%s = %q, want %q", path, got, want)
		}
	}
	if got := gjson.GetBytes(out, "created").Int(); got != 1700000000 {
		t.Fatalf("created = %d", got)
	}
	if id := gjson.GetBytes(out, "id").String(); !strings.HasPrefix(id, "chatcmpl-") {
		t.Fatalf("id = %q", id)
	}
	if got := gjson.GetBytes(out, "usage.total_tokens").Int(); got != 6 {
		t.Fatalf("usage.total_tokens = %d", got)
	}
	if got := gjson.GetBytes(out, "usage.prompt_tokens").Int(); got != 4 {
		t.Fatalf("usage.prompt_tokens = %d", got)
	}
}

func TestConvertGeminiResponseToOpenAINonStream_NoCandidates(t *testing.T) {
	out := ConvertGeminiResponseToOpenAINonStream([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`), "m", time.Now())
	if got := gjson.GetBytes(out, "choices.0.message.content"); got.String() != "" || !got.Exists() {
		t.Fatalf("content = %q exists=%v", got.String(), got.Exists())
	}
	if gjson.GetBytes(out, "usage").Exists() {
		t.Fatal("usage must be omitted when upstream reports none")
	}
}

func TestExtractText(t *testing.T) {
	cases := map[string]string{
		`{"candidates":[{"content":{"parts":[{"text":"a"},{"inlineData":{}},{"text":"b"}]}},{"content":{"parts":[{"text":"other"}]}}]}`: "ab",
		`{"candidates":[]}`: "",
		`{}`:                "",
		`{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"STOP"}]}`: "",
	}
	for raw, want := range cases {
		if got := ExtractText([]byte(raw)); got != want {
			t.Fatalf("ExtractText(%s) = %q, want %q", raw, got, want)
		}
	}
}

func TestStreamEmitter_Chunk(t *testing.T) {
	e := NewStreamEmitter("gemini-2.5-flash", time.Unix(42, 0))
	a := e.Chunk("Hi")
	b := e.Chunk(" \"there\"\n")

	if gjson.GetBytes(a, "id").String() != gjson.GetBytes(b, "id").String() {
		t.Fatal("chunk ids must be stable within a stream")
	}
	if got := gjson.GetBytes(b, "choices.0.delta.content").String(); got != " \"there\"\n" {
		t.Fatalf("delta content = %q", got)
	}
	if got := gjson.GetBytes(a, "object").String(); got != "chat.completion.chunk" {
		t.Fatalf("object = %q", got)
	}
	if got := gjson.GetBytes(a, "created").Int(); got != 42 {
		t.Fatalf("created = %d", got)
	}
	if fr := gjson.GetBytes(a, "choices.0.finish_reason"); fr.Type != gjson.Null {
		t.Fatalf("finish_reason = %s, want null", fr.Raw)
	}
	if other := NewStreamEmitter("m", time.Unix(42, 0)); other.ID == e.ID {
		t.Fatal("separate streams must get separate ids")
	}
}
