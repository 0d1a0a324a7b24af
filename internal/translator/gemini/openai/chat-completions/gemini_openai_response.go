package chat_completions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FinishReasonStop is the Gemini finish reason for a normally completed generation.
const FinishReasonStop = "STOP"

// NewCompletionID returns an OpenAI-style completion identifier.
func NewCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

// ExtractText concatenates every text part of the first candidate in a Gemini response.
// It returns an empty string when no candidate is present.
func ExtractText(rawJSON []byte) string {
	parts := gjson.GetBytes(rawJSON, "candidates.0.content.parts")
	if !parts.IsArray() {
		return ""
	}
	var sb strings.Builder
	parts.ForEach(func(_, part gjson.Result) bool {
		if text := part.Get("text"); text.Type == gjson.String {
			sb.WriteString(text.Str)
		}
		return true
	})
	return sb.String()
}

// FinishReason returns the first candidate's finishReason, or "" when absent.
func FinishReason(rawJSON []byte) string {
	return gjson.GetBytes(rawJSON, "candidates.0.finishReason").String()
}

// StreamEmitter renders OpenAI chat.completion.chunk objects for a single stream.
// ID, Created and Model are fixed when the stream starts.
type StreamEmitter struct {
	ID      string
	Created int64
	Model   string
}

// NewStreamEmitter creates an emitter with a fresh completion id and the given start time.
func NewStreamEmitter(model string, now time.Time) StreamEmitter {
	return StreamEmitter{ID: NewCompletionID(), Created: now.Unix(), Model: model}
}

// Chunk returns one chunk JSON object whose delta carries content.
func (e StreamEmitter) Chunk(content string) []byte {
	out := []byte(`{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{"content":""},"finish_reason":null}]}`)
	out, _ = sjson.SetBytes(out, "id", e.ID)
	out, _ = sjson.SetBytes(out, "created", e.Created)
	out, _ = sjson.SetBytes(out, "model", e.Model)
	out, _ = sjson.SetBytes(out, "choices.0.delta.content", content)
	return out
}

// ConvertGeminiResponseToOpenAINonStream wraps a complete Gemini generateContent response
// into an OpenAI chat.completion object with finish_reason "stop".
func ConvertGeminiResponseToOpenAINonStream(rawJSON []byte, model string, now time.Time) []byte {
	out := []byte(`{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`)
	out, _ = sjson.SetBytes(out, "id", NewCompletionID())
	out, _ = sjson.SetBytes(out, "created", now.Unix())
	out, _ = sjson.SetBytes(out, "model", model)
	out, _ = sjson.SetBytes(out, "choices.0.message.content", ExtractText(rawJSON))

	if usage := gjson.GetBytes(rawJSON, "usageMetadata"); usage.Exists() {
		promptTokens := usage.Get("promptTokenCount").Int()
		thoughtsTokens := usage.Get("thoughtsTokenCount").Int()
		out, _ = sjson.SetBytes(out, "usage.prompt_tokens", promptTokens)
		out, _ = sjson.SetBytes(out, "usage.completion_tokens", usage.Get("candidatesTokenCount").Int()+thoughtsTokens)
		out, _ = sjson.SetBytes(out, "usage.total_tokens", usage.Get("totalTokenCount").Int())
		if thoughtsTokens > 0 {
			out, _ = sjson.SetBytes(out, "usage.completion_tokens_details.reasoning_tokens", thoughtsTokens)
		}
	}
	return out
}
