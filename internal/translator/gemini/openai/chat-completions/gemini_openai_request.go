// Package chat_completions translates between OpenAI Chat Completions payloads and the
// Gemini generateContent protocol. Lookups on the loosely typed OpenAI request use gjson;
// Gemini and OpenAI output documents are built with sjson.
package chat_completions

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// DefaultMaxOutputTokens is used when the request carries no usable max_tokens.
	DefaultMaxOutputTokens = 512

	// MinMaxOutputTokens is the smallest budget forwarded upstream as-is.
	MinMaxOutputTokens = 64

	// RaisedMaxOutputTokens replaces budgets below MinMaxOutputTokens. A tiny cap truncates
	// answers mid-sentence, an oversized one costs nothing.
	RaisedMaxOutputTokens = 2048

	// MaxMaxOutputTokens caps the budget forwarded upstream.
	MaxMaxOutputTokens = 8192

	// placeholderUserText is substituted when the conversation has no non-system turn.
	placeholderUserText = "Hello"
)

// Gemini content roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// GenerationConfig is the Gemini generationConfig derived from an OpenAI request.
type GenerationConfig struct {
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MaxOutputTokens int
	StopSequences   []string
}

// Content is a single Gemini conversation turn carrying plain text.
type Content struct {
	Role string
	Text string
}

// NormalizedRequest is the Gemini-side view of one OpenAI chat request.
type NormalizedRequest struct {
	// SystemInstruction is nil when no system message carried text.
	SystemInstruction *string
	Contents          []Content
	GenerationConfig  GenerationConfig
}

// NormalizeRequest maps an OpenAI chat request (raw JSON) to its Gemini shape.
// It is pure: the same input always yields the same output.
func NormalizeRequest(rawJSON []byte) NormalizedRequest {
	root := gjson.ParseBytes(rawJSON)
	system, contents := normalizeMessages(root.Get("messages"))
	return NormalizedRequest{
		SystemInstruction: system,
		Contents:          contents,
		GenerationConfig:  buildGenerationConfig(root),
	}
}

// ConvertOpenAIRequestToGemini converts an OpenAI Chat Completions request into the JSON
// body of a Gemini generateContent / streamGenerateContent call.
func ConvertOpenAIRequestToGemini(rawJSON []byte) []byte {
	return NormalizeRequest(rawJSON).GeminiJSON()
}

// GeminiJSON renders the normalized request as a Gemini request body.
func (n NormalizedRequest) GeminiJSON() []byte {
	out := []byte(`{"contents":[]}`)

	for i, c := range n.Contents {
		node := []byte(`{"role":"","parts":[{"text":""}]}`)
		node, _ = sjson.SetBytes(node, "role", c.Role)
		node, _ = sjson.SetBytes(node, "parts.0.text", c.Text)
		out, _ = sjson.SetRawBytes(out, "contents."+strconv.Itoa(i), node)
	}

	if n.SystemInstruction != nil {
		out, _ = sjson.SetBytes(out, "system_instruction.parts.0.text", *n.SystemInstruction)
	}

	gc := n.GenerationConfig
	if gc.Temperature != nil {
		out, _ = sjson.SetBytes(out, "generationConfig.temperature", *gc.Temperature)
	}
	if gc.TopP != nil {
		out, _ = sjson.SetBytes(out, "generationConfig.topP", *gc.TopP)
	}
	if gc.TopK != nil {
		out, _ = sjson.SetBytes(out, "generationConfig.topK", *gc.TopK)
	}
	out, _ = sjson.SetBytes(out, "generationConfig.maxOutputTokens", gc.MaxOutputTokens)
	if len(gc.StopSequences) > 0 {
		out, _ = sjson.SetBytes(out, "generationConfig.stopSequences", gc.StopSequences)
	}
	return out
}

func normalizeMessages(messages gjson.Result) (*string, []Content) {
	var systemTexts []string
	var contents []Content

	if messages.IsArray() {
		for _, m := range messages.Array() {
			role := strings.TrimSpace(m.Get("role").String())
			text := messageText(m.Get("content"))

			if role == "system" {
				if strings.TrimSpace(text) != "" {
					systemTexts = append(systemTexts, text)
				}
				continue
			}

			geminiRole := RoleUser
			if role == "assistant" {
				geminiRole = RoleModel
			}
			contents = append(contents, Content{Role: geminiRole, Text: text})
		}
	}

	if len(contents) == 0 {
		contents = []Content{{Role: RoleUser, Text: placeholderUserText}}
	}

	if len(systemTexts) == 0 {
		return nil, contents
	}
	joined := strings.Join(systemTexts, "\n\n")
	return &joined, contents
}

// messageText flattens an OpenAI message content: a string, null, or an array of parts
// where only text parts contribute.
func messageText(content gjson.Result) string {
	switch {
	case !content.Exists() || content.Type == gjson.Null:
		return ""
	case content.Type == gjson.String:
		return content.String()
	case content.IsArray():
		var sb strings.Builder
		for _, item := range content.Array() {
			if item.Type == gjson.String {
				sb.WriteString(item.String())
				continue
			}
			if t := item.Get("type").String(); t != "" && t != "text" {
				continue
			}
			sb.WriteString(item.Get("text").String())
		}
		return sb.String()
	case content.IsObject():
		return content.Get("text").String()
	default:
		return content.Raw
	}
}

func buildGenerationConfig(root gjson.Result) GenerationConfig {
	var gc GenerationConfig

	if v, ok := floatValue(root.Get("temperature")); ok {
		gc.Temperature = &v
	}
	if v, ok := floatValue(root.Get("top_p")); ok {
		gc.TopP = &v
	}
	if v, ok := intValue(root.Get("top_k")); ok {
		gc.TopK = &v
	}

	gc.MaxOutputTokens = DefaultMaxOutputTokens
	if v, ok := intValue(root.Get("max_tokens")); ok {
		gc.MaxOutputTokens = ClampMaxOutputTokens(v)
	}

	gc.StopSequences = stopSequences(root.Get("stop"))
	return gc
}

// ClampMaxOutputTokens applies the upstream token budget rules to a requested max_tokens.
func ClampMaxOutputTokens(requested int) int {
	switch {
	case requested < MinMaxOutputTokens:
		return RaisedMaxOutputTokens
	case requested > MaxMaxOutputTokens:
		return MaxMaxOutputTokens
	default:
		return requested
	}
}

func stopSequences(stop gjson.Result) []string {
	switch {
	case stop.Type == gjson.String:
		return []string{stop.String()}
	case stop.IsArray():
		var out []string
		for _, item := range stop.Array() {
			if item.Type == gjson.String {
				out = append(out, item.String())
			}
		}
		return out
	default:
		return nil
	}
}

func floatValue(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// intValue reads a JSON number (truncated toward zero) or an integer string. Values outside
// the int32 range saturate to its bounds.
func intValue(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		if math.IsNaN(r.Num) {
			return 0, false
		}
		return saturateInt32(r.Num), true
	case gjson.String:
		v, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return saturateInt32(float64(v)), true
	default:
		return 0, false
	}
}

func saturateInt32(v float64) int {
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int(v)
	}
}
