// Package constant defines backend identifiers and the names they may be configured under.
package constant

import "strings"

const (
	// Local is the OpenAI-compatible local completion server (llama.cpp and friends).
	Local = "local"

	// Gemini is the Google AI Studio Gemini API.
	Gemini = "gemini"
)

// backendAliases maps every accepted backend spelling to its canonical identifier.
var backendAliases = map[string]string{
	"local":     Local,
	"llama":     Local,
	"llamacpp":  Local,
	"gemini":    Gemini,
	"google":    Gemini,
	"ai_studio": Gemini,
	"aistudio":  Gemini,
}

// CanonicalBackend resolves a configured backend name to Local or Gemini.
// Matching ignores case and surrounding whitespace; ok is false for unknown names.
func CanonicalBackend(name string) (backend string, ok bool) {
	backend, ok = backendAliases[strings.ToLower(strings.TrimSpace(name))]
	return backend, ok
}
