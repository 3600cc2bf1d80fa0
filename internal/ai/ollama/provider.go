package ollama

import (
	"strings"

	"github.com/kiranshivaraju/leaselens/internal/ai/openai"
	"github.com/kiranshivaraju/leaselens/internal/config"
)

// NewProvider returns a completer for a local Ollama server through its
// OpenAI-compatible endpoint.
func NewProvider(cfg config.OllamaConfig) *openai.Provider {
	return openai.NewCompatible("ollama", strings.TrimSuffix(cfg.BaseURL, "/")+"/v1", "ollama", cfg.Model, nil)
}
