package vllm

import (
	"strings"

	"github.com/kiranshivaraju/leaselens/internal/ai/openai"
	"github.com/kiranshivaraju/leaselens/internal/config"
)

// NewProvider returns a completer for a vLLM server's OpenAI-compatible endpoint.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	return openai.NewCompatible("vllm", strings.TrimSuffix(cfg.BaseURL, "/")+"/v1", cfg.APIKey, cfg.Model, nil)
}
