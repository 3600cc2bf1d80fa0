package ai

import (
	"fmt"

	"github.com/kiranshivaraju/leaselens/internal/ai/anthropic"
	"github.com/kiranshivaraju/leaselens/internal/ai/ollama"
	"github.com/kiranshivaraju/leaselens/internal/ai/openai"
	"github.com/kiranshivaraju/leaselens/internal/ai/vllm"
	"github.com/kiranshivaraju/leaselens/internal/config"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// NewProvider constructs the appropriate completer based on config.
// Called once at startup.
func NewProvider(cfg config.AIConfig) (models.Completer, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic", cfg.Provider)
	}
}
