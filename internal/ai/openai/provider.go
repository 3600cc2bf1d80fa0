package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/leaselens/internal/ai/aierr"
	"github.com/kiranshivaraju/leaselens/internal/config"
	"github.com/kiranshivaraju/leaselens/pkg/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// Provider implements models.Completer against the Chat Completions API.
// It also serves OpenAI-compatible servers such as Ollama and vLLM.
type Provider struct {
	name   string
	model  string
	client *goopenai.Client
}

// NewProvider builds a provider for api.openai.com, or cfg.BaseURL when set.
func NewProvider(cfg config.OpenAIConfig) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model, nil)
}

// NewCompatible builds a provider for any server speaking the Chat Completions
// protocol. baseURL must include the API version path (e.g. http://host:8000/v1).
// An empty baseURL targets OpenAI; a nil httpClient uses the library default.
func NewCompatible(name, baseURL, apiKey, model string, httpClient *http.Client) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &Provider{
		name:   name,
		model:  model,
		client: goopenai.NewClientWithConfig(cfg),
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

// Complete sends prompt as a single user message and returns the first choice.
func (p *Provider) Complete(ctx context.Context, prompt string, sampling models.SamplingConfig) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(sampling.Temperature),
		MaxTokens:   sampling.MaxTokens,
	})
	if err != nil {
		return "", p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", aierr.ErrInvalidResponse, p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return aierr.FromStatus(p.name, apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return aierr.FromStatus(p.name, reqErr.HTTPStatusCode, []byte(reqErr.Error()))
	}
	return aierr.FromTransport(p.name, err)
}

var _ models.Completer = (*Provider)(nil)
