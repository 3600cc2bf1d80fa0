package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/leaselens/internal/ai/aierr"
	"github.com/kiranshivaraju/leaselens/internal/config"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

const (
	apiVersion      = "2023-06-01"
	defaultBaseURL  = "https://api.anthropic.com"
	maxResponseSize = 4 << 20
)

// Provider implements models.Completer using the Anthropic Messages API.
type Provider struct {
	cfg        config.AnthropicConfig
	httpClient *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client (tests, proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

func NewProvider(cfg config.AnthropicConfig, opts ...Option) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	p := &Provider{cfg: cfg, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.cfg.Model }

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Complete sends prompt as a single user message and returns the concatenated text blocks.
func (p *Provider) Complete(ctx context.Context, prompt string, sampling models.SamplingConfig) (string, error) {
	temperature := sampling.Temperature
	body, err := json.Marshal(request{
		Model:       p.cfg.Model,
		MaxTokens:   sampling.MaxTokens,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode anthropic request: %w", err)
	}

	url := strings.TrimSuffix(p.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", aierr.FromTransport(p.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", aierr.FromTransport(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", aierr.FromStatus(p.Name(), resp.StatusCode, respBody)
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode anthropic response: %v", aierr.ErrInvalidResponse, err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

var _ models.Completer = (*Provider)(nil)
