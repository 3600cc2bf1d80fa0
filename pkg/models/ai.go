// Package models contains shared data models used across the LeaseLens codebase.
package models

import "context"

// Completer is the interface every text-generation integration implements.
// Never call a specific provider directly, always inject this interface.
type Completer interface {
	// Complete sends one prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string, sampling SamplingConfig) (string, error)
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string
	// Model returns the model identifier sent to the provider.
	Model() string
}

// SamplingConfig holds per-request generation parameters.
type SamplingConfig struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultSampling keeps output near-deterministic while leaving room for long answers.
func DefaultSampling() SamplingConfig {
	return SamplingConfig{Temperature: 0.2, MaxTokens: 4096}
}
