package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/kiranshivaraju/leaselens/internal/ai"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// MockProvider satisfies models.Completer for testing. Every prompt it
// receives is recorded in order.
type MockProvider struct {
	Name_        string
	Model_       string
	CompleteFunc func(ctx context.Context, prompt string, sampling models.SamplingConfig) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Model() string {
	if m.Model_ == "" {
		return "mock-v1"
	}
	return m.Model_
}

func (m *MockProvider) Complete(ctx context.Context, prompt string, sampling models.SamplingConfig) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, sampling)
	}
	return "", nil
}

// Prompts returns a copy of every prompt received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns how many prompts were received.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Canned responses used by NewMockProvider.
const (
	MetadataResponse = `Here is the extracted information:
{"property_address": "123 Main St, Apt 4", "city": "San Francisco", "state": "CA", "zip_code": "94110",
 "monthly_rent": 3500, "security_deposit": 7000, "lease_start_date": "2024-01-01", "lease_end_date": "2024-12-31",
 "landlord_name": "Bay Properties LLC", "number_of_bedrooms": 2, "number_of_bathrooms": 1}`

	IssuesResponse = `[
 {"clause": "Tenant waives all rights to a jury trial.", "issue": "Waiver of legal rights", "severity": "High", "potentially_illegal": true, "recommendation": "Ask to strike this clause."},
 {"clause": "Late fee of $200 after one day.", "issue": "Excessive late fee", "severity": "Medium", "potentially_illegal": false, "recommendation": "Negotiate a grace period."},
 {"clause": "No nails in walls.", "issue": "Minor restriction", "severity": "Low", "potentially_illegal": false, "recommendation": "Use adhesive hooks."}
]`

	SummaryResponse = "Mock summary: a 12-month residential lease in San Francisco."
	PriceResponse   = "Mock price analysis: rent is within the typical range."
	RewriteResponse = "Mock rewrite: replace with balanced language."
	RightsResponse  = "Mock tenant rights: California tenants are protected by habitability rules."
)

// NewMockProvider returns a MockProvider that answers each fixed prompt with
// a sensible canned response, recognised by the prompt's wording.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, prompt string, _ models.SamplingConfig) (string, error) {
			switch {
			case strings.Contains(prompt, "Extract the following information"):
				return MetadataResponse, nil
			case strings.Contains(prompt, "Return ONLY valid JSON array"):
				return IssuesResponse, nil
			case strings.Contains(prompt, "real estate market analyst"):
				return PriceResponse, nil
			case strings.Contains(prompt, "negotiate fair lease terms"):
				return RewriteResponse, nil
			case strings.Contains(prompt, "tenant rights expert"):
				return RightsResponse, nil
			default:
				return SummaryResponse, nil
			}
		},
	}
}

// NewScriptedProvider returns a MockProvider that answers with responses in
// order, repeating the last one when exhausted.
func NewScriptedProvider(responses ...string) *MockProvider {
	m := &MockProvider{Name_: "mock-scripted"}
	var mu sync.Mutex
	next := 0
	m.CompleteFunc = func(_ context.Context, _ string, _ models.SamplingConfig) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return "", nil
		}
		r := responses[min(next, len(responses)-1)]
		next++
		return r, nil
	}
	return m
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ string, _ models.SamplingConfig) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ string, _ models.SamplingConfig) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements Completer.
var _ models.Completer = (*MockProvider)(nil)
