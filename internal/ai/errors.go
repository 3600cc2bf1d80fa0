package ai

import "github.com/kiranshivaraju/leaselens/internal/ai/aierr"

var (
	ErrProviderUnavailable = aierr.ErrProviderUnavailable
	ErrInferenceTimeout    = aierr.ErrInferenceTimeout
	ErrInvalidResponse     = aierr.ErrInvalidResponse
	ErrUnauthorized        = aierr.ErrUnauthorized
)
