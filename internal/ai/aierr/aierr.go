// Package aierr holds the error values shared by every model provider.
package aierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
	ErrUnauthorized        = errors.New("ai provider rejected credentials")
)

// FromStatus maps a non-2xx provider response onto a sentinel, keeping a
// short excerpt of the body for the log.
func FromStatus(provider string, status int, body []byte) error {
	excerpt := string(body)
	if len(excerpt) > 200 {
		excerpt = excerpt[:200] + "..."
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = ErrUnauthorized
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		kind = ErrInferenceTimeout
	case status == http.StatusTooManyRequests, status >= 500:
		kind = ErrProviderUnavailable
	default:
		kind = ErrInvalidResponse
	}
	return fmt.Errorf("%w: %s returned status %d: %s", kind, provider, status, excerpt)
}

// FromTransport maps a failed round trip onto a sentinel.
func FromTransport(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrInferenceTimeout, provider, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request cancelled: %w", provider, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, provider, err)
}
