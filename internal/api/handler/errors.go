package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/kiranshivaraju/leaselens/internal/ai"
	"github.com/kiranshivaraju/leaselens/internal/api/response"
	"github.com/kiranshivaraju/leaselens/internal/cache"
	"github.com/kiranshivaraju/leaselens/internal/lease"
	"github.com/kiranshivaraju/leaselens/internal/logging"
)

// writeError maps session, provider and storage failures onto API errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lease.ErrNotLoaded):
		response.Error(w, http.StatusConflict, "LEASE_NOT_LOADED", lease.NotLoadedMessage, nil)
	case errors.Is(err, lease.ErrMissingPriceFields):
		response.Error(w, http.StatusUnprocessableEntity, "MISSING_PRICE_FIELDS",
			"Missing required information (city, state, or rent amount)", nil)
	case errors.Is(err, cache.ErrNotFound):
		response.Error(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found or expired", nil)
	case errors.Is(err, ai.ErrInferenceTimeout), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
			"The AI provider took too long and the request was cancelled", nil)
	case errors.Is(err, ai.ErrUnauthorized):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAUTHORIZED",
			"The AI provider rejected the configured credentials", nil)
	case errors.Is(err, ai.ErrProviderUnavailable):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
			"The AI provider is not available", nil)
	case errors.Is(err, ai.ErrInvalidResponse):
		response.Error(w, http.StatusBadGateway, "AI_INVALID_RESPONSE",
			"The AI provider returned an unusable response", nil)
	default:
		logging.FromContext(r.Context()).Error("request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
