package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/internal/api/response"
	"github.com/kiranshivaraju/leaselens/internal/apikey"
	"github.com/kiranshivaraju/leaselens/internal/logging"
	"github.com/kiranshivaraju/leaselens/internal/store"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

type createKeyResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key appears only in this response.
func NewCreateKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		for _, scope := range req.Scopes {
			if strings.TrimSpace(scope) == "" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "scopes must not be empty", nil)
				return
			}
		}

		raw, key, err := apikey.Generate(req.Name, req.Scopes)
		if err != nil {
			if errors.Is(err, apikey.ErrEmptyName) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
				return
			}
			writeError(w, r, err)
			return
		}

		if err := s.CreateAPIKey(r.Context(), key); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE_KEY", "API key already exists", nil)
				return
			}
			writeError(w, r, err)
			return
		}

		logging.FromContext(r.Context()).Info("api key created",
			"key_id", key.ID.String(), "key_prefix", key.KeyPrefix, "scopes", key.Scopes)
		response.Created(w, createKeyResponse{APIKey: key, Key: raw})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := s.ListAPIKeys(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.List(w, keys, len(keys))
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "keyID must be a valid UUID", nil)
			return
		}

		if err := s.RevokeAPIKey(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found", nil)
				return
			}
			writeError(w, r, err)
			return
		}

		logging.FromContext(r.Context()).Info("api key revoked", "key_id", id.String())
		response.NoContent(w)
	}
}
