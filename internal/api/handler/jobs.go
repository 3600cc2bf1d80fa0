package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/internal/api/response"
	"github.com/kiranshivaraju/leaselens/internal/cache"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// JobGetter looks up async job records.
type JobGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(jobs JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := jobs.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found or expired", nil)
				return
			}
			writeError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}
