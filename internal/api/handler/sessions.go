package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/internal/api/response"
	"github.com/kiranshivaraju/leaselens/internal/docload"
	"github.com/kiranshivaraju/leaselens/internal/lease"
	"github.com/kiranshivaraju/leaselens/internal/logging"
	"github.com/kiranshivaraju/leaselens/internal/report"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

const defaultMaxUpload = 16 << 20

// SessionStore persists session snapshots between requests.
type SessionStore interface {
	Save(ctx context.Context, snap *models.SessionSnapshot) error
	Load(ctx context.Context, id uuid.UUID) (*models.SessionSnapshot, error)
}

// AnalysisRunner starts full analyses in the background.
type AnalysisRunner interface {
	TriggerFullAnalysis(ctx context.Context, snap *models.SessionSnapshot) (*models.Job, error)
}

// SessionFactory builds live sessions wired to the shared model client.
type SessionFactory struct {
	New     func() *lease.Session
	Restore func(snap *models.SessionSnapshot) *lease.Session
}

// Sessions serves the lease session endpoints. Every request restores the
// session from its snapshot, runs one operation, and saves it back.
type Sessions struct {
	store     SessionStore
	factory   SessionFactory
	runner    AnalysisRunner
	maxUpload int64
	now       func() time.Time
}

type SessionsOption func(*Sessions)

// WithMaxUpload caps multipart lease uploads.
func WithMaxUpload(n int64) SessionsOption {
	return func(s *Sessions) { s.maxUpload = n }
}

func WithNow(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

func NewSessions(store SessionStore, factory SessionFactory, runner AnalysisRunner, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		store:     store,
		factory:   factory,
		runner:    runner,
		maxUpload: defaultMaxUpload,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sessionView is the API representation of a session. The lease text itself
// is not echoed back.
type sessionView struct {
	ID         uuid.UUID              `json:"id"`
	State      models.SessionState    `json:"state"`
	Source     string                 `json:"source,omitempty"`
	Characters int                    `json:"characters,omitempty"`
	LoadedAt   *time.Time             `json:"loaded_at,omitempty"`
	Metadata   *models.LeaseMetadata  `json:"metadata,omitempty"`
	Result     *models.AnalysisResult `json:"result,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func viewOf(snap *models.SessionSnapshot) sessionView {
	v := sessionView{
		ID:        snap.ID,
		State:     snap.State,
		Metadata:  snap.Metadata,
		Result:    snap.Result,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
	if doc := snap.Document; doc != nil {
		if doc.Source != "" {
			v.Source = filepath.Base(doc.Source)
		}
		v.Characters = len([]rune(doc.Text))
		loadedAt := doc.LoadedAt
		v.LoadedAt = &loadedAt
	}
	return v
}

// Create handles POST /api/v1/sessions.
func (h *Sessions) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := h.factory.New()
		snap := sess.Snapshot()
		if err := h.store.Save(r.Context(), snap); err != nil {
			writeError(w, r, fmt.Errorf("saving session: %w", err))
			return
		}
		logging.FromContext(r.Context()).Info("session created", "session_id", snap.ID.String())
		response.Created(w, viewOf(snap))
	}
}

// Get handles GET /api/v1/sessions/{sessionID}.
func (h *Sessions) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := h.snapshot(w, r)
		if !ok {
			return
		}
		response.JSON(w, viewOf(snap))
	}
}

// Reset handles DELETE /api/v1/sessions/{sessionID}. The session survives in
// the Empty state so the client can load another lease.
func (h *Sessions) Reset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		sess.Reset()
		if !h.save(w, r, sess) {
			return
		}
		response.JSON(w, viewOf(sess.Snapshot()))
	}
}

type loadRequest struct {
	Text     string                `json:"text"`
	Metadata *models.LeaseMetadata `json:"metadata"`
}

// LoadLease handles POST /api/v1/sessions/{sessionID}/lease. It accepts either
// a JSON body {"text", "metadata"} or a multipart upload with a "file" part and
// an optional "metadata" JSON field.
func (h *Sessions) LoadLease() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}

		var result models.LoadResult
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			result, ok = h.loadUpload(w, r, sess)
			if !ok {
				return
			}
		} else {
			var req loadRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
			if strings.TrimSpace(req.Text) == "" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "text is required", nil)
				return
			}
			result = sess.Load(r.Context(), req.Text, req.Metadata)
		}

		if result.Status != models.LoadStatusSuccess {
			response.Error(w, http.StatusUnprocessableEntity, "LEASE_LOAD_FAILED", result.Message, result)
			return
		}
		if !h.save(w, r, sess) {
			return
		}
		response.JSON(w, result)
	}
}

func (h *Sessions) loadUpload(w http.ResponseWriter, r *http.Request, sess *lease.Session) (models.LoadResult, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart upload", nil)
		return models.LoadResult{}, false
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var known *models.LeaseMetadata
	if raw := r.FormValue("metadata"); raw != "" {
		known = &models.LeaseMetadata{}
		if err := json.Unmarshal([]byte(raw), known); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "metadata must be a JSON object", nil)
			return models.LoadResult{}, false
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return models.LoadResult{}, false
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(docload.SupportedExtensions(), ext) {
		response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_DOCUMENT",
			fmt.Sprintf("supported file types: %s", strings.Join(docload.SupportedExtensions(), ", ")), nil)
		return models.LoadResult{}, false
	}

	tmp, err := os.CreateTemp("", "lease-*"+ext)
	if err != nil {
		writeError(w, r, fmt.Errorf("creating upload file: %w", err))
		return models.LoadResult{}, false
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("writing upload file: %w", err))
		return models.LoadResult{}, false
	}

	return sess.LoadFile(r.Context(), tmp.Name(), known), true
}

// Summary handles POST /api/v1/sessions/{sessionID}/summary.
func (h *Sessions) Summary() http.HandlerFunc {
	return h.operation(func(ctx context.Context, sess *lease.Session) (any, error) {
		summary, err := sess.Summarize(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"summary": summary}, nil
	})
}

// Issues handles POST /api/v1/sessions/{sessionID}/issues.
func (h *Sessions) Issues() http.HandlerFunc {
	return h.operation(func(ctx context.Context, sess *lease.Session) (any, error) {
		clauses, err := sess.FindIssues(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"problematic_clauses": clauses,
			"text":                report.FormatIssues(clauses),
		}, nil
	})
}

// Price handles POST /api/v1/sessions/{sessionID}/price.
func (h *Sessions) Price() http.HandlerFunc {
	return h.operation(func(ctx context.Context, sess *lease.Session) (any, error) {
		analysis, err := sess.PriceContext(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"rental_price_analysis": analysis}, nil
	})
}

// Rewrites handles POST /api/v1/sessions/{sessionID}/rewrites.
func (h *Sessions) Rewrites() http.HandlerFunc {
	return h.operation(func(ctx context.Context, sess *lease.Session) (any, error) {
		rewrites, err := sess.RewriteSuggestions(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"rewrite_suggestions": rewrites,
			"text":                report.FormatRewrites(rewrites),
		}, nil
	})
}

// Rights handles POST /api/v1/sessions/{sessionID}/rights.
func (h *Sessions) Rights() http.HandlerFunc {
	return h.operation(func(ctx context.Context, sess *lease.Session) (any, error) {
		advice, err := sess.RightsAdvice(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"tenant_rights": advice}, nil
	})
}

// Analyze handles POST /api/v1/sessions/{sessionID}/analysis. It returns 202
// with a job to poll at GET /api/v1/jobs/{jobID}.
func (h *Sessions) Analyze() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := h.snapshot(w, r)
		if !ok {
			return
		}
		job, err := h.runner.TriggerFullAnalysis(r.Context(), snap)
		if err != nil {
			writeError(w, r, err)
			return
		}
		logging.FromContext(r.Context()).Info("analysis job created",
			"session_id", snap.ID.String(), "job_id", job.ID.String())
		response.Accepted(w, job)
	}
}

// Report handles GET /api/v1/sessions/{sessionID}/report as a plain-text download.
func (h *Sessions) Report() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := h.snapshot(w, r)
		if !ok {
			return
		}
		if snap.State != models.SessionAnalyzed || snap.Result == nil {
			response.Error(w, http.StatusConflict, "ANALYSIS_NOT_AVAILABLE",
				"No completed analysis for this session. Run a full analysis first.", nil)
			return
		}
		response.Text(w, report.Format(snap.Result), report.FileName(h.now()))
	}
}

func (h *Sessions) operation(fn func(ctx context.Context, sess *lease.Session) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		data, err := fn(r.Context(), sess)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !h.save(w, r, sess) {
			return
		}
		response.JSON(w, data)
	}
}

func (h *Sessions) snapshot(w http.ResponseWriter, r *http.Request) (*models.SessionSnapshot, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "sessionID must be a valid UUID", nil)
		return nil, false
	}
	snap, err := h.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return snap, true
}

func (h *Sessions) session(w http.ResponseWriter, r *http.Request) (*lease.Session, bool) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return nil, false
	}
	return h.factory.Restore(snap), true
}

func (h *Sessions) save(w http.ResponseWriter, r *http.Request, sess *lease.Session) bool {
	if err := h.store.Save(r.Context(), sess.Snapshot()); err != nil {
		writeError(w, r, fmt.Errorf("saving session: %w", err))
		return false
	}
	return true
}
