package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/internal/ai"
	"github.com/kiranshivaraju/leaselens/internal/ai/mock"
	"github.com/kiranshivaraju/leaselens/internal/api/handler"
	"github.com/kiranshivaraju/leaselens/internal/cache"
	"github.com/kiranshivaraju/leaselens/internal/docload"
	"github.com/kiranshivaraju/leaselens/internal/lease"
	"github.com/kiranshivaraju/leaselens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaseText = "RESIDENTIAL LEASE AGREEMENT for 123 Main St, San Francisco, CA. Rent $3500 per month."

// --- in-memory session store ---

type memSessions struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]models.SessionSnapshot
	err   error
}

func newMemSessions() *memSessions {
	return &memSessions{snaps: map[uuid.UUID]models.SessionSnapshot{}}
}

func (m *memSessions) Save(_ context.Context, snap *models.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snaps[snap.ID] = *snap
	return nil
}

func (m *memSessions) Load(_ context.Context, id uuid.UUID) (*models.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return &snap, nil
}

func (m *memSessions) get(id uuid.UUID) models.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[id]
}

// --- fake runner ---

type fakeRunner struct {
	got *models.SessionSnapshot
	err error
}

func (f *fakeRunner) TriggerFullAnalysis(_ context.Context, snap *models.SessionSnapshot) (*models.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	if snap.State == models.SessionEmpty {
		return nil, lease.ErrNotLoaded
	}
	f.got = snap
	return &models.Job{
		ID:        uuid.New(),
		SessionID: snap.ID,
		Type:      models.JobTypeFullAnalysis,
		Status:    models.JobStatusPending,
	}, nil
}

// --- harness ---

type harness struct {
	store    *memSessions
	runner   *fakeRunner
	provider *mock.MockProvider
	router   http.Handler
}

func newHarness(t *testing.T, p *mock.MockProvider) *harness {
	t.Helper()
	h := &harness{store: newMemSessions(), runner: &fakeRunner{}, provider: p}
	opts := []lease.Option{lease.WithLoader(docload.New())}
	factory := handler.SessionFactory{
		New:     func() *lease.Session { return lease.NewSession(p, opts...) },
		Restore: func(s *models.SessionSnapshot) *lease.Session { return lease.Restore(s, p, opts...) },
	}
	fixed := func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	s := handler.NewSessions(h.store, factory, h.runner, handler.WithNow(fixed))

	r := chi.NewRouter()
	r.Post("/sessions", s.Create())
	r.Get("/sessions/{sessionID}", s.Get())
	r.Delete("/sessions/{sessionID}", s.Reset())
	r.Post("/sessions/{sessionID}/lease", s.LoadLease())
	r.Post("/sessions/{sessionID}/summary", s.Summary())
	r.Post("/sessions/{sessionID}/issues", s.Issues())
	r.Post("/sessions/{sessionID}/price", s.Price())
	r.Post("/sessions/{sessionID}/rewrites", s.Rewrites())
	r.Post("/sessions/{sessionID}/rights", s.Rights())
	r.Post("/sessions/{sessionID}/analysis", s.Analyze())
	r.Get("/sessions/{sessionID}/report", s.Report())
	h.router = r
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) create(t *testing.T) uuid.UUID {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := dataOf(t, rec)
	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	return id
}

func (h *harness) loaded(t *testing.T) uuid.UUID {
	t.Helper()
	id := h.create(t)
	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/lease", map[string]any{"text": leaseText})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

// --- create / get / reset ---

func TestCreateSession(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())

	id := h.create(t)

	snap := h.store.get(id)
	assert.Equal(t, models.SessionEmpty, snap.State)
	assert.Equal(t, 0, h.provider.Calls())
}

func TestGetSession_NotFound(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())

	rec := h.do(t, http.MethodGet, "/sessions/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errCode(t, rec))
}

func TestGetSession_InvalidID(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())

	rec := h.do(t, http.MethodGet, "/sessions/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession_DoesNotEchoText(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodGet, "/sessions/"+id.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.Equal(t, "loaded", data["state"])
	assert.Equal(t, float64(len([]rune(leaseText))), data["characters"])
	assert.NotContains(t, rec.Body.String(), "RESIDENTIAL LEASE AGREEMENT")
	md := data["metadata"].(map[string]any)
	assert.Equal(t, "San Francisco", md["city"])
}

func TestResetSession(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodDelete, "/sessions/"+id.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "empty", dataOf(t, rec)["state"])
	snap := h.store.get(id)
	assert.Equal(t, models.SessionEmpty, snap.State)
	assert.Nil(t, snap.Document)

	rec = h.do(t, http.MethodPost, "/sessions/"+id.String()+"/summary", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// --- load ---

func TestLoadLease_ExtractsMetadata(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/lease", map[string]any{"text": leaseText})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := dataOf(t, rec)
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, "Lease text loaded successfully", data["message"])
	assert.Equal(t, float64(3500), data["metadata"].(map[string]any)["monthly_rent"])
	assert.Equal(t, models.SessionLoaded, h.store.get(id).State)
	assert.Equal(t, 1, h.provider.Calls())
}

func TestLoadLease_ManualMetadataSkipsModel(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/lease", map[string]any{
		"text":     leaseText,
		"metadata": map[string]any{"city": "Austin", "state": "TX", "monthly_rent": 1800},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, h.provider.Calls())
	md := h.store.get(id).Metadata
	assert.Equal(t, "Austin", models.StringValue(md.City))
	assert.Equal(t, 1800.0, *md.MonthlyRent)
}

func TestLoadLease_EmptyMetadataObjectExtracts(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/lease", map[string]any{
		"text":     leaseText,
		"metadata": map[string]any{},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, h.provider.Calls())
	assert.Equal(t, "San Francisco", models.StringValue(h.store.get(id).Metadata.City))
}

func TestLoadLease_Validation(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/lease", map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id.String()+"/lease", strings.NewReader("{bad"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoadLease_ProviderFailureKeepsSession(t *testing.T) {
	h := newHarness(t, mock.NewFailingProvider(ai.ErrProviderUnavailable))
	id := h.create(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/lease", map[string]any{"text": leaseText})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "LEASE_LOAD_FAILED", errCode(t, rec))
	assert.Equal(t, models.SessionEmpty, h.store.get(id).State)
}

func multipartBody(t *testing.T, filename, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if metadata != "" {
		require.NoError(t, mw.WriteField("metadata", metadata))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestLoadLease_Upload(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	body, ct := multipartBody(t, "lease.txt", leaseText, `{"city": "Denver", "state": "CO", "monthly_rent": 2100}`)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id.String()+"/lease", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Lease loaded successfully", dataOf(t, rec)["message"])
	snap := h.store.get(id)
	assert.Equal(t, leaseText, snap.Document.Text)
	assert.Equal(t, "Denver", models.StringValue(snap.Metadata.City))
	assert.Equal(t, 0, h.provider.Calls())
}

func TestLoadLease_UploadUnsupportedType(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	body, ct := multipartBody(t, "lease.rtf", leaseText, "")
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id.String()+"/lease", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UNSUPPORTED_DOCUMENT", errCode(t, rec))
}

// --- operations ---

func TestOperations_NotLoaded(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	for _, op := range []string{"summary", "issues", "price", "rewrites", "rights"} {
		t.Run(op, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/"+op, nil)
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, "LEASE_NOT_LOADED", errCode(t, rec))
		})
	}
	assert.Equal(t, 0, h.provider.Calls())
}

func TestSummary(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/summary", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mock.SummaryResponse, dataOf(t, rec)["summary"])
	assert.Len(t, h.store.get(id).History, 2)
}

func TestIssues(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/issues", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.Len(t, data["problematic_clauses"], 3)
	assert.True(t, strings.HasPrefix(data["text"].(string), "Found 3 potential issues:"))
}

func TestPrice(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/price", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mock.PriceResponse, dataOf(t, rec)["rental_price_analysis"])
}

func TestPrice_MissingFields(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)
	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/lease", map[string]any{
		"text":     leaseText,
		"metadata": map[string]any{"city": "Austin"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/sessions/"+id.String()+"/price", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "MISSING_PRICE_FIELDS", errCode(t, rec))
}

func TestRewrites(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/rewrites", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.Len(t, data["rewrite_suggestions"], 2)
	assert.True(t, strings.HasPrefix(data["text"].(string), "Suggested rewrites for 2 clauses:"))
}

func TestRights(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/rights", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mock.RightsResponse, dataOf(t, rec)["tenant_rights"])
}

func TestOperations_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unavailable", ai.ErrProviderUnavailable, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE"},
		{"unauthorized", ai.ErrUnauthorized, http.StatusBadGateway, "AI_PROVIDER_UNAUTHORIZED"},
		{"timeout", ai.ErrInferenceTimeout, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mock.NewMockProvider()
			h := newHarness(t, p)
			id := h.loaded(t)
			p.CompleteFunc = func(context.Context, string, models.SamplingConfig) (string, error) {
				return "", tt.err
			}

			rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/summary", nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errCode(t, rec))
		})
	}
}

func TestOperations_SaveFailure(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)
	h.store.err = errors.New("redis down")

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/summary", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- analysis / report ---

func TestAnalyze_Accepted(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/analysis", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	data := dataOf(t, rec)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, id.String(), data["session_id"])
	require.NotNil(t, h.runner.got)
	assert.Equal(t, id, h.runner.got.ID)
}

func TestAnalyze_NotLoaded(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.create(t)

	rec := h.do(t, http.MethodPost, "/sessions/"+id.String()+"/analysis", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "LEASE_NOT_LOADED", errCode(t, rec))
}

func TestReport_NotAnalyzed(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider())
	id := h.loaded(t)

	rec := h.do(t, http.MethodGet, "/sessions/"+id.String()+"/report", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ANALYSIS_NOT_AVAILABLE", errCode(t, rec))
}

func TestReport_Analyzed(t *testing.T) {
	p := mock.NewMockProvider()
	h := newHarness(t, p)
	id := h.loaded(t)

	snap := h.store.get(id)
	sess := lease.Restore(&snap, p)
	_, err := sess.RunFullAnalysis(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.store.Save(context.Background(), sess.Snapshot()))

	rec := h.do(t, http.MethodGet, "/sessions/"+id.String()+"/report", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "lease_analysis_20250314_093000.txt")
	body := rec.Body.String()
	assert.Contains(t, body, "LEASE SUMMARY")
	assert.Contains(t, body, mock.RightsResponse)
	assert.Contains(t, body, "END OF REPORT")
}
