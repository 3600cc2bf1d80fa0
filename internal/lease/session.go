// Package lease holds the analysis session: one loaded lease, its metadata,
// and the model-backed operations that run against it.
package lease

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/internal/ai"
	"github.com/kiranshivaraju/leaselens/internal/extract"
	"github.com/kiranshivaraju/leaselens/internal/prompt"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// maxRewrites caps how many flagged clauses get rewrite suggestions.
const maxRewrites = 5

// TextExtractor turns a document on disk into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Session is a single lease analysis. It moves Empty -> Loaded -> Analyzed;
// loading a new lease returns it to Loaded, Reset returns it to Empty.
// A Session is safe for concurrent use but model calls are not serialised:
// when two operations race, the last one to finish wins.
type Session struct {
	id        uuid.UUID
	completer models.Completer
	prompts   *prompt.Registry
	extractor *extract.Extractor
	sampling  models.SamplingConfig
	loader    TextExtractor
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	state     models.SessionState
	doc       *models.LeaseDocument
	metadata  *models.LeaseMetadata
	result    *models.AnalysisResult
	history   []models.Exchange
	createdAt time.Time
	updatedAt time.Time
}

// Option configures a Session.
type Option func(*Session)

func WithPrompts(r *prompt.Registry) Option {
	return func(s *Session) { s.prompts = r }
}

func WithExtractor(e *extract.Extractor) Option {
	return func(s *Session) { s.extractor = e }
}

func WithSampling(c models.SamplingConfig) Option {
	return func(s *Session) { s.sampling = c }
}

// WithLoader sets the extractor used by LoadFile.
func WithLoader(l TextExtractor) Option {
	return func(s *Session) { s.loader = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithID(id uuid.UUID) Option {
	return func(s *Session) { s.id = id }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates an empty session that sends prompts to c.
func NewSession(c models.Completer, opts ...Option) *Session {
	s := &Session{
		id:        uuid.New(),
		completer: c,
		sampling:  models.DefaultSampling(),
		logger:    slog.Default(),
		now:       time.Now,
		state:     models.SessionEmpty,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prompts == nil {
		s.prompts = prompt.MustNew()
	}
	if s.extractor == nil {
		s.extractor = extract.New(extract.WithLogger(s.logger))
	}
	s.logger = s.logger.With("session_id", s.id.String())
	s.createdAt = s.now().UTC()
	s.updatedAt = s.createdAt
	return s
}

// Restore rebuilds a session from a snapshot taken by Snapshot.
func Restore(snap *models.SessionSnapshot, c models.Completer, opts ...Option) *Session {
	s := NewSession(c, append(opts, WithID(snap.ID))...)
	s.state = snap.State
	if s.state == "" {
		s.state = models.SessionEmpty
	}
	s.doc = snap.Document
	s.metadata = snap.Metadata
	s.result = snap.Result
	s.history = append([]models.Exchange(nil), snap.History...)
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	s.updatedAt = snap.UpdatedAt
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Document returns the loaded lease, or nil when the session is empty.
func (s *Session) Document() *models.LeaseDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Metadata returns a copy of the current lease metadata, or nil.
func (s *Session) Metadata() *models.LeaseMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metadata == nil {
		return nil
	}
	m := *s.metadata
	return &m
}

// Result returns the most recent full analysis, or nil.
func (s *Session) Result() *models.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// History returns every prompt/response exchange made since the last load.
func (s *Session) History() []models.Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Exchange(nil), s.history...)
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() *models.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &models.SessionSnapshot{
		ID:        s.id,
		State:     s.state,
		Document:  s.doc,
		Metadata:  s.metadata,
		Result:    s.result,
		History:   append([]models.Exchange(nil), s.history...),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

// Load replaces the session's lease with text. When known has at least one
// field set it is used as the metadata verbatim and no model call is made;
// otherwise the metadata is extracted from the text. Load never returns an error: failures
// are reported in the result and leave the session as it was.
func (s *Session) Load(ctx context.Context, text string, known *models.LeaseMetadata) models.LoadResult {
	return s.load(ctx, text, "", known, "Lease text loaded successfully")
}

// LoadFile extracts text from the document at path and loads it.
func (s *Session) LoadFile(ctx context.Context, path string, known *models.LeaseMetadata) models.LoadResult {
	if s.loader == nil {
		return loadError(ErrNoTextExtractor)
	}
	text, err := s.loader.ExtractText(ctx, path)
	if err != nil {
		s.logger.Warn("lease file could not be read", "path", path, "error", err)
		return loadError(err)
	}
	return s.load(ctx, text, path, known, "Lease loaded successfully")
}

func (s *Session) load(ctx context.Context, text, source string, known *models.LeaseMetadata, okMessage string) models.LoadResult {
	if strings.TrimSpace(text) == "" {
		return loadError(ErrEmptyLease)
	}

	var (
		metadata *models.LeaseMetadata
		manual   *models.LeaseMetadata
		exchange *models.Exchange
	)
	if !known.Empty() {
		m, k := *known, *known
		metadata, manual = &m, &k
	} else {
		obj, ex, err := call[map[string]any](ctx, s, prompt.OpExtractMetadata, map[string]any{"lease_text": text})
		if err != nil {
			s.logger.Error("metadata extraction failed", "error", err)
			return loadError(err)
		}
		exchange = ex
		metadata = MetadataFromObject(obj)
	}

	now := s.now().UTC()
	s.mu.Lock()
	s.doc = &models.LeaseDocument{Text: text, Source: source, Known: manual, LoadedAt: now}
	s.metadata = metadata
	s.result = nil
	s.history = nil
	if exchange != nil {
		s.history = append(s.history, *exchange)
	}
	s.state = models.SessionLoaded
	s.updatedAt = now
	s.mu.Unlock()

	s.logger.Info("lease loaded",
		"characters", len([]rune(text)),
		"source", source,
		"manual_metadata", manual != nil,
		"metadata_failed", metadata.Failed(),
	)
	m := *metadata
	return models.LoadResult{Status: models.LoadStatusSuccess, Message: okMessage, Metadata: &m}
}

// Reset discards the lease and everything derived from it.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = models.SessionEmpty
	s.doc = nil
	s.metadata = nil
	s.result = nil
	s.history = nil
	s.updatedAt = s.now().UTC()
}

// Summarize returns a plain-English summary of the lease.
func (s *Session) Summarize(ctx context.Context) (string, error) {
	doc, _, err := s.loaded()
	if err != nil {
		return "", err
	}
	return s.summarize(ctx, doc)
}

// FindIssues returns the clauses the model flags as unfair, unusual or
// potentially illegal, in the order the model listed them.
func (s *Session) FindIssues(ctx context.Context) ([]models.ProblematicClause, error) {
	doc, _, err := s.loaded()
	if err != nil {
		return nil, err
	}
	return s.findIssues(ctx, doc)
}

// PriceContext compares the rent against the local market. It needs a city,
// a state and a non-zero rent in the metadata.
func (s *Session) PriceContext(ctx context.Context) (string, error) {
	_, md, err := s.loaded()
	if err != nil {
		return "", err
	}
	if models.StringValue(md.City) == "" || models.StringValue(md.State) == "" ||
		md.MonthlyRent == nil || *md.MonthlyRent == 0 {
		return "", ErrMissingPriceFields
	}
	return s.priceContext(ctx, md)
}

// RewriteSuggestions re-runs issue detection and drafts tenant-favorable
// language for up to five High or Medium severity clauses.
func (s *Session) RewriteSuggestions(ctx context.Context) ([]models.RewriteSuggestion, error) {
	doc, _, err := s.loaded()
	if err != nil {
		return nil, err
	}
	clauses, err := s.findIssues(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.rewrites(ctx, clauses)
}

// RightsAdvice describes the tenant's rights for the lease's jurisdiction.
func (s *Session) RightsAdvice(ctx context.Context) (string, error) {
	doc, md, err := s.loaded()
	if err != nil {
		return "", err
	}
	return s.rightsAdvice(ctx, doc, md)
}

// RunFullAnalysis runs every operation in order and stores the result.
// Price context is skipped when the metadata lacks a rent or a city.
// Rewrites are drawn from this run's issues rather than a second detection pass.
func (s *Session) RunFullAnalysis(ctx context.Context) (*models.AnalysisResult, error) {
	doc, md, err := s.loaded()
	if err != nil {
		return nil, err
	}
	start := s.now()
	s.logger.Info("full analysis started")

	summary, err := s.summarize(ctx, doc)
	if err != nil {
		return nil, err
	}
	clauses, err := s.findIssues(ctx, doc)
	if err != nil {
		return nil, err
	}
	var price *string
	if md.HasPriceContext() {
		p, err := s.priceContext(ctx, md)
		if err != nil {
			return nil, err
		}
		price = &p
	} else {
		s.logger.Info("price context skipped", "reason", "rent or city missing")
	}
	rewrites, err := s.rewrites(ctx, clauses)
	if err != nil {
		return nil, err
	}
	rights, err := s.rightsAdvice(ctx, doc, md)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &models.AnalysisResult{
		Metadata:            *md,
		Summary:             summary,
		ProblematicClauses:  clauses,
		RentalPriceAnalysis: price,
		RewriteSuggestions:  rewrites,
		TenantRights:        rights,
		CompletedAt:         now,
	}

	s.mu.Lock()
	if s.doc == doc {
		s.result = result
		s.state = models.SessionAnalyzed
		s.updatedAt = now
	}
	s.mu.Unlock()

	s.logger.Info("full analysis completed",
		"issues", len(clauses),
		"rewrites", len(rewrites),
		"price_context", price != nil,
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return result, nil
}

func (s *Session) summarize(ctx context.Context, doc *models.LeaseDocument) (string, error) {
	return invoke[string](ctx, s, prompt.OpSummarize, map[string]any{"lease_text": doc.Text})
}

func (s *Session) findIssues(ctx context.Context, doc *models.LeaseDocument) ([]models.ProblematicClause, error) {
	items, err := invoke[[]map[string]any](ctx, s, prompt.OpIdentifyIssues, map[string]any{"lease_text": doc.Text})
	if err != nil {
		return nil, err
	}
	return ClausesFromArray(items), nil
}

func (s *Session) priceContext(ctx context.Context, md *models.LeaseMetadata) (string, error) {
	bedrooms := "1"
	if md.NumberOfBedrooms != nil {
		bedrooms = models.FormatNumber(*md.NumberOfBedrooms)
	}
	return invoke[string](ctx, s, prompt.OpPriceContext, map[string]any{
		"city":         models.StringValue(md.City),
		"state":        models.StringValue(md.State),
		"zip_code":     models.StringValue(md.ZipCode),
		"bedrooms":     bedrooms,
		"monthly_rent": models.FormatNumber(*md.MonthlyRent),
	})
}

func (s *Session) rewrites(ctx context.Context, clauses []models.ProblematicClause) ([]models.RewriteSuggestion, error) {
	selected := SelectForRewrite(clauses)
	out := make([]models.RewriteSuggestion, 0, len(selected))
	for _, c := range selected {
		suggestion, err := invoke[string](ctx, s, prompt.OpRewriteClause, map[string]any{
			"clause": c.Clause,
			"issue":  c.Issue,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, models.RewriteSuggestion{
			OriginalClause: c.Clause,
			Severity:       c.Severity,
			Suggestion:     suggestion,
		})
	}
	return out, nil
}

func (s *Session) rightsAdvice(ctx context.Context, doc *models.LeaseDocument, md *models.LeaseMetadata) (string, error) {
	return invoke[string](ctx, s, prompt.OpRightsAdvice, map[string]any{
		"location":   Location(md),
		"lease_text": doc.Text,
	})
}

// SelectForRewrite returns the first five High or Medium severity clauses.
func SelectForRewrite(clauses []models.ProblematicClause) []models.ProblematicClause {
	var out []models.ProblematicClause
	for _, c := range clauses {
		if c.Severity != models.SeverityHigh && c.Severity != models.SeverityMedium {
			continue
		}
		out = append(out, c)
		if len(out) == maxRewrites {
			break
		}
	}
	return out
}

// Location renders the jurisdiction used for rights advice: "City, State"
// when a city is known, the state alone otherwise, or "Unknown".
func Location(md *models.LeaseMetadata) string {
	city := models.StringValue(md.City)
	state := models.StringValue(md.State)
	if state == "" {
		state = "Unknown"
	}
	if city != "" {
		return city + ", " + state
	}
	return state
}

func (s *Session) loaded() (*models.LeaseDocument, *models.LeaseMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == models.SessionEmpty || s.doc == nil {
		return nil, nil, ErrNotLoaded
	}
	md := &models.LeaseMetadata{}
	if s.metadata != nil {
		m := *s.metadata
		md = &m
	}
	return s.doc, md, nil
}

// invoke runs op through call and records the exchange.
func invoke[T any](ctx context.Context, s *Session, op prompt.Operation, args map[string]any) (T, error) {
	out, ex, err := call[T](ctx, s, op, args)
	if err != nil {
		s.logger.Error("model call failed", "operation", op, "error", err)
		return out, err
	}
	s.mu.Lock()
	s.history = append(s.history, *ex)
	s.updatedAt = ex.At
	s.mu.Unlock()
	return out, nil
}

// call renders op, sends it to the model and decodes the reply in the shape
// the op's template declares. T must match that shape: string for text,
// map[string]any for object, []map[string]any for array.
func call[T any](ctx context.Context, s *Session, op prompt.Operation, args map[string]any) (T, *models.Exchange, error) {
	var zero T
	shape, err := s.prompts.Shape(op)
	if err != nil {
		return zero, nil, fmt.Errorf("%s: %w", op, err)
	}
	rendered, err := s.prompts.Render(op, args)
	if err != nil {
		return zero, nil, fmt.Errorf("%s: %w", op, err)
	}
	raw, err := s.completer.Complete(ai.WithOperation(ctx, string(op)), rendered, s.sampling)
	if err != nil {
		return zero, nil, fmt.Errorf("%s: %w", op, err)
	}
	out, ok := s.decode(shape, raw).(T)
	if !ok {
		return zero, nil, fmt.Errorf("%s: %w: template declares %s, caller wants %T", op, ErrShapeMismatch, shape, zero)
	}
	return out, &models.Exchange{
		Operation: string(op),
		Prompt:    rendered,
		Response:  raw,
		At:        s.now().UTC(),
	}, nil
}

func (s *Session) decode(shape prompt.Shape, raw string) any {
	switch shape {
	case prompt.ShapeObject:
		return s.extractor.Object(raw)
	case prompt.ShapeArray:
		return s.extractor.Array(raw)
	default:
		return s.extractor.Text(raw)
	}
}

func loadError(err error) models.LoadResult {
	return models.LoadResult{Status: models.LoadStatusError, Message: err.Error()}
}
