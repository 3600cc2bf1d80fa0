// Package jobs runs full lease analyses in the background for the HTTP API.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/internal/lease"
	"github.com/kiranshivaraju/leaselens/internal/metrics"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// SessionStore persists session snapshots.
type SessionStore interface {
	Save(ctx context.Context, snap *models.SessionSnapshot) error
	Load(ctx context.Context, id uuid.UUID) (*models.SessionSnapshot, error)
}

// ErrLeaseReplaced fails a job whose session was loaded with a different
// lease, or reset, while the analysis ran.
var ErrLeaseReplaced = errors.New("lease replaced while analysis was running; result discarded")

// JobStore persists job records.
type JobStore interface {
	Save(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// RestoreFunc rebuilds a live session from a snapshot.
type RestoreFunc func(snap *models.SessionSnapshot) *lease.Session

// Runner dispatches full analyses. Each job restores its own session from
// the snapshot it was given and writes the analyzed snapshot back when done.
type Runner struct {
	sessions SessionStore
	jobs     JobStore
	restore  RestoreFunc
	metrics  *metrics.Metrics
	timeout  time.Duration
	logger   *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds a whole job, across every model call it makes.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner.
func NewRunner(sessions SessionStore, jobs JobStore, restore RestoreFunc, opts ...Option) *Runner {
	r := &Runner{
		sessions: sessions,
		jobs:     jobs,
		restore:  restore,
		timeout:  15 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TriggerFullAnalysis creates a pending job and runs the analysis in a
// background goroutine. It returns the job without waiting.
func (r *Runner) TriggerFullAnalysis(ctx context.Context, snap *models.SessionSnapshot) (*models.Job, error) {
	if snap == nil || snap.ID == uuid.Nil {
		return nil, fmt.Errorf("invalid session: ID is required")
	}
	if snap.State == models.SessionEmpty || snap.Document == nil {
		return nil, lease.ErrNotLoaded
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		SessionID: snap.ID,
		Type:      models.JobTypeFullAnalysis,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	r.wg.Add(1)
	go r.run(*job, snap)

	return job, nil
}

// Get returns the current record for a job.
func (r *Runner) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return r.jobs.Get(ctx, id)
}

// Wait blocks until every dispatched job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// run performs the analysis. It recovers from panics and always leaves the
// job completed or failed.
func (r *Runner) run(job models.Job, snap *models.SessionSnapshot) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	logger := r.logger.With("job_id", job.ID.String(), "session_id", job.SessionID.String())

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic in analysis job", "error", rec)
			r.finish(&job, models.JobStatusFailed, fmt.Sprintf("panic: %v", rec))
		}
	}()

	started := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &started
	job.UpdatedAt = started
	r.save(&job)

	sess := r.restore(snap)
	if _, err := sess.RunFullAnalysis(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("analysis exceeded %s: %w", r.timeout, err)
		}
		logger.Warn("analysis job failed", "error", err)
		r.finish(&job, models.JobStatusFailed, err.Error())
		return
	}

	if err := r.checkCurrent(snap); err != nil {
		logger.Warn("analysis result discarded", "error", err)
		r.finish(&job, models.JobStatusFailed, err.Error())
		return
	}
	if err := r.sessions.Save(context.Background(), sess.Snapshot()); err != nil {
		logger.Error("storing analyzed session failed", "error", err)
		r.finish(&job, models.JobStatusFailed, fmt.Sprintf("storing result: %v", err))
		return
	}

	logger.Info("analysis job completed", "duration_ms", time.Since(started).Milliseconds())
	r.finish(&job, models.JobStatusCompleted, "")
}

// checkCurrent reports whether the stored session still holds the lease the
// job analyzed. A load or reset between this check and the save still wins.
func (r *Runner) checkCurrent(snap *models.SessionSnapshot) error {
	stored, err := r.sessions.Load(context.Background(), snap.ID)
	if err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if stored.Document == nil || !stored.Document.LoadedAt.Equal(snap.Document.LoadedAt) {
		return ErrLeaseReplaced
	}
	return nil
}

func (r *Runner) finish(job *models.Job, status, message string) {
	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now
	job.UpdatedAt = now
	if message != "" {
		job.ErrorMessage = &message
	}
	r.save(job)
	r.metrics.JobFinished(status)
}

func (r *Runner) save(job *models.Job) {
	if err := r.jobs.Save(context.Background(), job); err != nil {
		r.logger.Error("saving job status failed", "job_id", job.ID.String(), "status", job.Status, "error", err)
	}
}
