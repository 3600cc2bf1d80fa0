package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

var ErrNotFound = errors.New("not found in cache")

// Sessions persists session snapshots as JSON. Every save refreshes the TTL,
// so a session expires after ttl of inactivity.
type Sessions struct {
	cache Cache
	ttl   time.Duration
}

func NewSessions(c Cache, ttl time.Duration) *Sessions {
	return &Sessions{cache: c, ttl: ttl}
}

func (s *Sessions) Save(ctx context.Context, snap *models.SessionSnapshot) error {
	return putJSON(ctx, s.cache, SessionKey(snap.ID), snap, s.ttl)
}

// Load returns ErrNotFound when the session never existed or has expired.
func (s *Sessions) Load(ctx context.Context, id uuid.UUID) (*models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	if err := getJSON(ctx, s.cache, SessionKey(id), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Jobs persists async job records as JSON.
type Jobs struct {
	cache Cache
	ttl   time.Duration
}

func NewJobs(c Cache, ttl time.Duration) *Jobs {
	return &Jobs{cache: c, ttl: ttl}
}

func (j *Jobs) Save(ctx context.Context, job *models.Job) error {
	return putJSON(ctx, j.cache, JobKey(job.ID), job, j.ttl)
}

// Get returns ErrNotFound when the job is unknown or has expired.
func (j *Jobs) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := getJSON(ctx, j.cache, JobKey(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func putJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func getJSON(ctx context.Context, c Cache, key string, v any) error {
	data, found, err := c.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
