package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle position of a lease session.
type SessionState string

const (
	SessionEmpty    SessionState = "empty"
	SessionLoaded   SessionState = "loaded"
	SessionAnalyzed SessionState = "analyzed"
)

// Exchange records one prompt/response pair sent during a session.
type Exchange struct {
	Operation string    `json:"operation"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	At        time.Time `json:"at"`
}

// SessionSnapshot is the serialisable state of a session.
type SessionSnapshot struct {
	ID        uuid.UUID       `json:"id"`
	State     SessionState    `json:"state"`
	Document  *LeaseDocument  `json:"document,omitempty"`
	Metadata  *LeaseMetadata  `json:"metadata,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	History   []Exchange      `json:"history,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
