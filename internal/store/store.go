package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/varunv-ux/getglow/pkg/models"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	// ErrInvalidTransition is returned when a conditional status update found
	// the job in a state the transition does not leave from. Callers treat it
	// as "someone else already moved the job" and do not retry.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	ListJobsByOwner(ctx context.Context, ownerID *uuid.UUID, limit int) ([]*models.AnalysisJob, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error

	// MarkJobProcessing moves pending -> processing atomically and returns the
	// updated record. ErrInvalidTransition means the job already left pending.
	MarkJobProcessing(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	// CompleteJob moves processing -> completed, writing scores and payloads.
	CompleteJob(ctx context.Context, id uuid.UUID, scores models.Scores, result, recommendations json.RawMessage) (*models.AnalysisJob, error)
	// FailJob moves processing -> failed, writing the error descriptor.
	FailJob(ctx context.Context, id uuid.UUID, message string, payload json.RawMessage) (*models.AnalysisJob, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}
