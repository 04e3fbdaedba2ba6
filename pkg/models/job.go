package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IsTerminalStatus reports whether a job in this status will never transition again.
func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Scores holds the fixed set of wellness scores, each in [0,100].
// All zero until the owning job reaches completed.
type Scores struct {
	Overall     int `db:"overall_score"     json:"overall"`
	Skin        int `db:"skin_score"        json:"skin"`
	Eye         int `db:"eye_score"         json:"eye"`
	Circulation int `db:"circulation_score" json:"circulation"`
	Symmetry    int `db:"symmetry_score"    json:"symmetry"`
}

// AnalysisJob tracks one submitted photo through the async analysis pipeline.
// The API returns the job id on POST /api/v1/jobs; the client either streams
// GET /api/v1/jobs/{id}/events or polls GET /api/v1/jobs/{id} until the
// status is completed or failed.
type AnalysisJob struct {
	ID              uuid.UUID       `db:"id"              json:"id"`
	OwnerID         *uuid.UUID      `db:"owner_id"        json:"owner_id,omitempty"`
	ImageURL        string          `db:"image_url"       json:"image_url"`
	Status          string          `db:"status"          json:"status"`
	Scores          Scores          `json:"scores"`
	Result          json.RawMessage `db:"result"          json:"result,omitempty"`
	Recommendations json.RawMessage `db:"recommendations" json:"recommendations,omitempty"`
	ErrorMessage    *string         `db:"error_message"   json:"error_message,omitempty"`
	StartedAt       *time.Time      `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"      json:"updated_at"`
}

// OwnedBy reports whether the job may be mutated by the given caller.
// Jobs without an owner are treated as public (anonymous submissions).
func (j *AnalysisJob) OwnedBy(callerID *uuid.UUID) bool {
	if j.OwnerID == nil {
		return true
	}
	return callerID != nil && *callerID == *j.OwnerID
}
