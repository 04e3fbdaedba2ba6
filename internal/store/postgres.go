package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/varunv-ux/getglow/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const jobColumns = `id, owner_id, image_url, status, overall_score, skin_score, eye_score,
	 circulation_score, symmetry_score, result, recommendations, error_message,
	 started_at, completed_at, created_at, updated_at`

// --- Analysis Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, owner_id, image_url, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.OwnerID, job.ImageURL, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListJobsByOwner(ctx context.Context, ownerID *uuid.UUID, limit int) ([]*models.AnalysisJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var (
		rows pgx.Rows
		err  error
	)
	if ownerID == nil {
		rows, err = s.pool.Query(ctx,
			`SELECT `+jobColumns+` FROM analysis_jobs WHERE owner_id IS NULL
			 ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+jobColumns+` FROM analysis_jobs WHERE owner_id = $1
			 ORDER BY created_at DESC LIMIT $2`, *ownerID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analysis_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkJobProcessing is the claim step: of N concurrent starts on the same
// pending job, exactly one UPDATE matches and the rest observe the row
// already gone from pending.
func (s *PostgresStore) MarkJobProcessing(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, started_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = $3
		 RETURNING `+jobColumns,
		id, models.JobStatusProcessing, models.JobStatusPending)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.transitionConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, scores models.Scores, result, recommendations json.RawMessage) (*models.AnalysisJob, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, overall_score = $3, skin_score = $4, eye_score = $5,
		     circulation_score = $6, symmetry_score = $7, result = $8,
		     recommendations = $9, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = $10
		 RETURNING `+jobColumns,
		id, models.JobStatusCompleted, scores.Overall, scores.Skin, scores.Eye,
		scores.Circulation, scores.Symmetry, result, recommendations,
		models.JobStatusProcessing)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.transitionConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, message string, payload json.RawMessage) (*models.AnalysisJob, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, error_message = $3, result = $4,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = $5
		 RETURNING `+jobColumns,
		id, models.JobStatusFailed, message, payload, models.JobStatusProcessing)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.transitionConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	return job, nil
}

// transitionConflict distinguishes "job does not exist" from "job exists but
// the conditional update did not match its current status".
func (s *PostgresStore) transitionConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM analysis_jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check job exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, key_hash, key_prefix, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// scanJob reads one analysis_jobs row. Rows written before the status column
// was introduced carry a NULL status; those are classified from the data that
// is present: scored rows are completed, unscored rows are still processing.
func scanJob(row pgx.Row) (*models.AnalysisJob, error) {
	var (
		j      models.AnalysisJob
		status *string
	)
	err := row.Scan(&j.ID, &j.OwnerID, &j.ImageURL, &status, &j.Scores.Overall,
		&j.Scores.Skin, &j.Scores.Eye, &j.Scores.Circulation, &j.Scores.Symmetry,
		&j.Result, &j.Recommendations, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if status != nil && *status != "" {
		j.Status = *status
	} else if j.Scores.Overall > 0 {
		j.Status = models.JobStatusCompleted
	} else {
		j.Status = models.JobStatusProcessing
	}
	return &j, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
