// Package analysis owns the photo analysis job lifecycle: submit, start,
// background inference, and terminal status.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/varunv-ux/getglow/internal/blob"
	"github.com/varunv-ux/getglow/internal/cache"
	"github.com/varunv-ux/getglow/internal/imageproc"
	"github.com/varunv-ux/getglow/internal/progress"
	"github.com/varunv-ux/getglow/internal/store"
	"github.com/varunv-ux/getglow/pkg/models"
)

// statusCacheTTL bounds how long the Redis status mirror outlives the job.
const statusCacheTTL = 30 * time.Minute

// Service orchestrates the analysis job lifecycle. Jobs move
// pending -> processing -> completed|failed; each transition is written to
// the store first and then announced on the progress bus.
type Service struct {
	store    store.Store
	cache    cache.Cache
	blobs    blob.Store
	pre      *imageproc.Preprocessor
	provider models.VisionProvider
	bus      progress.Bus
	prompt   models.PromptConfig
	timeout  time.Duration
}

// NewService creates a new Service.
func NewService(st store.Store, ca cache.Cache, blobs blob.Store, pre *imageproc.Preprocessor,
	provider models.VisionProvider, bus progress.Bus, prompt models.PromptConfig, timeout time.Duration) *Service {
	return &Service{
		store:    st,
		cache:    ca,
		blobs:    blobs,
		pre:      pre,
		provider: provider,
		bus:      bus,
		prompt:   prompt,
		timeout:  timeout,
	}
}

// Submit normalizes the uploaded image, persists it, and creates a pending
// job. The job does not run until Start is called.
func (s *Service) Submit(ctx context.Context, ownerID *uuid.UUID, data []byte, fileName string) (*models.AnalysisJob, error) {
	processed, err := s.pre.Process(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	imageURL, err := s.blobs.Put(ctx, processed.Data, fileName, processed.ContentType)
	if err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	now := time.Now().UTC()
	job := &models.AnalysisJob{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ImageURL:  imageURL,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		_ = s.blobs.Delete(ctx, imageURL)
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, statusCacheTTL)

	return job, nil
}

// Start claims a pending job and dispatches inference in a background
// goroutine. Starting a job that already left pending is not an error: the
// current record is returned unchanged, so repeated starts are idempotent
// and at most one goroutine ever runs per job.
func (s *Service) Start(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(callerID) {
		return nil, ErrForbidden
	}

	claimed, err := s.store.MarkJobProcessing(ctx, id)
	if errors.Is(err, store.ErrInvalidTransition) {
		// Someone else claimed the job between our read and the claim;
		// re-fetch so the caller sees the current state, not the snapshot.
		return s.store.GetJob(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, id, models.JobStatusProcessing, statusCacheTTL)
	s.bus.Publish(id, progress.Event{
		JobID:  id,
		Status: models.JobStatusProcessing,
		Job:    claimed,
	})

	go s.runAnalysis(claimed)

	return claimed, nil
}

// Get returns one job. Ownership is enforced: a caller may only read jobs it
// owns or jobs without an owner. Completed jobs are served from the cache
// when the mirror is still warm.
func (s *Service) Get(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*models.AnalysisJob, error) {
	if data, ok, err := s.cache.Get(ctx, cache.JobResultKey(id)); err == nil && ok {
		var cached models.AnalysisJob
		if err := json.Unmarshal(data, &cached); err == nil {
			if !cached.OwnedBy(callerID) {
				return nil, ErrForbidden
			}
			return &cached, nil
		}
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(callerID) {
		return nil, ErrForbidden
	}
	return job, nil
}

// List returns the caller's most recent jobs.
func (s *Service) List(ctx context.Context, callerID *uuid.UUID, limit int) ([]*models.AnalysisJob, error) {
	return s.store.ListJobsByOwner(ctx, callerID, limit)
}

// Delete removes a job and, best-effort, its stored image and cached status.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !job.OwnedBy(callerID) {
		return ErrForbidden
	}

	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, job.ImageURL); err != nil {
		slog.Warn("deleting job image", "error", err, "job_id", id)
	}
	_ = s.cache.Delete(ctx, cache.JobStatusKey(id))
	_ = s.cache.Delete(ctx, cache.JobResultKey(id))
	return nil
}

// Subscribe registers a live viewer for a job's progress events.
func (s *Service) Subscribe(id uuid.UUID) chan progress.Event {
	return s.bus.Subscribe(id)
}

// Unsubscribe detaches a viewer registered with Subscribe.
func (s *Service) Unsubscribe(id uuid.UUID, ch chan progress.Event) {
	s.bus.Unsubscribe(id, ch)
}

// runAnalysis performs inference in a goroutine. It recovers from panics and
// always drives the job to a terminal status exactly once; the progress bus
// hears about the terminal transition only after the store accepted it.
func (s *Service) runAnalysis(job *models.AnalysisJob) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runAnalysis", "error", r, "job_id", job.ID)
			s.finishFailed(ctx, job.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	imageData, err := s.blobs.Get(ctx, job.ImageURL)
	if err != nil {
		s.finishFailed(ctx, job.ID, fmt.Errorf("loading image: %w", err))
		return
	}

	inferCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.provider.Analyze(inferCtx, models.InferenceRequest{
		ImageData:   imageData,
		ContentType: "image/jpeg",
		Prompt:      s.prompt,
	})
	if err != nil {
		s.finishFailed(ctx, job.ID, err)
		return
	}

	resultJSON, err := json.Marshal(report)
	if err != nil {
		s.finishFailed(ctx, job.ID, fmt.Errorf("encoding report: %w", err))
		return
	}
	recsJSON, err := json.Marshal(report.Recommendations)
	if err != nil {
		s.finishFailed(ctx, job.ID, fmt.Errorf("encoding recommendations: %w", err))
		return
	}

	updated, err := s.store.CompleteJob(ctx, job.ID, report.ToScores(), resultJSON, recsJSON)
	if errors.Is(err, store.ErrInvalidTransition) {
		slog.Warn("job already terminal, dropping result", "job_id", job.ID)
		return
	}
	if err != nil {
		slog.Error("storing analysis result", "error", err, "job_id", job.ID)
		s.finishFailed(ctx, job.ID, fmt.Errorf("storing result: %w", err))
		return
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusCompleted, statusCacheTTL)
	if data, err := json.Marshal(updated); err == nil {
		_ = s.cache.Set(ctx, cache.JobResultKey(job.ID), data, statusCacheTTL)
	}
	s.bus.Publish(job.ID, progress.Event{
		JobID:  job.ID,
		Status: models.JobStatusCompleted,
		Job:    updated,
	})
	slog.Info("analysis completed", "job_id", job.ID, "overall_score", updated.Scores.Overall)
}

// finishFailed records a failure and publishes the failed event. A job that
// already reached a terminal status is left untouched.
func (s *Service) finishFailed(ctx context.Context, jobID uuid.UUID, cause error) {
	desc := ErrorDescriptor{
		Code:    ErrorCode(cause),
		Message: cause.Error(),
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		payload = nil
	}

	updated, err := s.store.FailJob(ctx, jobID, desc.Message, payload)
	if errors.Is(err, store.ErrInvalidTransition) {
		return
	}
	if err != nil {
		slog.Error("marking job failed", "error", err, "job_id", jobID, "cause", cause)
		return
	}

	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, statusCacheTTL)
	s.bus.Publish(jobID, progress.Event{
		JobID:   jobID,
		Status:  models.JobStatusFailed,
		Job:     updated,
		Message: desc.Message,
	})
	slog.Info("analysis failed", "job_id", jobID, "code", desc.Code, "error", desc.Message)
}
