package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/varunv-ux/getglow/internal/analysis"
	mw "github.com/varunv-ux/getglow/internal/api/middleware"
	"github.com/varunv-ux/getglow/internal/api/response"
	"github.com/varunv-ux/getglow/internal/progress"
	"github.com/varunv-ux/getglow/internal/store"
	"github.com/varunv-ux/getglow/pkg/models"
)

// JobService defines the interface the job handlers depend on.
type JobService interface {
	Submit(ctx context.Context, ownerID *uuid.UUID, data []byte, fileName string) (*models.AnalysisJob, error)
	Start(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*models.AnalysisJob, error)
	Get(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*models.AnalysisJob, error)
	List(ctx context.Context, callerID *uuid.UUID, limit int) ([]*models.AnalysisJob, error)
	Delete(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) error
	Subscribe(id uuid.UUID) chan progress.Event
	Unsubscribe(id uuid.UUID, ch chan progress.Event)
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// Expects a multipart form with the photo under the "image" field.
func NewCreateJobHandler(svc JobService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT",
				"Request must be multipart/form-data within the size limit", nil)
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT",
				"image file field is required", nil)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT",
				"Failed to read uploaded file", nil)
			return
		}

		job, err := svc.Submit(r.Context(), mw.GetOwnerID(r), data, header.Filename)
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.Created(w, job)
	}
}

// NewStartJobHandler returns an http.HandlerFunc for POST /api/v1/jobs/{jobID}/start.
// Starting is idempotent: a job that already left pending is returned as-is.
func NewStartJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		job, err := svc.Start(r.Context(), id, mw.GetOwnerID(r))
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.Accepted(w, job)
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		job, err := svc.Get(r.Context(), id, mw.GetOwnerID(r))
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_INPUT",
					"limit must be a positive integer", nil)
				return
			}
			limit = n
		}

		jobs, err := svc.List(r.Context(), mw.GetOwnerID(r), limit)
		if err != nil {
			writeJobError(w, err)
			return
		}
		if jobs == nil {
			jobs = []*models.AnalysisJob{}
		}

		response.Collection(w, jobs, response.Meta{Count: len(jobs), Limit: limit})
	}
}

// NewDeleteJobHandler returns an http.HandlerFunc for DELETE /api/v1/jobs/{jobID}.
func NewDeleteJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id, mw.GetOwnerID(r)); err != nil {
			writeJobError(w, err)
			return
		}

		response.NoContent(w)
	}
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_INPUT",
			"jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	case errors.Is(err, analysis.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN",
			"You do not have access to this job", nil)
	case errors.Is(err, analysis.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
