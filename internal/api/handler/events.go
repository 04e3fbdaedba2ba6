package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	mw "github.com/varunv-ux/getglow/internal/api/middleware"
	"github.com/varunv-ux/getglow/internal/api/response"
	"github.com/varunv-ux/getglow/internal/progress"
	"github.com/varunv-ux/getglow/pkg/models"
)

// NewJobEventsHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}/events.
// It streams job lifecycle transitions as server-sent events and closes the
// stream after the terminal event. A job that is already terminal yields its
// terminal event immediately without subscribing.
func NewJobEventsHandler(svc JobService) http.HandlerFunc {
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

		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Streaming is not supported", nil)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if models.IsTerminalStatus(job.Status) {
			writeJobEvent(w, flusher, job)
			return
		}

		ch := svc.Subscribe(id)
		defer svc.Unsubscribe(id, ch)

		// The job may have moved between the first read and the
		// subscription. Re-read and replay the transition the channel can no
		// longer deliver; a still-pending job has nothing to replay.
		lastStatus := models.JobStatusPending
		job, err = svc.Get(r.Context(), id, mw.GetOwnerID(r))
		if err == nil && job.Status != models.JobStatusPending {
			writeJobEvent(w, flusher, job)
			if models.IsTerminalStatus(job.Status) {
				return
			}
			lastStatus = job.Status
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				// The replayed snapshot may race the live delivery of the
				// same transition; emit each status once.
				if !ev.Terminal() && ev.Status == lastStatus {
					continue
				}
				writeProgressEvent(w, flusher, ev)
				if ev.Terminal() {
					return
				}
				lastStatus = ev.Status
			}
		}
	}
}

func writeProgressEvent(w http.ResponseWriter, flusher http.Flusher, ev progress.Event) {
	switch {
	case ev.Status == models.JobStatusCompleted:
		writeSSE(w, flusher, "result", ev.Job)
	case ev.Status == models.JobStatusFailed:
		writeSSE(w, flusher, "error", failurePayload(ev.Job, ev.Message))
	default:
		writeSSE(w, flusher, "status", statusPayload{JobID: ev.JobID.String(), Status: ev.Status})
	}
}

func writeJobEvent(w http.ResponseWriter, flusher http.Flusher, job *models.AnalysisJob) {
	switch job.Status {
	case models.JobStatusCompleted:
		writeSSE(w, flusher, "result", job)
	case models.JobStatusFailed:
		writeSSE(w, flusher, "error", failurePayload(job, ""))
	default:
		writeSSE(w, flusher, "status", statusPayload{JobID: job.ID.String(), Status: job.Status})
	}
}

type statusPayload struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// failurePayload prefers the persisted error descriptor; if the job predates
// it, the bare message is wrapped instead.
func failurePayload(job *models.AnalysisJob, message string) any {
	if job != nil && len(job.Result) > 0 {
		return json.RawMessage(job.Result)
	}
	if message == "" && job != nil && job.ErrorMessage != nil {
		message = *job.ErrorMessage
	}
	return map[string]string{"code": "UNKNOWN", "message": message}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
