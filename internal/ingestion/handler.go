package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const missingFieldsMessage = "Missing required fields: file_url, coach_id, filename"

// Handler exposes the process-content function.
type Handler struct {
	ingester  Ingester
	publisher *Publisher
	jobs      JobRecorder
	logger    *logging.Logger
}

// NewHandler wires the synchronous pipeline. publisher and jobs are optional
// and enable the async endpoints.
func NewHandler(ingester Ingester, publisher *Publisher, jobs JobRecorder, logger *logging.Logger) *Handler {
	if ingester == nil {
		panic("ingestion: ingester cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{ingester: ingester, publisher: publisher, jobs: jobs, logger: logger}
}

// ProcessContent handles POST /functions/process-content.
func (h *Handler) ProcessContent(w http.ResponseWriter, r *http.Request) {
	job, err := decodeJob(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	result, err := h.ingester.Ingest(r.Context(), job)
	if err != nil {
		h.logger.Error("process content failed", "coach_id", job.CoachID, "filename", job.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": errorMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"chunks_created": result.ChunksCreated,
		"total_chars":    result.TotalChars,
		"message":        fmt.Sprintf("Successfully processed %s", job.Filename),
	})
}

// ProcessContentAsync handles POST /functions/process-content/async.
func (h *Handler) ProcessContentAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "async processing is not configured"})
		return
	}
	job, err := decodeJob(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	jobID, err := h.publisher.Enqueue(r.Context(), job)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrMissingFields) {
			status = http.StatusBadRequest
		}
		h.logger.Error("enqueue ingestion job failed", "coach_id", job.CoachID, "error", err)
		writeJSON(w, status, map[string]any{"success": false, "error": errorMessage(err)})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": jobID})
}

// JobStatus handles GET /functions/process-content/jobs/{jobID}.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "job tracking is not configured"})
		return
	}
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "job not found"})
			return
		}
		h.logger.Error("job lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load job"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func decodeJob(r *http.Request) (Job, error) {
	var job Job
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&job); err != nil {
		return Job{}, fmt.Errorf("invalid request body: %w", err)
	}
	return job, nil
}

func errorMessage(err error) string {
	if errors.Is(err, ErrMissingFields) {
		return missingFieldsMessage
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
