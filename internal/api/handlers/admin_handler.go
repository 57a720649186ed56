package handlers

import (
	"errors"
	"net/http"

	"github.com/saudeaberta/medstock-api/internal/scheduler"
)

// JobRunner is the part of the scheduler exposed to operators
type JobRunner interface {
	Trigger(name string) error
	Status() []scheduler.JobStatus
}

// AdminHandler exposes job status and manual triggers
type AdminHandler struct {
	jobs JobRunner
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(jobs JobRunner) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

// ListJobs handles GET /admin/jobs
func (h *AdminHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.jobs.Status(),
	})
}

// RunJob handles POST /admin/jobs/{name}/run
func (h *AdminHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	err := h.jobs.Trigger(name)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusAccepted, map[string]string{
			"job":    name,
			"status": "started",
		})
	case errors.Is(err, scheduler.ErrUnknownJob):
		respondWithError(w, http.StatusNotFound, "unknown job: "+name)
	case errors.Is(err, scheduler.ErrJobRunning):
		respondWithError(w, http.StatusConflict, "job already running: "+name)
	default:
		respondWithAppError(w, r, err)
	}
}
