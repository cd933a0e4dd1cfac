package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/interfaces"
)

// StatusHandler reports service health and job progress.
type StatusHandler struct {
	store  interfaces.Store
	logger arbor.ILogger
}

// NewStatusHandler creates the status endpoint handler.
func NewStatusHandler(store interfaces.Store, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{store: store, logger: logger}
}

// Status handles GET /api/status. With a job_id query parameter it returns
// that job's stage fields; without one it reports service health.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("job_id")
	if rawID == "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": common.GetVersion(),
		})
		return
	}

	jobID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "job_id must be numeric")
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}
