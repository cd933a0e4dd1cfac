package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

const (
	headerSchedulerJob = "X-CloudScheduler-JobName"
	headerTraceContext = "X-Cloud-Trace-Context"
)

// CollectHandler queues the scraping stage for a set of sources.
type CollectHandler struct {
	store    interfaces.Store
	bus      interfaces.Bus
	registry *workflow.Registry
	topic    string
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewCollectHandler creates the collect endpoint handler.
func NewCollectHandler(store interfaces.Store, bus interfaces.Bus, registry *workflow.Registry, topic string, logger arbor.ILogger) *CollectHandler {
	return &CollectHandler{
		store:    store,
		bus:      bus,
		registry: registry,
		topic:    topic,
		validate: validator.New(),
		logger:   logger,
	}
}

type collectRequest struct {
	Sources []string `json:"sources" validate:"required,min=1,dive,required"`
}

// Collect handles POST /api/collect. The call is idempotent per scheduler
// invocation: replays map onto the same job, task creation ignores conflicts,
// and only newly-created starter tasks are published.
func (h *CollectHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "sources must be a non-empty list")
		return
	}

	sources := dedupe(req.Sources)

	jobType := models.JobType("")
	for _, source := range sources {
		sourceType, err := h.registry.JobType(source)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", source))
			return
		}
		if jobType == "" {
			jobType = sourceType
		} else if jobType != sourceType {
			writeError(w, http.StatusBadRequest, "sources mix job families; split the request per family")
			return
		}
	}

	invocationID, err := invocationID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	job, createdJob, err := h.store.CreateJob(ctx, invocationID, jobType)
	if err != nil {
		h.logger.Error().Err(err).Str("invocation_id", invocationID).Msg("Failed to create job")
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	now := time.Now().UTC()
	if err := h.store.UpdateJob(ctx, models.JobUpdate{
		ID:            job.ID,
		DataLoadStage: models.StageInProgress,
		DataLoadStart: &now,
	}); err != nil {
		h.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to start collection stage")
		writeError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	starters := make([]*models.Task, 0, len(sources))
	for _, source := range sources {
		starter, err := h.registry.Starter(source)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", source))
			return
		}
		starters = append(starters, models.NewTask(job.ID, source, starter, ""))
	}

	created, err := h.store.BulkCreateTasks(ctx, starters)
	if err != nil {
		h.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to create starter tasks")
		writeError(w, http.StatusInternalServerError, "failed to create tasks")
		return
	}

	// Publish exactly the new rows. On a replay with nothing new this
	// publishes nothing and still succeeds; on publish failure the rows
	// stay and the next trigger republishes them.
	for _, task := range created {
		if err := h.bus.Publish(ctx, h.topic, models.TaskMessageFromTask(task)); err != nil {
			h.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Str("task_id", task.ID).Msg("Failed to publish starter task")
			writeError(w, http.StatusInternalServerError, "failed to publish tasks")
			return
		}
	}

	h.logger.Info().
		Int64("job_id", int64(job.ID)).
		Bool("job_created", createdJob).
		Int("sources", len(sources)).
		Int("tasks_published", len(created)).
		Msg("Collection queued")

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Workflows queued successfully.",
		"job_id":  job.ID,
	})
}

// invocationID derives the idempotency key from the scheduler headers.
func invocationID(r *http.Request) (string, error) {
	jobName := strings.TrimSpace(r.Header.Get(headerSchedulerJob))
	if jobName == "" {
		return "", fmt.Errorf("missing %s header", headerSchedulerJob)
	}
	trace := strings.TrimSpace(r.Header.Get(headerTraceContext))
	if i := strings.Index(trace, "/"); i >= 0 {
		trace = trace[:i]
	}
	if trace == "" {
		return "", fmt.Errorf("missing %s header", headerTraceContext)
	}
	return jobName + "-" + trace, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
