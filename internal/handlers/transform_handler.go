package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
)

// JobTransformer runs the transform for one job.
type JobTransformer interface {
	HandleJob(ctx context.Context, jobID uint64) error
}

// TransformHandler accepts push deliveries from the cleaning topic. It exists
// alongside the pull consumer so deployments behind a push subscription work
// without code changes.
type TransformHandler struct {
	transformer JobTransformer
	logger      arbor.ILogger
}

// NewTransformHandler creates the transform push endpoint handler.
func NewTransformHandler(transformer JobTransformer, logger arbor.ILogger) *TransformHandler {
	return &TransformHandler{transformer: transformer, logger: logger}
}

// pushEnvelope is the push-delivery wrapper: the payload arrives base64
// encoded inside a message object.
type pushEnvelope struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

type auditPayload struct {
	JobID uint64 `json:"job_id"`
}

// Transform handles POST /api/transform.
func (h *TransformHandler) Transform(w http.ResponseWriter, r *http.Request) {
	var envelope pushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid push envelope")
		return
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "message data is not base64")
		return
	}

	var payload auditPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.JobID == 0 {
		writeError(w, http.StatusBadRequest, "message data carries no job_id")
		return
	}

	if err := h.transformer.HandleJob(r.Context(), payload.JobID); err != nil {
		h.logger.Error().Err(err).Int64("job_id", int64(payload.JobID)).Msg("Transform failed")
		writeError(w, http.StatusInternalServerError, "transform failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Transform completed.",
		"job_id":  payload.JobID,
	})
}
