package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundtrace/fundtrace/internal/common"
)

type transformerStub struct {
	jobs []uint64
	err  error
}

func (s *transformerStub) HandleJob(ctx context.Context, jobID uint64) error {
	s.jobs = append(s.jobs, jobID)
	return s.err
}

func postTransform(h *TransformHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/transform", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Transform(rec, req)
	return rec
}

func TestTransformDecodesPushEnvelope(t *testing.T) {
	stub := &transformerStub{}
	h := NewTransformHandler(stub, common.GetLogger())

	data := base64.StdEncoding.EncodeToString([]byte(`{"job_id":42}`))
	rec := postTransform(h, fmt.Sprintf(`{"message":{"data":"%s"}}`, data))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []uint64{42}, stub.jobs)
}

func TestTransformRejectsBadEnvelopes(t *testing.T) {
	stub := &transformerStub{}
	h := NewTransformHandler(stub, common.GetLogger())

	assert.Equal(t, http.StatusBadRequest, postTransform(h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postTransform(h, `{"message":{"data":"!!!"}}`).Code)

	empty := base64.StdEncoding.EncodeToString([]byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, postTransform(h, fmt.Sprintf(`{"message":{"data":"%s"}}`, empty)).Code)
	assert.Empty(t, stub.jobs)
}

func TestTransformFailureIs500(t *testing.T) {
	stub := &transformerStub{err: assert.AnError}
	h := NewTransformHandler(stub, common.GetLogger())

	data := base64.StdEncoding.EncodeToString([]byte(`{"job_id":7}`))
	rec := postTransform(h, fmt.Sprintf(`{"message":{"data":"%s"}}`, data))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
