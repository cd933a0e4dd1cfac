package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// handlerStore simulates idempotent job and task creation.
type handlerStore struct {
	interfaces.Store

	jobs     map[string]*models.Job
	nextID   uint64
	tasks    map[string]bool
	created  []*models.Task
	jobTypes map[uint64]models.JobType
}

func newHandlerStore() *handlerStore {
	return &handlerStore{
		jobs:     make(map[string]*models.Job),
		tasks:    make(map[string]bool),
		jobTypes: make(map[uint64]models.JobType),
	}
}

func (s *handlerStore) CreateJob(ctx context.Context, invocationID string, jobType models.JobType) (*models.Job, bool, error) {
	if job, ok := s.jobs[invocationID]; ok {
		return job, false, nil
	}
	s.nextID++
	job := &models.Job{ID: s.nextID, InvocationID: invocationID, JobType: jobType}
	s.jobs[invocationID] = job
	return job, true, nil
}

func (s *handlerStore) UpdateJob(ctx context.Context, upd models.JobUpdate) error { return nil }

func (s *handlerStore) BulkCreateTasks(ctx context.Context, tasks []*models.Task) ([]*models.Task, error) {
	var created []*models.Task
	for _, task := range tasks {
		if s.tasks[task.ID] {
			continue
		}
		s.tasks[task.ID] = true
		created = append(created, task)
	}
	s.created = append(s.created, created...)
	return created, nil
}

type publishRecorder struct {
	interfaces.Bus
	published []models.TaskMessage
	fail      bool
}

func (b *publishRecorder) Publish(ctx context.Context, topic string, payload any) error {
	if b.fail {
		return assert.AnError
	}
	b.published = append(b.published, payload.(models.TaskMessage))
	return nil
}

type starterStub struct{ kind models.WorkflowType }

func (s starterStub) Type() models.WorkflowType { return s.kind }
func (s starterStub) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	return &workflow.Output{}, nil
}

func testRegistry() *workflow.Registry {
	reg := workflow.NewRegistry()
	reg.AddSource("adb", models.JobTypeDevelopmentProjects, models.WorkflowSeedURLs)
	reg.Register("adb", models.WorkflowSeedURLs, func() workflow.Scraper { return starterStub{models.WorkflowSeedURLs} })
	reg.AddSource("kfw", models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	reg.Register("kfw", models.WorkflowDownload, func() workflow.Scraper { return starterStub{models.WorkflowDownload} })
	reg.AddSource("edgar", models.JobTypeRegulatoryFilings, models.WorkflowSeedURLs)
	reg.Register("edgar", models.WorkflowSeedURLs, func() workflow.Scraper { return starterStub{models.WorkflowSeedURLs} })
	return reg
}

func postCollect(t *testing.T, h *CollectHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Collect(rec, req)
	return rec
}

var schedulerHeaders = map[string]string{
	headerSchedulerJob: "daily-load",
	headerTraceContext: "abc123/span;o=1",
}

func TestCollectQueuesStarterTasks(t *testing.T) {
	store := newHandlerStore()
	bus := &publishRecorder{}
	h := NewCollectHandler(store, bus, testRegistry(), "retrieval", common.GetLogger())

	rec := postCollect(t, h, `{"sources":["adb","kfw","adb"]}`, schedulerHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Workflows queued successfully.")

	// Duplicate source collapses: one starter per distinct source.
	require.Len(t, bus.published, 2)
	assert.Equal(t, models.WorkflowSeedURLs, bus.published[0].WorkflowType)
	assert.Equal(t, models.WorkflowDownload, bus.published[1].WorkflowType)
}

func TestCollectReplayPublishesNothing(t *testing.T) {
	store := newHandlerStore()
	bus := &publishRecorder{}
	h := NewCollectHandler(store, bus, testRegistry(), "retrieval", common.GetLogger())

	rec := postCollect(t, h, `{"sources":["adb"]}`, schedulerHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bus.published, 1)

	// Same invocation id: same job, no new tasks, zero publishes, still 200.
	rec = postCollect(t, h, `{"sources":["adb"]}`, schedulerHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, bus.published, 1)
	assert.Len(t, store.jobs, 1)
}

func TestCollectRejectsBadRequests(t *testing.T) {
	store := newHandlerStore()
	bus := &publishRecorder{}
	h := NewCollectHandler(store, bus, testRegistry(), "retrieval", common.GetLogger())

	tests := []struct {
		name    string
		body    string
		headers map[string]string
	}{
		{"empty sources", `{"sources":[]}`, schedulerHeaders},
		{"missing sources", `{}`, schedulerHeaders},
		{"unknown source", `{"sources":["ghost"]}`, schedulerHeaders},
		{"mixed families", `{"sources":["adb","edgar"]}`, schedulerHeaders},
		{"missing scheduler header", `{"sources":["adb"]}`, map[string]string{headerTraceContext: "abc"}},
		{"missing trace header", `{"sources":["adb"]}`, map[string]string{headerSchedulerJob: "daily-load"}},
		{"malformed body", `{"sources":`, schedulerHeaders},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postCollect(t, h, tt.body, tt.headers)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, bus.published)
}

func TestCollectPublishFailureIs500(t *testing.T) {
	store := newHandlerStore()
	bus := &publishRecorder{fail: true}
	h := NewCollectHandler(store, bus, testRegistry(), "retrieval", common.GetLogger())

	rec := postCollect(t, h, `{"sources":["adb"]}`, schedulerHeaders)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The task row survived; a re-trigger republishes it.
	assert.Len(t, store.created, 1)
}
