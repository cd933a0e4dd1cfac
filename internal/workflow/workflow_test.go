package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
)

// fakeStore records calls and simulates conflict-ignore task creation.
type fakeStore struct {
	interfaces.Store

	existingTasks map[string]bool
	tasks         map[string]*models.Task
	updates       []models.TaskUpdate
	projectCalls  [][]*models.StagedProject
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existingTasks: make(map[string]bool),
		tasks:         make(map[string]*models.Task),
	}
}

func (f *fakeStore) UpdateTask(ctx context.Context, upd models.TaskUpdate) error {
	f.updates = append(f.updates, upd)
	return nil
}

func (f *fakeStore) BulkCreateTasks(ctx context.Context, tasks []*models.Task) ([]*models.Task, error) {
	var created []*models.Task
	for _, task := range tasks {
		if f.existingTasks[task.ID] {
			continue
		}
		f.existingTasks[task.ID] = true
		f.tasks[task.ID] = task
		created = append(created, task)
	}
	return created, nil
}

func (f *fakeStore) BulkInsertStagedProjects(ctx context.Context, rows []*models.StagedProject) error {
	f.projectCalls = append(f.projectCalls, rows)
	return nil
}

func (f *fakeStore) BulkInsertStagedInvestments(ctx context.Context, rows []*models.StagedInvestment) error {
	return nil
}

// fakeBus records publishes.
type fakeBus struct {
	interfaces.Bus
	published []models.TaskMessage
}

func (f *fakeBus) Publish(ctx context.Context, topic string, payload any) error {
	f.published = append(f.published, payload.(models.TaskMessage))
	return nil
}

// stubScraper returns a fixed output or error.
type stubScraper struct {
	kind models.WorkflowType
	out  *Output
	err  error
}

func (s *stubScraper) Type() models.WorkflowType { return s.kind }
func (s *stubScraper) Scrape(ctx context.Context, deps Deps, in Input) (*Output, error) {
	return s.out, s.err
}

func newTestEngine(store *fakeStore, bus *fakeBus, batchSize int) *Engine {
	deps := Deps{
		Bus:       bus,
		Store:     store,
		Logger:    common.GetLogger(),
		Topic:     "retrieval",
		BatchSize: batchSize,
	}
	return NewEngine(deps, NewRegistry())
}

func TestExecutePublishesOnlyNewTasks(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	engine := newTestEngine(store, bus, 1000)

	// One of the follow-ups already exists from an earlier delivery.
	existing := models.NewTask(3, "adb", models.WorkflowProjectPage, "https://example.org/p/1")
	store.existingTasks[existing.ID] = true

	scraper := &stubScraper{
		kind: models.WorkflowResultsPage,
		out: &Output{
			Next: []*models.Task{
				models.NewTask(3, "adb", models.WorkflowProjectPage, "https://example.org/p/1"),
				models.NewTask(3, "adb", models.WorkflowProjectPage, "https://example.org/p/2"),
			},
		},
	}

	err := engine.Execute(context.Background(), scraper, Input{
		MessageID:        "msg-1",
		DeliveryAttempts: 1,
		JobID:            3,
		TaskID:           "task-1",
		Source:           "adb",
	})
	require.NoError(t, err)

	require.Len(t, bus.published, 1)
	assert.Equal(t, "https://example.org/p/2", bus.published[0].URL)

	final := store.updates[len(store.updates)-1]
	assert.Equal(t, models.TaskCompleted, final.Status)
	assert.NotNil(t, final.ProcessingEnd)
}

func TestExecuteTerminalWorkflowPublishesNothing(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	engine := newTestEngine(store, bus, 1000)

	scraper := &stubScraper{
		kind: models.WorkflowProjectPage,
		out: &Output{
			Projects: []*models.StagedProject{{Source: "adb", URL: "https://example.org/p/1"}},
		},
	}

	err := engine.Execute(context.Background(), scraper, Input{
		MessageID: "msg-2", DeliveryAttempts: 1, JobID: 3, TaskID: "task-2", Source: "adb",
	})
	require.NoError(t, err)
	assert.Empty(t, bus.published)
	require.Len(t, store.projectCalls, 1)
}

func TestExecuteSplitsStagedBatches(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	engine := newTestEngine(store, bus, 1000)

	rows := make([]*models.StagedProject, 1501)
	for i := range rows {
		rows[i] = &models.StagedProject{Source: "kfw"}
	}
	scraper := &stubScraper{kind: models.WorkflowDownload, out: &Output{Projects: rows}}

	err := engine.Execute(context.Background(), scraper, Input{
		MessageID: "msg-3", DeliveryAttempts: 1, JobID: 9, TaskID: "task-3", Source: "kfw",
	})
	require.NoError(t, err)

	require.Len(t, store.projectCalls, 2)
	assert.Len(t, store.projectCalls[0], 1000)
	assert.Len(t, store.projectCalls[1], 501)
}

func TestExecuteRecordsFailure(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	engine := newTestEngine(store, bus, 1000)

	cause := errors.New("connection reset")
	scraper := &stubScraper{kind: models.WorkflowResultsPage, err: cause}

	err := engine.Execute(context.Background(), scraper, Input{
		MessageID:        "msg-4",
		DeliveryAttempts: 3,
		JobID:            5,
		TaskID:           "task-4",
		Source:           "ifc",
	})
	require.ErrorIs(t, err, cause)
	assert.Empty(t, bus.published)

	var errUpdate *models.TaskUpdate
	for i := range store.updates {
		if store.updates[i].Status == models.TaskError {
			errUpdate = &store.updates[i]
		}
	}
	require.NotNil(t, errUpdate)
	assert.Equal(t, "results-page msg-4: connection reset", errUpdate.LastErrorMessage)
	assert.NotNil(t, errUpdate.LastFailedAt)

	// Third delivery means two prior retries.
	first := store.updates[0]
	require.NotNil(t, first.RetryCount)
	assert.Equal(t, 2, *first.RetryCount)
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.AddSource("adb", models.JobTypeDevelopmentProjects, models.WorkflowSeedURLs)
	reg.Register("adb", models.WorkflowSeedURLs, func() Scraper {
		return &stubScraper{kind: models.WorkflowSeedURLs}
	})

	_, err := reg.Resolve("adb", models.WorkflowDownload)
	assert.ErrorIs(t, err, ErrUnregisteredWorkflow)

	_, err = reg.Resolve("unknown", models.WorkflowSeedURLs)
	assert.ErrorIs(t, err, ErrUnregisteredWorkflow)

	starter, err := reg.Starter("adb")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowSeedURLs, starter)

	jobType, err := reg.JobType("adb")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeDevelopmentProjects, jobType)
}
