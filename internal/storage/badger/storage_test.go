package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := common.GetLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir() + "/data"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestCreateJobIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, created, err := store.CreateJob(ctx, "daily-load-abc123", models.JobTypeDevelopmentProjects)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)
	assert.Equal(t, models.StageNotStarted, first.DataLoadStage)

	second, created, err := store.CreateJob(ctx, "daily-load-abc123", models.JobTypeDevelopmentProjects)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, created, err := store.CreateJob(ctx, "daily-load-def456", models.JobTypeDevelopmentProjects)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUpdateJobStagesAreMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.CreateJob(ctx, "inv-1", models.JobTypeDevelopmentProjects)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.UpdateJob(ctx, models.JobUpdate{
		ID:            job.ID,
		DataLoadStage: models.StageCompleted,
		DataLoadEnd:   &now,
	}))

	// A replayed earlier transition must not move the stage backwards.
	require.NoError(t, store.UpdateJob(ctx, models.JobUpdate{
		ID:            job.ID,
		DataLoadStage: models.StageInProgress,
	}))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageCompleted, got.DataLoadStage)
	assert.WithinDuration(t, now, got.DataLoadEnd, time.Second)
}

func TestBulkCreateTasksIgnoresConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.CreateJob(ctx, "inv-2", models.JobTypeDevelopmentProjects)
	require.NoError(t, err)

	batch := []*models.Task{
		models.NewTask(job.ID, "adb", models.WorkflowProjectPage, "https://example.org/p/1"),
		models.NewTask(job.ID, "adb", models.WorkflowProjectPage, "https://example.org/p/2"),
	}
	created, err := store.BulkCreateTasks(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	// Overlapping batch: one duplicate, one new. Only the new row comes back.
	overlap := []*models.Task{
		models.NewTask(job.ID, "adb", models.WorkflowProjectPage, "https://example.org/p/2"),
		models.NewTask(job.ID, "adb", models.WorkflowProjectPage, "https://example.org/p/3"),
	}
	created, err = store.BulkCreateTasks(ctx, overlap)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "https://example.org/p/3", created[0].URL)
}

func TestUpdateTaskPartial(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := models.NewTask(7, "ifc", models.WorkflowResultsPage, "https://example.org/list")
	_, err := store.BulkCreateTasks(ctx, []*models.Task{task})
	require.NoError(t, err)

	start := time.Now().UTC()
	retries := 2
	require.NoError(t, store.UpdateTask(ctx, models.TaskUpdate{
		ID:              task.ID,
		Status:          models.TaskInProgress,
		ProcessingStart: &start,
		RetryCount:      &retries,
	}))

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.WithinDuration(t, start, got.ProcessingStart, time.Second)
	assert.True(t, got.ScrapingStart.IsZero())
}

func TestStagedProjectRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []*models.StagedProject{
		{Source: "adb", Name: "Rural Roads", URL: "https://example.org/p/1", TaskID: "t1"},
		{Source: "adb", Name: "Water Supply", URL: "https://example.org/p/2", TaskID: "t1"},
		{Source: "ifc", Name: "Solar Plant", URL: "https://example.org/p/3", TaskID: "t2"},
	}
	require.NoError(t, store.BulkInsertStagedProjects(ctx, rows))
	for _, row := range rows {
		assert.NotZero(t, row.ID)
	}

	fetched, err := store.GetStagedProjects(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, fetched, 2)

	all, err := store.GetStagedProjects(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, store.DeleteStagedProjects(ctx, []uint64{rows[0].ID, rows[1].ID}))
	remaining, err := store.GetStagedProjects(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Solar Plant", remaining[0].Name)
}

func TestProjectUpsertReplacesByKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key := models.ProjectKey("adb", "https://example.org/p/1")
	first := &models.Project{Key: key, Source: "adb", URL: "https://example.org/p/1", Status: "Active"}
	require.NoError(t, store.BulkUpsertProjects(ctx, []*models.Project{first}))

	second := &models.Project{Key: key, Source: "adb", URL: "https://example.org/p/1", Status: "Completed"}
	require.NoError(t, store.BulkUpsertProjects(ctx, []*models.Project{second}))

	// Association rows keyed by the pair collapse on replay.
	assoc := []models.ProjectCountry{{ProjectKey: key, CountryID: 4}}
	require.NoError(t, store.BulkInsertProjectCountries(ctx, assoc))
	require.NoError(t, store.BulkInsertProjectCountries(ctx, assoc))
}

func TestSeedReferenceIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	banks := []models.Bank{
		{Name: "Asian Development Bank", Abbreviation: "adb"},
		{Name: "International Finance Corporation", Abbreviation: "ifc"},
	}
	require.NoError(t, store.SeedBanks(ctx, banks))
	require.NoError(t, store.SeedBanks(ctx, banks))

	got, err := store.GetBanks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "adb", got[0].Abbreviation)

	countries := []models.Country{{Name: "India", ISO2: "IN"}, {Name: "Kosovo", ISO2: "XK"}}
	require.NoError(t, store.SeedCountries(ctx, countries))
	require.NoError(t, store.SeedCountries(ctx, countries))

	gotCountries, err := store.GetCountries(ctx)
	require.NoError(t, err)
	require.Len(t, gotCountries, 2)
	assert.Equal(t, "India", gotCountries[0].Name)
}
