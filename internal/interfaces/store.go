package interfaces

import (
	"context"

	"github.com/fundtrace/fundtrace/internal/models"
)

// Store is the storage gateway over the canonical data store.
// The engine depends only on this operation set; the badger implementation in
// internal/storage/badger is the production wiring.
type Store interface {
	// CreateJob is idempotent by invocation id: a second call with the same
	// invocationID returns the existing job and created=false.
	CreateJob(ctx context.Context, invocationID string, jobType models.JobType) (job *models.Job, created bool, err error)
	GetJob(ctx context.Context, jobID uint64) (*models.Job, error)
	UpdateJob(ctx context.Context, upd models.JobUpdate) error

	// BulkCreateTasks inserts tasks ignoring conflicts on
	// (job_id, source, workflow_type, url) and returns only newly-created rows.
	BulkCreateTasks(ctx context.Context, tasks []*models.Task) ([]*models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	UpdateTask(ctx context.Context, upd models.TaskUpdate) error

	BulkInsertStagedProjects(ctx context.Context, rows []*models.StagedProject) error
	GetStagedProjects(ctx context.Context, limit int) ([]*models.StagedProject, error)
	DeleteStagedProjects(ctx context.Context, ids []uint64) error

	BulkInsertStagedInvestments(ctx context.Context, rows []*models.StagedInvestment) error
	GetStagedInvestments(ctx context.Context, limit int) ([]*models.StagedInvestment, error)
	DeleteStagedInvestments(ctx context.Context, ids []uint64) error

	BulkUpsertProjects(ctx context.Context, rows []*models.Project) error
	BulkInsertProjectCountries(ctx context.Context, rows []models.ProjectCountry) error
	BulkInsertProjectSectors(ctx context.Context, rows []models.ProjectSector) error

	BulkUpsertCompanies(ctx context.Context, rows []*models.Company) error
	BulkUpsertForms(ctx context.Context, rows []*models.FormSubmission) error
	BulkUpsertInvestments(ctx context.Context, rows []*models.Investment) error

	GetBanks(ctx context.Context) ([]*models.Bank, error)
	GetCountries(ctx context.Context) ([]*models.Country, error)
	GetSectors(ctx context.Context) ([]*models.Sector, error)
}
