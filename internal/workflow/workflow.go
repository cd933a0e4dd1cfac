// Package workflow runs scraping workflows through a shared lifecycle.
// Concrete scrapers only extract data and name their follow-up tasks; status
// transitions, staged persistence, task fan-out and follow-up publishing are
// handled here so every workflow survives redelivery the same way.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
)

// Deps is the dependency set handed to every workflow run.
type Deps struct {
	Fetcher interfaces.Fetcher
	Bus     interfaces.Bus
	Store   interfaces.Store
	Logger  arbor.ILogger

	// Topic receives follow-up task messages.
	Topic string
	// BatchSize bounds one staged bulk insert.
	BatchSize int
}

// Input identifies one task run, including the bus delivery that carried it.
type Input struct {
	MessageID        string
	DeliveryAttempts int
	JobID            uint64
	TaskID           string
	Source           string
	URL              string
}

// Output is what one scrape produced: staged rows plus follow-up tasks.
// Terminal workflows leave Next empty.
type Output struct {
	Projects    []*models.StagedProject
	Investments []*models.StagedInvestment
	Next        []*models.Task
}

// Scraper is one concrete workflow implementation.
type Scraper interface {
	Type() models.WorkflowType
	Scrape(ctx context.Context, deps Deps, in Input) (*Output, error)
}

// Engine executes scrapers through the shared lifecycle.
type Engine struct {
	deps     Deps
	registry *Registry
}

// NewEngine creates the engine over a populated registry.
func NewEngine(deps Deps, registry *Registry) *Engine {
	if deps.BatchSize <= 0 {
		deps.BatchSize = 1000
	}
	return &Engine{deps: deps, registry: registry}
}

// Handle resolves and runs the workflow for one pulled task message.
func (e *Engine) Handle(ctx context.Context, msg models.TaskMessage, delivery interfaces.Delivery) error {
	scraper, err := e.registry.Resolve(msg.Source, msg.WorkflowType)
	if err != nil {
		return err
	}
	return e.Execute(ctx, scraper, Input{
		MessageID:        delivery.ID,
		DeliveryAttempts: delivery.Attempts,
		JobID:            msg.JobID,
		TaskID:           msg.ID,
		Source:           msg.Source,
		URL:              msg.URL,
	})
}

// Execute runs one workflow through the full task lifecycle. The whole run is
// idempotent under redelivery: staged rows are reconciled downstream, task
// creation ignores conflicts, and only newly-created tasks are published.
func (e *Engine) Execute(ctx context.Context, scraper Scraper, in Input) error {
	deps := e.deps
	log := deps.Logger.WithPrefix(string(scraper.Type()))

	now := time.Now().UTC()
	retries := in.DeliveryAttempts - 1
	if retries < 0 {
		retries = 0
	}
	if err := deps.Store.UpdateTask(ctx, models.TaskUpdate{
		ID:              in.TaskID,
		Status:          models.TaskInProgress,
		ProcessingStart: &now,
		RetryCount:      &retries,
	}); err != nil {
		return err
	}

	scrapeStart := time.Now().UTC()
	if err := deps.Store.UpdateTask(ctx, models.TaskUpdate{ID: in.TaskID, ScrapingStart: &scrapeStart}); err != nil {
		return err
	}

	out, scrapeErr := scraper.Scrape(ctx, deps, in)

	scrapeEnd := time.Now().UTC()
	if err := deps.Store.UpdateTask(ctx, models.TaskUpdate{ID: in.TaskID, ScrapingEnd: &scrapeEnd}); err != nil {
		return err
	}

	if scrapeErr != nil {
		return e.fail(ctx, scraper, in, scrapeErr)
	}
	if out == nil {
		out = &Output{}
	}

	if err := e.persist(ctx, out); err != nil {
		return e.fail(ctx, scraper, in, err)
	}

	created, err := deps.Store.BulkCreateTasks(ctx, out.Next)
	if err != nil {
		return e.fail(ctx, scraper, in, err)
	}
	for _, task := range created {
		if err := deps.Bus.Publish(ctx, deps.Topic, models.TaskMessageFromTask(task)); err != nil {
			return e.fail(ctx, scraper, in, err)
		}
	}

	end := time.Now().UTC()
	if err := deps.Store.UpdateTask(ctx, models.TaskUpdate{
		ID:            in.TaskID,
		Status:        models.TaskCompleted,
		ProcessingEnd: &end,
	}); err != nil {
		return err
	}

	log.Info().
		Int64("job_id", int64(in.JobID)).
		Str("source", in.Source).
		Int("staged_projects", len(out.Projects)).
		Int("staged_investments", len(out.Investments)).
		Int("tasks_created", len(created)).
		Int("tasks_requested", len(out.Next)).
		Msg("Workflow completed")
	return nil
}

// persist writes staged rows in bounded batches.
func (e *Engine) persist(ctx context.Context, out *Output) error {
	for start := 0; start < len(out.Projects); start += e.deps.BatchSize {
		end := start + e.deps.BatchSize
		if end > len(out.Projects) {
			end = len(out.Projects)
		}
		if err := e.deps.Store.BulkInsertStagedProjects(ctx, out.Projects[start:end]); err != nil {
			return err
		}
	}
	for start := 0; start < len(out.Investments); start += e.deps.BatchSize {
		end := start + e.deps.BatchSize
		if end > len(out.Investments) {
			end = len(out.Investments)
		}
		if err := e.deps.Store.BulkInsertStagedInvestments(ctx, out.Investments[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, scraper Scraper, in Input, cause error) error {
	now := time.Now().UTC()
	msg := fmt.Sprintf("%s %s: %v", scraper.Type(), in.MessageID, cause)

	if err := e.deps.Store.UpdateTask(ctx, models.TaskUpdate{
		ID:               in.TaskID,
		Status:           models.TaskError,
		ProcessingEnd:    &now,
		LastFailedAt:     &now,
		LastErrorMessage: msg,
	}); err != nil {
		e.deps.Logger.Warn().Err(err).Str("task_id", in.TaskID).Msg("Failed to record task failure")
	}

	e.deps.Logger.Warn().
		Err(cause).
		Int64("job_id", int64(in.JobID)).
		Str("source", in.Source).
		Str("workflow", string(scraper.Type())).
		Str("message_id", in.MessageID).
		Msg("Workflow failed")
	return cause
}
