// Package dispatcher runs the pull loop that drives the scraping stage: it
// leases task batches from the retrieval subscription, fans them out to the
// workflow engine, and detects quiescence to hand finished jobs to the
// transform stage.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Config tunes the pull loop.
type Config struct {
	Subscription  string
	CleaningTopic string
	BatchSize     int
	MaxWorkers    int
}

// Dispatcher owns the retrieval pull loop.
type Dispatcher struct {
	bus    interfaces.Bus
	store  interfaces.Store
	engine *workflow.Engine
	logger arbor.ILogger
	cfg    Config
}

// New creates a dispatcher.
func New(bus interfaces.Bus, store interfaces.Store, engine *workflow.Engine, cfg Config, logger arbor.ILogger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	return &Dispatcher{bus: bus, store: store, engine: engine, logger: logger, cfg: cfg}
}

// result is one worker's report back to the loop goroutine.
type result struct {
	jobID      uint64
	deliveryID string
	ack        bool
}

// Run loops until the context is cancelled. An empty pull directly after a
// non-empty one means the task graph stopped producing work: every job seen
// since the last audit is marked collection-complete and announced on the
// cleaning topic. The loop then keeps waiting for the next trigger.
func (d *Dispatcher) Run(ctx context.Context) error {
	encountered := make(map[uint64]bool)
	sawWork := false

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		deliveries, err := d.bus.Pull(ctx, d.cfg.Subscription, d.cfg.BatchSize)
		if err != nil {
			if errors.Is(err, models.ErrNoMessage) {
				if sawWork || len(encountered) > 0 {
					// Jobs whose audit failed stay in the set and are
					// retried on the next quiescent cycle.
					encountered = d.audit(ctx, encountered)
					sawWork = false
				}
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			d.logger.Warn().Err(err).Msg("Pull failed")
			continue
		}

		sawWork = true
		d.handleBatch(ctx, deliveries, encountered)
	}
}

// handleBatch runs one pulled batch through bounded parallel workers. Workers
// report over a channel and only this goroutine touches the encountered set
// and acks, so no locking is needed. A failed message is left unacked and
// redelivered after its lease expires.
func (d *Dispatcher) handleBatch(ctx context.Context, deliveries []interfaces.Delivery, encountered map[uint64]bool) {
	sem := make(chan struct{}, d.cfg.MaxWorkers)
	results := make(chan result, len(deliveries))

	var wg sync.WaitGroup
	for _, delivery := range deliveries {
		wg.Add(1)
		sem <- struct{}{}
		go func(delivery interfaces.Delivery) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- d.handleOne(ctx, delivery)
		}(delivery)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.jobID != 0 {
			encountered[res.jobID] = true
		}
		if res.ack {
			if err := d.bus.Ack(ctx, d.cfg.Subscription, res.deliveryID); err != nil {
				d.logger.Warn().Err(err).Str("message_id", res.deliveryID).Msg("Ack failed")
			}
		}
	}
}

func (d *Dispatcher) handleOne(ctx context.Context, delivery interfaces.Delivery) result {
	msg, err := models.DecodeTaskMessage(delivery.Data)
	if err != nil {
		// Undecodable payloads stay unacked and age into the dead-letter set.
		d.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Failed to decode task message")
		return result{deliveryID: delivery.ID}
	}

	if err := d.engine.Handle(ctx, *msg, delivery); err != nil {
		// A failed task must not register its job: the message redelivers,
		// and auditing now would hand an incomplete job to the transform.
		return result{deliveryID: delivery.ID}
	}
	return result{jobID: msg.JobID, deliveryID: delivery.ID, ack: true}
}

// audit closes the collection stage for every encountered job. A failure on
// one job is logged and the remaining jobs are still attempted; the jobs that
// failed are returned so the caller can retry them next cycle. The stage
// update is an advance-only write, so re-running it for a job whose publish
// failed is harmless.
func (d *Dispatcher) audit(ctx context.Context, encountered map[uint64]bool) map[uint64]bool {
	now := time.Now().UTC()
	remaining := make(map[uint64]bool)

	for jobID := range encountered {
		err := d.store.UpdateJob(ctx, models.JobUpdate{
			ID:            jobID,
			DataLoadStage: models.StageCompleted,
			DataLoadEnd:   &now,
		})
		if err != nil {
			d.logger.Warn().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to complete job collection stage")
			remaining[jobID] = true
			continue
		}

		if err := d.bus.Publish(ctx, d.cfg.CleaningTopic, models.NewAuditMessage(jobID, now)); err != nil {
			d.logger.Warn().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to publish audit message")
			remaining[jobID] = true
			continue
		}

		d.logger.Info().Int64("job_id", int64(jobID)).Msg("Collection stage complete, job handed to transform")
	}

	return remaining
}
