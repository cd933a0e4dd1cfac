package transform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
)

// Service consumes the cleaning subscription and runs the transform for each
// announced job.
type Service struct {
	bus          interfaces.Bus
	store        interfaces.Store
	projects     *ProjectTransformer
	filings      *FilingTransformer
	logger       arbor.ILogger
	subscription string
}

// NewService wires the transform consumer.
func NewService(bus interfaces.Bus, store interfaces.Store, projects *ProjectTransformer, filings *FilingTransformer, subscription string, logger arbor.ILogger) *Service {
	return &Service{
		bus:          bus,
		store:        store,
		projects:     projects,
		filings:      filings,
		logger:       logger,
		subscription: subscription,
	}
}

// Run pulls audit messages until the context is cancelled. A failed transform
// leaves the message unacked and is retried on redelivery.
func (s *Service) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		deliveries, err := s.bus.Pull(ctx, s.subscription, 1)
		if err != nil {
			if errors.Is(err, models.ErrNoMessage) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Warn().Err(err).Msg("Cleaning pull failed")
			continue
		}

		for _, delivery := range deliveries {
			audit, err := models.DecodeAuditMessage(delivery.Data)
			if err != nil {
				s.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Failed to decode audit message")
				continue
			}

			if err := s.HandleJob(ctx, audit.JobID); err != nil {
				s.logger.Warn().Err(err).Int64("job_id", int64(audit.JobID)).Msg("Transform failed, message left for redelivery")
				continue
			}

			if err := s.bus.Ack(ctx, s.subscription, delivery.ID); err != nil {
				s.logger.Warn().Err(err).Str("message_id", delivery.ID).Msg("Ack failed")
			}
		}
	}
}

// HandleJob runs the transform matching the job's family and records the
// cleaning-stage transitions. Safe to replay: the transform is idempotent and
// the stage fields only advance.
func (s *Service) HandleJob(ctx context.Context, jobID uint64) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	if err := s.store.UpdateJob(ctx, models.JobUpdate{
		ID:             jobID,
		DataCleanStage: models.StageInProgress,
		DataCleanStart: &start,
	}); err != nil {
		return err
	}

	var runErr error
	switch job.JobType {
	case models.JobTypeDevelopmentProjects:
		runErr = s.projects.Run(ctx)
	case models.JobTypeRegulatoryFilings:
		runErr = s.filings.Run(ctx)
	default:
		runErr = fmt.Errorf("unknown job type %q", job.JobType)
	}

	end := time.Now().UTC()
	if runErr != nil {
		if err := s.store.UpdateJob(ctx, models.JobUpdate{
			ID:             jobID,
			DataCleanStage: models.StageError,
			DataCleanEnd:   &end,
		}); err != nil {
			s.logger.Warn().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to record transform failure")
		}
		return runErr
	}

	if err := s.store.UpdateJob(ctx, models.JobUpdate{
		ID:             jobID,
		DataCleanStage: models.StageCompleted,
		DataCleanEnd:   &end,
	}); err != nil {
		return err
	}

	s.logger.Info().Int64("job_id", int64(jobID)).Str("job_type", string(job.JobType)).Msg("Transform complete")
	return nil
}
