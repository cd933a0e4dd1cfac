package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/fundtrace/fundtrace/internal/models"
)

// jobRef maps an invocation id to the numeric job id. Keeping it as a
// separate record makes job creation idempotent inside one transaction.
type jobRef struct {
	InvocationID string
	JobID        uint64
}

// CreateJob creates a job for the invocation id, or returns the existing one.
func (s *Store) CreateJob(ctx context.Context, invocationID string, jobType models.JobType) (*models.Job, bool, error) {
	// Reserve the id before the transaction; an id burned on the
	// duplicate path leaves a gap, which is harmless.
	id, err := nextID(s.jobSeq)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve job id: %w", err)
	}

	var job models.Job
	created := false

	err = s.store.Badger().Update(func(txn *badger.Txn) error {
		var ref jobRef
		err := s.store.TxGet(txn, invocationID, &ref)
		if err == nil {
			return s.store.TxGet(txn, ref.JobID, &job)
		}
		if !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}

		job = models.Job{
			ID:             id,
			InvocationID:   invocationID,
			JobType:        jobType,
			DataLoadStage:  models.StageNotStarted,
			DataCleanStage: models.StageNotStarted,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.store.TxInsert(txn, invocationID, &jobRef{InvocationID: invocationID, JobID: id}); err != nil {
			return err
		}
		if err := s.store.TxInsert(txn, id, &job); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create job: %w", err)
	}

	if created {
		s.logger.Info().
			Int64("job_id", int64(job.ID)).
			Str("invocation_id", invocationID).
			Str("job_type", string(jobType)).
			Msg("Job created")
	} else {
		s.logger.Debug().
			Int64("job_id", int64(job.ID)).
			Str("invocation_id", invocationID).
			Msg("Job already exists for invocation")
	}

	return &job, created, nil
}

// GetJob retrieves a job by its numeric id.
func (s *Store) GetJob(ctx context.Context, jobID uint64) (*models.Job, error) {
	var job models.Job
	if err := s.store.Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("job %d not found", jobID)
		}
		return nil, fmt.Errorf("failed to get job %d: %w", jobID, err)
	}
	return &job, nil
}

// UpdateJob applies a partial update. Stage fields only ever advance; an
// update that would move a stage backwards is dropped silently, which makes
// redelivered stage transitions safe to replay.
func (s *Store) UpdateJob(ctx context.Context, upd models.JobUpdate) error {
	err := s.store.Badger().Update(func(txn *badger.Txn) error {
		var job models.Job
		if err := s.store.TxGet(txn, upd.ID, &job); err != nil {
			return err
		}

		if upd.DataLoadStage != "" && job.DataLoadStage.CanAdvanceTo(upd.DataLoadStage) {
			job.DataLoadStage = upd.DataLoadStage
		}
		if upd.DataCleanStage != "" && job.DataCleanStage.CanAdvanceTo(upd.DataCleanStage) {
			job.DataCleanStage = upd.DataCleanStage
		}
		if upd.DataLoadStart != nil {
			job.DataLoadStart = *upd.DataLoadStart
		}
		if upd.DataLoadEnd != nil {
			job.DataLoadEnd = *upd.DataLoadEnd
		}
		if upd.DataCleanStart != nil {
			job.DataCleanStart = *upd.DataCleanStart
		}
		if upd.DataCleanEnd != nil {
			job.DataCleanEnd = *upd.DataCleanEnd
		}

		return s.store.TxUpdate(txn, upd.ID, &job)
	})
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", upd.ID, err)
	}
	return nil
}
