package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/fundtrace/fundtrace/internal/models"
)

// txnChunk bounds how many rows go into one badger transaction.
const txnChunk = 100

// BulkCreateTasks inserts tasks, skipping any whose composite key already
// exists, and returns only the rows actually created.
func (s *Store) BulkCreateTasks(ctx context.Context, tasks []*models.Task) ([]*models.Task, error) {
	var created []*models.Task

	for start := 0; start < len(tasks); start += txnChunk {
		end := start + txnChunk
		if end > len(tasks) {
			end = len(tasks)
		}

		err := s.store.Badger().Update(func(txn *badger.Txn) error {
			for _, task := range tasks[start:end] {
				err := s.store.TxInsert(txn, task.ID, task)
				if err != nil {
					if errors.Is(err, badgerhold.ErrKeyExists) {
						continue
					}
					return err
				}
				created = append(created, task)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to bulk create tasks: %w", err)
		}
	}

	s.logger.Debug().
		Int("requested", len(tasks)).
		Int("created", len(created)).
		Msg("Bulk task creation complete")

	return created, nil
}

// GetTask retrieves a task by its composite id.
func (s *Store) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.store.Get(taskID, &task); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("task %s not found", taskID)
		}
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return &task, nil
}

// UpdateTask applies a partial update written back by a workflow run.
func (s *Store) UpdateTask(ctx context.Context, upd models.TaskUpdate) error {
	err := s.store.Badger().Update(func(txn *badger.Txn) error {
		var task models.Task
		if err := s.store.TxGet(txn, upd.ID, &task); err != nil {
			return err
		}

		if upd.Status != "" {
			task.Status = upd.Status
		}
		if upd.ProcessingStart != nil {
			task.ProcessingStart = *upd.ProcessingStart
		}
		if upd.ProcessingEnd != nil {
			task.ProcessingEnd = *upd.ProcessingEnd
		}
		if upd.ScrapingStart != nil {
			task.ScrapingStart = *upd.ScrapingStart
		}
		if upd.ScrapingEnd != nil {
			task.ScrapingEnd = *upd.ScrapingEnd
		}
		if upd.LastFailedAt != nil {
			task.LastFailedAt = *upd.LastFailedAt
		}
		if upd.LastErrorMessage != "" {
			task.LastErrorMessage = upd.LastErrorMessage
		}
		if upd.RetryCount != nil {
			task.RetryCount = *upd.RetryCount
		}

		return s.store.TxUpdate(txn, upd.ID, &task)
	})
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", upd.ID, err)
	}
	return nil
}
