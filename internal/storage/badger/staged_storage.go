package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/fundtrace/fundtrace/internal/models"
)

// BulkInsertStagedProjects assigns ids and appends the rows. Staged rows are
// append-only; the transform stage deletes them once reconciled.
func (s *Store) BulkInsertStagedProjects(ctx context.Context, rows []*models.StagedProject) error {
	for _, row := range rows {
		id, err := nextID(s.stagedSeq)
		if err != nil {
			return fmt.Errorf("failed to reserve staged id: %w", err)
		}
		row.ID = id
	}

	for start := 0; start < len(rows); start += txnChunk {
		end := start + txnChunk
		if end > len(rows) {
			end = len(rows)
		}
		err := s.store.Badger().Update(func(txn *badger.Txn) error {
			for _, row := range rows[start:end] {
				if err := s.store.TxInsert(txn, row.ID, row); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to insert staged projects: %w", err)
		}
	}

	s.logger.Debug().Int("count", len(rows)).Msg("Staged projects inserted")
	return nil
}

// GetStagedProjects returns up to limit staged rows in insertion order.
func (s *Store) GetStagedProjects(ctx context.Context, limit int) ([]*models.StagedProject, error) {
	var rows []*models.StagedProject
	query := badgerhold.Where(badgerhold.Key).Ge(uint64(0))
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.store.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to fetch staged projects: %w", err)
	}
	return rows, nil
}

// DeleteStagedProjects removes the given staged rows.
func (s *Store) DeleteStagedProjects(ctx context.Context, ids []uint64) error {
	for start := 0; start < len(ids); start += txnChunk {
		end := start + txnChunk
		if end > len(ids) {
			end = len(ids)
		}
		err := s.store.Badger().Update(func(txn *badger.Txn) error {
			for _, id := range ids[start:end] {
				if err := s.store.TxDelete(txn, id, models.StagedProject{}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to delete staged projects: %w", err)
		}
	}
	return nil
}

// BulkInsertStagedInvestments assigns ids and appends the rows.
func (s *Store) BulkInsertStagedInvestments(ctx context.Context, rows []*models.StagedInvestment) error {
	for _, row := range rows {
		id, err := nextID(s.stagedSeq)
		if err != nil {
			return fmt.Errorf("failed to reserve staged id: %w", err)
		}
		row.ID = id
	}

	for start := 0; start < len(rows); start += txnChunk {
		end := start + txnChunk
		if end > len(rows) {
			end = len(rows)
		}
		err := s.store.Badger().Update(func(txn *badger.Txn) error {
			for _, row := range rows[start:end] {
				if err := s.store.TxInsert(txn, row.ID, row); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to insert staged investments: %w", err)
		}
	}

	s.logger.Debug().Int("count", len(rows)).Msg("Staged investments inserted")
	return nil
}

// GetStagedInvestments returns up to limit staged rows in insertion order.
func (s *Store) GetStagedInvestments(ctx context.Context, limit int) ([]*models.StagedInvestment, error) {
	var rows []*models.StagedInvestment
	query := badgerhold.Where(badgerhold.Key).Ge(uint64(0))
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.store.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to fetch staged investments: %w", err)
	}
	return rows, nil
}

// DeleteStagedInvestments removes the given staged rows.
func (s *Store) DeleteStagedInvestments(ctx context.Context, ids []uint64) error {
	for start := 0; start < len(ids); start += txnChunk {
		end := start + txnChunk
		if end > len(ids) {
			end = len(ids)
		}
		err := s.store.Badger().Update(func(txn *badger.Txn) error {
			for _, id := range ids[start:end] {
				if err := s.store.TxDelete(txn, id, models.StagedInvestment{}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to delete staged investments: %w", err)
		}
	}
	return nil
}
