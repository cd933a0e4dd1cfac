package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/fundtrace/fundtrace/internal/models"
)

// upsertChunked writes rows in transaction-sized chunks via the given writer.
func (s *Store) upsertChunked(n int, write func(txn *badger.Txn, i int) error) error {
	for start := 0; start < n; start += txnChunk {
		end := start + txnChunk
		if end > n {
			end = n
		}
		err := s.store.Badger().Update(func(txn *badger.Txn) error {
			for i := start; i < end; i++ {
				if err := write(txn, i); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// BulkUpsertProjects writes canonical projects keyed by (source, url).
// Replaying a transform run rewrites identical rows, keeping the op idempotent.
func (s *Store) BulkUpsertProjects(ctx context.Context, rows []*models.Project) error {
	err := s.upsertChunked(len(rows), func(txn *badger.Txn, i int) error {
		return s.store.TxUpsert(txn, rows[i].Key, rows[i])
	})
	if err != nil {
		return fmt.Errorf("failed to upsert projects: %w", err)
	}
	s.logger.Debug().Int("count", len(rows)).Msg("Projects upserted")
	return nil
}

// BulkInsertProjectCountries writes project/country associations. The key is
// the pair itself, so repeated inserts collapse.
func (s *Store) BulkInsertProjectCountries(ctx context.Context, rows []models.ProjectCountry) error {
	err := s.upsertChunked(len(rows), func(txn *badger.Txn, i int) error {
		key := fmt.Sprintf("%s|%d", rows[i].ProjectKey, rows[i].CountryID)
		return s.store.TxUpsert(txn, key, &rows[i])
	})
	if err != nil {
		return fmt.Errorf("failed to insert project countries: %w", err)
	}
	return nil
}

// BulkInsertProjectSectors writes project/sector associations.
func (s *Store) BulkInsertProjectSectors(ctx context.Context, rows []models.ProjectSector) error {
	err := s.upsertChunked(len(rows), func(txn *badger.Txn, i int) error {
		key := fmt.Sprintf("%s|%d", rows[i].ProjectKey, rows[i].SectorID)
		return s.store.TxUpsert(txn, key, &rows[i])
	})
	if err != nil {
		return fmt.Errorf("failed to insert project sectors: %w", err)
	}
	return nil
}

// BulkUpsertCompanies writes filing companies keyed by CIK.
func (s *Store) BulkUpsertCompanies(ctx context.Context, rows []*models.Company) error {
	err := s.upsertChunked(len(rows), func(txn *badger.Txn, i int) error {
		return s.store.TxUpsert(txn, rows[i].CIK, rows[i])
	})
	if err != nil {
		return fmt.Errorf("failed to upsert companies: %w", err)
	}
	return nil
}

// BulkUpsertForms writes form submissions keyed by (cik, accession).
func (s *Store) BulkUpsertForms(ctx context.Context, rows []*models.FormSubmission) error {
	err := s.upsertChunked(len(rows), func(txn *badger.Txn, i int) error {
		return s.store.TxUpsert(txn, rows[i].Key, rows[i])
	})
	if err != nil {
		return fmt.Errorf("failed to upsert forms: %w", err)
	}
	return nil
}

// BulkUpsertInvestments writes holdings keyed by (form, cusip, manager).
func (s *Store) BulkUpsertInvestments(ctx context.Context, rows []*models.Investment) error {
	err := s.upsertChunked(len(rows), func(txn *badger.Txn, i int) error {
		return s.store.TxUpsert(txn, rows[i].Key, rows[i])
	})
	if err != nil {
		return fmt.Errorf("failed to upsert investments: %w", err)
	}
	s.logger.Debug().Int("count", len(rows)).Msg("Investments upserted")
	return nil
}
