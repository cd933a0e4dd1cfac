// Package badger implements the storage gateway over badgerhold.
// Uniqueness invariants are carried by deterministic composite keys: task ids
// are (job, source, workflow-type, url), canonical project keys are
// (source, url), so conflict-ignore and upsert fall out of plain key writes.
package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// Store implements interfaces.Store over a badgerhold store.
type Store struct {
	store  *badgerhold.Store
	logger arbor.ILogger

	jobSeq    *badger.Sequence
	stagedSeq *badger.Sequence
	refSeq    *badger.Sequence
}

// NewStore creates the storage gateway over an open connection.
func NewStore(db *BadgerDB, logger arbor.ILogger) (*Store, error) {
	jobSeq, err := db.Store().Badger().GetSequence([]byte("seq:jobs"), 10)
	if err != nil {
		return nil, fmt.Errorf("failed to open job sequence: %w", err)
	}
	stagedSeq, err := db.Store().Badger().GetSequence([]byte("seq:staged"), 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to open staged sequence: %w", err)
	}
	refSeq, err := db.Store().Badger().GetSequence([]byte("seq:reference"), 100)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference sequence: %w", err)
	}

	return &Store{
		store:     db.Store(),
		logger:    logger,
		jobSeq:    jobSeq,
		stagedSeq: stagedSeq,
		refSeq:    refSeq,
	}, nil
}

// Close releases the sequences. The underlying connection is owned by BadgerDB.
func (s *Store) Close() error {
	for _, seq := range []*badger.Sequence{s.jobSeq, s.stagedSeq, s.refSeq} {
		if seq != nil {
			if err := seq.Release(); err != nil {
				return err
			}
		}
	}
	return nil
}

// nextID returns the next value of a sequence, 1-based.
func nextID(seq *badger.Sequence) (uint64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}
