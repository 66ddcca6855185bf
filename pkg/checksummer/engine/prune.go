package engine

import (
	"context"
	"time"

	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
)

// PruneDeleted irreversibly removes every record marked missing.
func (s *Session) PruneDeleted(ctx context.Context) (*Result, error) {
	start := time.Now()
	removed, err := s.store.DeleteWhereMissing(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Phase:     PhasePruneDeleted,
		Processed: int64(len(removed)),
		Pruned:    int64(len(removed)),
		Records:   removed,
		Elapsed:   time.Since(start),
	}
	s.logger.Info("pruned deleted records", "count", res.Pruned)
	s.record(journal.OpPruneDeleted, res, nil)
	return res, nil
}

// PruneChanged resets every mismatched record to the state of a newly
// collected one: checksum, verification flag and size are cleared, so the
// next Stat and Checksum adopt the current content as the new baseline.
func (s *Session) PruneChanged(ctx context.Context) (*Result, error) {
	start := time.Now()
	reset, err := s.store.ClearChecksumWhereMismatched(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Phase:     PhasePruneChanged,
		Processed: int64(len(reset)),
		Pruned:    int64(len(reset)),
		Records:   reset,
		Elapsed:   time.Since(start),
	}
	s.logger.Info("reset changed records", "count", res.Pruned)
	s.record(journal.OpPruneChanged, res, nil)
	return res, nil
}
