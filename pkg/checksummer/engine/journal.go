package engine

import (
	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// record journals a run. Journal failures are logged and never fail the run.
func (s *Session) record(op journal.Operation, res *Result, runErr error) {
	if s.recorder == nil || res == nil {
		return
	}

	entry := &journal.Entry{
		Operation: op,
		Store:     s.store.Path(),
		Root:      s.root,
		Duration:  res.Elapsed,
		Summary: journal.Summary{
			Processed:   res.Processed,
			Added:       res.Added,
			Present:     res.Present,
			Missing:     res.Missing + res.Demoted,
			Hashed:      res.Hashed,
			HashedBytes: res.HashedBytes,
			Matches:     res.Matches,
			Mismatches:  res.Mismatches,
			Pruned:      res.Pruned,
		},
		Files: journalFiles(res.Records, res.Mismatched),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	if err := s.recorder.Record(entry); err != nil {
		s.logger.Warn("journal write failed", "operation", op, "error", err)
	}
}

func journalFiles(groups ...[]types.FileRecord) []journal.FileRecord {
	var files []journal.FileRecord
	for _, records := range groups {
		for _, rec := range records {
			files = append(files, journal.FileRecord{
				Path:     rec.Path,
				Size:     rec.SizeOrZero(),
				Checksum: rec.Checksum,
			})
		}
	}
	return files
}

// mergeVerify folds the steps of a verify run into one result for the journal.
func mergeVerify(vr *VerifyResult) *Result {
	res := &Result{Phase: PhaseVerify, Elapsed: vr.Elapsed}
	for _, step := range []*Result{vr.Collect, vr.Stat, vr.Checksum, vr.Verify} {
		if step == nil {
			continue
		}
		res.Added += step.Added
		res.Present += step.Present
		res.Missing += step.Missing
		res.Hashed += step.Hashed
		res.HashedBytes += step.HashedBytes
		res.Demoted += step.Demoted
		res.ScanErrors += step.ScanErrors
	}
	if vr.Verify != nil {
		res.Processed = vr.Verify.Processed
		res.Matches = vr.Verify.Matches
		res.Mismatches = vr.Verify.Mismatches
		res.Mismatched = vr.Verify.Mismatched
	}
	return res
}
