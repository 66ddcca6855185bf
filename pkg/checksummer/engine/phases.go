package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/checksummer/pkg/checksummer/hasher"
	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/scanner"
	"github.com/jamesainslie/checksummer/pkg/checksummer/store"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// Collect walks the root and tracks every regular file not yet in the
// inventory. Records for paths no longer on disk are left alone; Stat
// detects them.
func (s *Session) Collect(ctx context.Context) (*Result, error) {
	res, err := s.collect(ctx)
	s.record(journal.OpCollect, res, err)
	return res, err
}

// Stat refreshes size and mtime of every record. Records whose file cannot
// be stated, or is no longer a regular file, are marked missing with their
// other fields untouched.
func (s *Session) Stat(ctx context.Context) (*Result, error) {
	res, err := s.stat(ctx)
	s.record(journal.OpStat, res, err)
	return res, err
}

// Checksum hashes every present record that has no digest. Records that
// cannot be read are marked missing.
func (s *Session) Checksum(ctx context.Context) (*Result, error) {
	res, err := s.checksum(ctx)
	s.record(journal.OpChecksum, res, err)
	return res, err
}

// Verify runs Collect, Stat and Checksum, then re-hashes every present record
// and compares the digest with the stored one. A mismatch is flagged and the
// stored digest is kept; records that cannot be read are marked missing.
func (s *Session) Verify(ctx context.Context) (*VerifyResult, error) {
	start := time.Now()
	vr := &VerifyResult{}

	err := s.verifyAll(ctx, vr)
	vr.Elapsed = time.Since(start)

	s.record(journal.OpVerify, mergeVerify(vr), err)
	return vr, err
}

func (s *Session) verifyAll(ctx context.Context, vr *VerifyResult) error {
	var err error
	if vr.Collect, err = s.collect(ctx); err != nil {
		return err
	}
	if vr.Stat, err = s.stat(ctx); err != nil {
		return err
	}
	if vr.Checksum, err = s.checksum(ctx); err != nil {
		return err
	}
	vr.Verify, err = s.verify(ctx)
	return err
}

func (s *Session) collect(ctx context.Context) (res *Result, err error) {
	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	sc, err := scanner.New(scanner.Options{
		Root:       s.root,
		Exclude:    s.exclude,
		SkipPaths:  s.store.SidecarPaths(),
		Workers:    s.workers,
		OnProgress: s.onProgress,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res = &Result{Phase: PhaseCollect}
	batch := s.store.NewBatch(s.batchSize)
	defer closeBatch(batch, &err)

	scan, err := sc.Scan(ctx, func(rel string) error {
		inserted, err := batch.UpsertNewPath(ctx, rel)
		if err != nil {
			return err
		}
		res.Processed++
		if inserted {
			res.Added++
		}
		return nil
	})
	if scan != nil {
		res.ScanErrors = len(scan.Errors)
	}
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	s.logger.Info("collect finished", "root", s.root, "files", res.Processed, "added", res.Added,
		"scan_errors", res.ScanErrors, "elapsed", res.Elapsed)
	return res, nil
}

func (s *Session) stat(ctx context.Context) (res *Result, err error) {
	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	start := time.Now()
	res = &Result{Phase: PhaseStat}
	batch := s.store.NewBatch(s.batchSize)
	defer closeBatch(batch, &err)

	err = s.eachRecord(ctx, store.SelectAll, batch, func(rec types.FileRecord) error {
		res.Processed++
		info, statErr := os.Stat(s.abs(rec.Path))
		if statErr != nil || !info.Mode().IsRegular() {
			s.logger.Debug("file missing", "path", rec.Path, "error", statErr)
			res.Missing++
			return batch.RecordMissing(ctx, rec.ID)
		}
		res.Present++
		return batch.RecordStat(ctx, rec.ID, info.Size(), info.ModTime().Unix())
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	s.logger.Info("stat finished", "records", res.Processed, "present", res.Present,
		"missing", res.Missing, "elapsed", res.Elapsed)
	return res, nil
}

func (s *Session) checksum(ctx context.Context) (res *Result, err error) {
	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	remaining, remainingBytes, err := s.store.CountSelection(ctx, store.SelectNeedingChecksum)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res = &Result{Phase: PhaseChecksum}
	batch := s.store.NewBatch(s.batchSize)
	defer closeBatch(batch, &err)

	err = s.eachRecord(ctx, store.SelectNeedingChecksum, batch, func(rec types.FileRecord) error {
		s.progress(types.Progress{
			Phase:          PhaseChecksum,
			Done:           res.Processed,
			Remaining:      remaining,
			RemainingBytes: remainingBytes,
			CurrentPath:    rec.Path,
		})
		res.Processed++
		remaining--
		remainingBytes -= rec.SizeOrZero()

		digest, hashErr := s.hasher.Hash(s.abs(rec.Path))
		if hashErr != nil {
			if !isReadError(hashErr) {
				return hashErr
			}
			s.logger.Debug("unreadable file marked missing", "path", rec.Path, "error", hashErr)
			res.Demoted++
			return batch.RecordMissing(ctx, rec.ID)
		}
		res.Hashed++
		res.HashedBytes += rec.SizeOrZero()
		return batch.RecordChecksum(ctx, rec.ID, digest)
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	s.logger.Info("checksum finished", "hashed", res.Hashed, "bytes", res.HashedBytes,
		"demoted", res.Demoted, "elapsed", res.Elapsed)
	return res, nil
}

// verify resets the verification flags and re-hashes every present record
// with a stored digest. It runs even for digests computed moments earlier by
// the checksum phase: the second read is the integrity check.
func (s *Session) verify(ctx context.Context) (res *Result, err error) {
	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	if _, err := s.store.ResetVerificationFlags(ctx); err != nil {
		return nil, err
	}
	remaining, remainingBytes, err := s.store.CountSelection(ctx, store.SelectNeedingVerification)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res = &Result{Phase: PhaseVerify}
	batch := s.store.NewBatch(s.batchSize)
	defer closeBatch(batch, &err)

	err = s.eachRecord(ctx, store.SelectNeedingVerification, batch, func(rec types.FileRecord) error {
		s.progress(types.Progress{
			Phase:          PhaseVerify,
			Done:           res.Processed,
			Remaining:      remaining,
			RemainingBytes: remainingBytes,
			CurrentPath:    rec.Path,
		})
		res.Processed++
		remaining--
		remainingBytes -= rec.SizeOrZero()

		digest, hashErr := s.hasher.Hash(s.abs(rec.Path))
		if hashErr != nil {
			if !isReadError(hashErr) {
				return hashErr
			}
			s.logger.Debug("unreadable file marked missing", "path", rec.Path, "error", hashErr)
			res.Demoted++
			return batch.RecordMissing(ctx, rec.ID)
		}

		if digest == rec.Checksum {
			res.Matches++
			return batch.RecordVerified(ctx, rec.ID, true)
		}

		s.logger.Warn("checksum mismatch", "path", rec.Path, "stored", rec.Checksum, "actual", digest)
		res.Mismatches++
		res.Mismatched = append(res.Mismatched, rec)
		return batch.RecordVerified(ctx, rec.ID, false)
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	s.logger.Info("verify finished", "records", res.Processed, "matches", res.Matches,
		"mismatches", res.Mismatches, "demoted", res.Demoted, "elapsed", res.Elapsed)
	return res, nil
}

// eachRecord calls fn for every record of sel. Records are read a page at a
// time and the batch is flushed after each page, so the single store
// connection is free for the next read. fn may change whether a record
// belongs to sel.
func (s *Session) eachRecord(ctx context.Context, sel store.Selection, batch *store.Batch, fn func(types.FileRecord) error) error {
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.store.Page(ctx, sel, after, s.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		for _, rec := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
			after = rec.ID
		}

		if err := batch.Flush(); err != nil {
			return err
		}
	}
}

func (s *Session) abs(rel string) string {
	return filepath.Join(s.root, rel)
}

func isReadError(err error) bool {
	var readErr *hasher.ReadError
	return errors.As(err, &readErr)
}

// closeBatch commits what the phase wrote before it returned, including
// after an error or cancellation.
func closeBatch(batch *store.Batch, err *error) {
	if cerr := batch.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
