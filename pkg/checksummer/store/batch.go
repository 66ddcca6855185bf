package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Batch groups record writes into transactions of a fixed size. The
// transaction is opened lazily on the first write and committed every size
// writes, on Flush and on Close.
//
// A Batch is not safe for concurrent use.
type Batch struct {
	store   *Store
	size    int
	tx      *sql.Tx
	pending int
	commits int
}

// NewBatch returns a Batch committing every size writes. A non-positive
// size uses DefaultBatchSize.
func (s *Store) NewBatch(size int) *Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batch{store: s, size: size}
}

// Pending returns the number of uncommitted writes.
func (b *Batch) Pending() int {
	return b.pending
}

// Commits returns the number of transactions committed so far.
func (b *Batch) Commits() int {
	return b.commits
}

func (b *Batch) begin(ctx context.Context) error {
	if b.tx != nil {
		return nil
	}
	// The transaction outlives ctx: a cancelled run still commits the work
	// done so far when the caller flushes.
	tx, err := b.store.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	b.tx = tx
	return nil
}

// written counts one write and commits when the batch is full.
func (b *Batch) written() error {
	b.pending++
	if b.pending >= b.size {
		return b.Flush()
	}
	return nil
}

// Flush commits pending writes. It is a no-op when nothing is pending.
func (b *Batch) Flush() error {
	if b.tx == nil {
		return nil
	}
	tx, n := b.tx, b.pending
	b.tx = nil
	b.pending = 0
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch of %d writes: %w", n, err)
	}
	b.commits++
	b.store.logger.Debug("batch committed", "writes", n, "commits", b.commits)
	return nil
}

// Rollback discards pending writes.
func (b *Batch) Rollback() error {
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	b.pending = 0
	return tx.Rollback()
}

// Close commits pending writes.
func (b *Batch) Close() error {
	return b.Flush()
}

// UpsertNewPath tracks path inside the batch. See Store.UpsertNewPath.
func (b *Batch) UpsertNewPath(ctx context.Context, path string) (bool, error) {
	if err := b.begin(ctx); err != nil {
		return false, err
	}
	inserted, err := upsertNewPath(ctx, b.tx, path)
	if err != nil {
		return false, err
	}
	return inserted, b.written()
}

// RecordStat stores a successful stat inside the batch.
func (b *Batch) RecordStat(ctx context.Context, id, size, mtime int64) error {
	if err := b.begin(ctx); err != nil {
		return err
	}
	if err := recordStat(ctx, b.tx, id, size, mtime); err != nil {
		return err
	}
	return b.written()
}

// RecordMissing marks the record missing inside the batch.
func (b *Batch) RecordMissing(ctx context.Context, id int64) error {
	if err := b.begin(ctx); err != nil {
		return err
	}
	if err := recordMissing(ctx, b.tx, id); err != nil {
		return err
	}
	return b.written()
}

// RecordChecksum stores a digest inside the batch.
func (b *Batch) RecordChecksum(ctx context.Context, id int64, digest string) error {
	if err := b.begin(ctx); err != nil {
		return err
	}
	if err := recordChecksum(ctx, b.tx, id, digest); err != nil {
		return err
	}
	return b.written()
}

// RecordVerified stores a verification outcome inside the batch.
func (b *Batch) RecordVerified(ctx context.Context, id int64, matches bool) error {
	if err := b.begin(ctx); err != nil {
		return err
	}
	if err := recordVerified(ctx, b.tx, id, matches); err != nil {
		return err
	}
	return b.written()
}
