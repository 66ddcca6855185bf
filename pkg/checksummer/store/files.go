package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// Selection names a bulk projection of the files table.
type Selection int

// Selections used by the reconciliation phases.
const (
	// SelectAll is every tracked record.
	SelectAll Selection = iota
	// SelectMissingStats is records with no size or mtime stated yet.
	SelectMissingStats
	// SelectNeedingChecksum is present records with no checksum.
	SelectNeedingChecksum
	// SelectNeedingVerification is present records with a checksum and an
	// unknown verification flag.
	SelectNeedingVerification
)

var selectionFilters = map[Selection]string{
	SelectAll:                 "1 = 1",
	SelectMissingStats:        "(size IS NULL OR mtime IS NULL)",
	SelectNeedingChecksum:     "checksum IS NULL AND found = 1",
	SelectNeedingVerification: "found = 1 AND verified IS NULL AND checksum IS NOT NULL",
}

// String returns the string representation of the selection.
func (sel Selection) String() string {
	switch sel {
	case SelectAll:
		return "all"
	case SelectMissingStats:
		return "missing-stats"
	case SelectNeedingChecksum:
		return "needing-checksum"
	case SelectNeedingVerification:
		return "needing-verification"
	default:
		return "unknown"
	}
}

func (sel Selection) filter() (string, error) {
	f, ok := selectionFilters[sel]
	if !ok {
		return "", fmt.Errorf("unknown selection %d", sel)
	}
	return f, nil
}

const recordColumns = "id, path, checksum, size, mtime, found, verified"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (types.FileRecord, error) {
	var (
		rec      types.FileRecord
		checksum sql.NullString
		size     sql.NullInt64
		mtime    sql.NullInt64
		found    sql.NullInt64
		verified sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.Path, &checksum, &size, &mtime, &found, &verified); err != nil {
		return rec, err
	}

	rec.Checksum = checksum.String
	if size.Valid {
		v := size.Int64
		rec.Size = &v
	}
	if mtime.Valid {
		v := mtime.Int64
		rec.MTime = &v
	}
	if found.Valid {
		rec.Found = types.FoundMissing
		if found.Int64 == 1 {
			rec.Found = types.FoundPresent
		}
	}
	if verified.Valid {
		rec.Verified = types.VerifiedMismatches
		if verified.Int64 == 1 {
			rec.Verified = types.VerifiedMatches
		}
	}
	return rec, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...interface{}) ([]types.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Page returns up to limit records of the selection with id greater than
// afterID, ordered by id. Keyset paging lets callers update the returned
// records between pages without skipping or repeating any.
func (s *Store) Page(ctx context.Context, sel Selection, afterID int64, limit int) ([]types.FileRecord, error) {
	filter, err := sel.filter()
	if err != nil {
		return nil, err
	}

	query := "SELECT " + recordColumns + " FROM files WHERE id > ? AND " + filter + " ORDER BY id LIMIT ?"
	records, err := s.queryRecords(ctx, query, afterID, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", sel, err)
	}
	return records, nil
}

// List returns every record of the selection.
func (s *Store) List(ctx context.Context, sel Selection) ([]types.FileRecord, error) {
	return s.Page(ctx, sel, 0, 0)
}

// ListAll returns every tracked record.
func (s *Store) ListAll(ctx context.Context) ([]types.FileRecord, error) {
	return s.List(ctx, SelectAll)
}

// ListMissingStats returns records with no size or mtime yet.
func (s *Store) ListMissingStats(ctx context.Context) ([]types.FileRecord, error) {
	return s.List(ctx, SelectMissingStats)
}

// ListNeedingChecksum returns present records without a checksum.
func (s *Store) ListNeedingChecksum(ctx context.Context) ([]types.FileRecord, error) {
	return s.List(ctx, SelectNeedingChecksum)
}

// ListNeedingVerification returns present records with a checksum and an
// unknown verification flag.
func (s *Store) ListNeedingVerification(ctx context.Context) ([]types.FileRecord, error) {
	return s.List(ctx, SelectNeedingVerification)
}

// CountSelection returns the number of records in the selection and the sum
// of their known sizes.
func (s *Store) CountSelection(ctx context.Context, sel Selection) (count, bytes int64, err error) {
	filter, err := sel.filter()
	if err != nil {
		return 0, 0, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files WHERE "+filter)
	if err := row.Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("counting %s records: %w", sel, err)
	}
	return count, bytes, nil
}

// Get returns the record tracked at path.
func (s *Store) Get(ctx context.Context, path string) (types.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM files WHERE path = ?", path)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return rec, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return rec, fmt.Errorf("loading record %s: %w", path, err)
	}
	return rec, nil
}

// UpsertNewPath tracks path with no other fields set. It reports whether a
// record was created; an already tracked path is a no-op, not an error.
func (s *Store) UpsertNewPath(ctx context.Context, path string) (bool, error) {
	return upsertNewPath(ctx, s.db, path)
}

// RecordStat stores a successful stat and marks the record present.
func (s *Store) RecordStat(ctx context.Context, id, size, mtime int64) error {
	return recordStat(ctx, s.db, id, size, mtime)
}

// RecordMissing marks the record missing, keeping every other field.
func (s *Store) RecordMissing(ctx context.Context, id int64) error {
	return recordMissing(ctx, s.db, id)
}

// RecordChecksum stores the digest for the record.
func (s *Store) RecordChecksum(ctx context.Context, id int64, digest string) error {
	return recordChecksum(ctx, s.db, id, digest)
}

// RecordVerified stores the outcome of a verification.
func (s *Store) RecordVerified(ctx context.Context, id int64, matches bool) error {
	return recordVerified(ctx, s.db, id, matches)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertNewPath(ctx context.Context, ex execer, path string) (bool, error) {
	res, err := ex.ExecContext(ctx, "INSERT INTO files (path) VALUES (?) ON CONFLICT(path) DO NOTHING", path)
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", path, err)
	}
	return n > 0, nil
}

func recordStat(ctx context.Context, ex execer, id, size, mtime int64) error {
	_, err := ex.ExecContext(ctx, "UPDATE files SET size = ?, mtime = ?, found = 1 WHERE id = ?", size, mtime, id)
	if err != nil {
		return fmt.Errorf("recording stat for record %d: %w", id, err)
	}
	return nil
}

func recordMissing(ctx context.Context, ex execer, id int64) error {
	if _, err := ex.ExecContext(ctx, "UPDATE files SET found = 0 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking record %d missing: %w", id, err)
	}
	return nil
}

func recordChecksum(ctx context.Context, ex execer, id int64, digest string) error {
	if _, err := ex.ExecContext(ctx, "UPDATE files SET checksum = ? WHERE id = ?", nullable(digest), id); err != nil {
		return fmt.Errorf("recording checksum for record %d: %w", id, err)
	}
	return nil
}

func recordVerified(ctx context.Context, ex execer, id int64, matches bool) error {
	flag := 0
	if matches {
		flag = 1
	}
	if _, err := ex.ExecContext(ctx, "UPDATE files SET verified = ? WHERE id = ?", flag, id); err != nil {
		return fmt.Errorf("recording verification for record %d: %w", id, err)
	}
	return nil
}

// ResetVerificationFlags sets verified to unknown for every present record
// and returns how many were reset.
func (s *Store) ResetVerificationFlags(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE files SET verified = NULL WHERE found = 1")
	if err != nil {
		return 0, fmt.Errorf("resetting verification flags: %w", err)
	}
	return res.RowsAffected()
}

// DeleteWhereMissing removes every record marked missing and returns the
// removed records.
func (s *Store) DeleteWhereMissing(ctx context.Context) ([]types.FileRecord, error) {
	return s.pruneWhere(ctx, "found = 0", "DELETE FROM files WHERE found = 0")
}

// ClearChecksumWhereMismatched resets checksum, verified and size on every
// record that failed verification, returning the records as they were
// before the reset.
func (s *Store) ClearChecksumWhereMismatched(ctx context.Context) ([]types.FileRecord, error) {
	return s.pruneWhere(ctx, "verified = 0",
		"UPDATE files SET checksum = NULL, verified = NULL, size = NULL WHERE verified = 0")
}

// pruneWhere snapshots the matching records and applies stmt in one transaction.
func (s *Store) pruneWhere(ctx context.Context, filter, stmt string) ([]types.FileRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, "SELECT "+recordColumns+" FROM files WHERE "+filter+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("selecting records to prune: %w", err)
	}
	var affected []types.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("selecting records to prune: %w", err)
		}
		affected = append(affected, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("selecting records to prune: %w", err)
	}

	res, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("pruning %s: %w", strings.TrimSpace(filter), err)
	}
	if n, err := res.RowsAffected(); err == nil && n != int64(len(affected)) {
		return nil, fmt.Errorf("pruning %s: expected %d rows, changed %d", filter, len(affected), n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit prune: %w", err)
	}
	return affected, nil
}

// ClearFiles removes every tracked record and returns how many were removed.
// Options are kept.
func (s *Store) ClearFiles(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM files")
	if err != nil {
		return 0, fmt.Errorf("clearing inventory: %w", err)
	}
	return res.RowsAffected()
}
