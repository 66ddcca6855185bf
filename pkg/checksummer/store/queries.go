package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// DuplicateGroup is a set of records sharing one checksum.
type DuplicateGroup struct {
	Checksum  string
	Count     int
	TotalSize int64
	Records   []types.FileRecord
}

// Sample returns the first path of the group in path order.
func (g DuplicateGroup) Sample() string {
	if len(g.Records) == 0 {
		return ""
	}
	return g.Records[0].Path
}

// Report predicates, shared by each listing and its count.
const (
	searchWhere     = `path LIKE ? ESCAPE '\'`
	sizedWhere      = "size IS NOT NULL"
	recentWhere     = "found = 1 AND mtime IS NOT NULL"
	missingWhere    = "found = 0"
	mismatchedWhere = "verified = 0"
)

// escapeLike escapes LIKE wildcards so term matches literally.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// SearchByPathSubstring returns records whose path contains term, largest
// first. Records without a size sort last.
func (s *Store) SearchByPathSubstring(ctx context.Context, term string, limit int) ([]types.FileRecord, error) {
	query := "SELECT " + recordColumns + " FROM files WHERE " + searchWhere +
		" ORDER BY size DESC NULLS LAST, path LIMIT ?"
	records, err := s.queryRecords(ctx, query, "%"+escapeLike(term)+"%", noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", term, err)
	}
	return records, nil
}

// OrderBySizeDesc returns records with a known size, largest first.
func (s *Store) OrderBySizeDesc(ctx context.Context, limit int) ([]types.FileRecord, error) {
	query := "SELECT " + recordColumns + " FROM files WHERE " + sizedWhere + " ORDER BY size DESC, path LIMIT ?"
	records, err := s.queryRecords(ctx, query, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing largest files: %w", err)
	}
	return records, nil
}

// OrderByMtimeDesc returns present records, most recently modified first.
func (s *Store) OrderByMtimeDesc(ctx context.Context, limit int) ([]types.FileRecord, error) {
	query := "SELECT " + recordColumns + " FROM files WHERE " + recentWhere + " ORDER BY mtime DESC, path LIMIT ?"
	records, err := s.queryRecords(ctx, query, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing recent files: %w", err)
	}
	return records, nil
}

// ListMismatched returns records that failed verification, largest first.
func (s *Store) ListMismatched(ctx context.Context, limit int) ([]types.FileRecord, error) {
	query := "SELECT " + recordColumns + " FROM files WHERE " + mismatchedWhere + " ORDER BY size DESC NULLS LAST, path LIMIT ?"
	records, err := s.queryRecords(ctx, query, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing mismatched files: %w", err)
	}
	return records, nil
}

// ListMissing returns records marked missing, largest first.
func (s *Store) ListMissing(ctx context.Context, limit int) ([]types.FileRecord, error) {
	query := "SELECT " + recordColumns + " FROM files WHERE " + missingWhere + " ORDER BY size DESC NULLS LAST, path LIMIT ?"
	records, err := s.queryRecords(ctx, query, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing missing files: %w", err)
	}
	return records, nil
}

// GroupDuplicateChecksums returns checksums shared by more than one record,
// largest total size first. Records without a checksum never group.
// A non-positive limit returns every group.
func (s *Store) GroupDuplicateChecksums(ctx context.Context, limit int) ([]DuplicateGroup, error) {
	query := `SELECT f.id, f.path, f.checksum, f.size, f.mtime, f.found, f.verified
        FROM files f
        JOIN (
            SELECT checksum, COALESCE(SUM(size), 0) AS total
            FROM files
            WHERE checksum IS NOT NULL
            GROUP BY checksum
            HAVING COUNT(*) > 1
        ) d ON f.checksum = d.checksum
        ORDER BY d.total DESC, f.checksum, f.path`

	records, err := s.queryRecords(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("grouping duplicates: %w", err)
	}

	var groups []DuplicateGroup
	for _, rec := range records {
		if n := len(groups); n == 0 || groups[n-1].Checksum != rec.Checksum {
			if limit > 0 && n == limit {
				break
			}
			groups = append(groups, DuplicateGroup{Checksum: rec.Checksum})
		}
		g := &groups[len(groups)-1]
		g.Count++
		g.TotalSize += rec.SizeOrZero()
		g.Records = append(g.Records, rec)
	}
	return groups, nil
}

func (s *Store) count(ctx context.Context, what, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", what, err)
	}
	return n, nil
}

// Count returns the number of tracked records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.count(ctx, "records", "SELECT COUNT(*) FROM files")
}

// CountMissing returns the number of records marked missing.
func (s *Store) CountMissing(ctx context.Context) (int64, error) {
	return s.count(ctx, "missing records", "SELECT COUNT(*) FROM files WHERE "+missingWhere)
}

// CountMismatched returns the number of records that failed verification.
func (s *Store) CountMismatched(ctx context.Context) (int64, error) {
	return s.count(ctx, "mismatched records", "SELECT COUNT(*) FROM files WHERE "+mismatchedWhere)
}

// CountSearch returns the number of records SearchByPathSubstring matches
// without a limit.
func (s *Store) CountSearch(ctx context.Context, term string) (int64, error) {
	return s.count(ctx, "search matches", "SELECT COUNT(*) FROM files WHERE "+searchWhere, "%"+escapeLike(term)+"%")
}

// CountSized returns the number of records with a known size.
func (s *Store) CountSized(ctx context.Context) (int64, error) {
	return s.count(ctx, "sized records", "SELECT COUNT(*) FROM files WHERE "+sizedWhere)
}

// CountRecent returns the number of records OrderByMtimeDesc can list.
func (s *Store) CountRecent(ctx context.Context) (int64, error) {
	return s.count(ctx, "recent records", "SELECT COUNT(*) FROM files WHERE "+recentWhere)
}

// TotalTrackedBytes returns the sum of every known size.
func (s *Store) TotalTrackedBytes(ctx context.Context) (int64, error) {
	return s.count(ctx, "tracked bytes", "SELECT COALESCE(SUM(size), 0) FROM files")
}

// Summary returns aggregate counts over the whole inventory.
func (s *Store) Summary(ctx context.Context) (types.Summary, error) {
	var (
		sum   types.Summary
		total sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx, `SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN found = 1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN found = 0 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN size IS NULL OR mtime IS NULL THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN found = 1 AND checksum IS NULL THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN verified = 1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN verified = 0 THEN 1 ELSE 0 END), 0),
            SUM(size)
        FROM files`)
	err := row.Scan(&sum.Total, &sum.Present, &sum.Missing, &sum.Unstated, &sum.Unhashed,
		&sum.Matches, &sum.Mismatches, &total)
	if err != nil {
		return sum, fmt.Errorf("summarising inventory: %w", err)
	}
	sum.TotalBytes = total.Int64
	return sum, nil
}
