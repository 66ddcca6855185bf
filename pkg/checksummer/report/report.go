// Package report builds read-only views of the inventory: path search,
// size and recency rankings, duplicate groups, and the missing and changed
// listings. Each report produces an output.Result ready for formatting.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
	"github.com/jamesainslie/checksummer/pkg/checksummer/output"
	"github.com/jamesainslie/checksummer/pkg/checksummer/store"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

var (
	// ErrUnknownKind is returned for a report name that does not exist.
	ErrUnknownKind = errors.New("unknown report")

	// ErrEmptyTerm is returned when a search has nothing to search for.
	ErrEmptyTerm = errors.New("search term cannot be empty")
)

// Kind names a report.
type Kind string

// Report kinds.
const (
	KindSearch     Kind = "search"
	KindSize       Kind = "size"
	KindRecent     Kind = "recent"
	KindDuplicates Kind = "duplicates"
	KindMissing    Kind = "missing"
	KindMismatched Kind = "mismatched"
)

var titles = map[Kind]string{
	KindSearch:     "Search",
	KindSize:       "Largest files",
	KindRecent:     "Recently modified",
	KindDuplicates: "Duplicate files",
	KindMissing:    "Deleted files",
	KindMismatched: "Changed files",
}

// Kinds returns every report kind in menu order.
func Kinds() []Kind {
	return []Kind{KindSearch, KindSize, KindRecent, KindDuplicates, KindMissing, KindMismatched}
}

// ParseKind converts a report name to a Kind. "deleted" and "changed" are
// accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "deleted":
		return KindMissing, nil
	case "changed":
		return KindMismatched, nil
	default:
		if _, ok := titles[k]; ok {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Source is the read side of the inventory the reports query.
type Source interface {
	SearchByPathSubstring(ctx context.Context, term string, limit int) ([]types.FileRecord, error)
	OrderBySizeDesc(ctx context.Context, limit int) ([]types.FileRecord, error)
	OrderByMtimeDesc(ctx context.Context, limit int) ([]types.FileRecord, error)
	GroupDuplicateChecksums(ctx context.Context, limit int) ([]store.DuplicateGroup, error)
	ListMissing(ctx context.Context, limit int) ([]types.FileRecord, error)
	ListMismatched(ctx context.Context, limit int) ([]types.FileRecord, error)

	CountSearch(ctx context.Context, term string) (int64, error)
	CountSized(ctx context.Context) (int64, error)
	CountRecent(ctx context.Context) (int64, error)
	CountMissing(ctx context.Context) (int64, error)
	CountMismatched(ctx context.Context) (int64, error)

	Summary(ctx context.Context) (types.Summary, error)
}

var _ Source = (*store.Store)(nil)

// Options narrows a report.
type Options struct {
	// Term is the path substring for search.
	Term string

	// Limit caps the rows (or duplicate groups) returned; zero means all.
	Limit int

	// Match is a glob the relative path must match, with '/' as separator.
	Match string

	// MinSize drops rows smaller than this many bytes, and rows of unknown size.
	MinSize int64

	// Summary attaches inventory totals to the result.
	Summary bool
}

// filtered reports whether rows are dropped after the query, in which case
// the limit is applied in memory.
func (o Options) filtered() bool {
	return o.Match != "" || o.MinSize > 0
}

// Reporter runs reports against a Source.
type Reporter struct {
	src    Source
	root   string
	logger *logging.Logger
}

// New creates a Reporter. root is used to build absolute paths in rows.
func New(src Source, root string) *Reporter {
	return &Reporter{
		src:    src,
		root:   root,
		logger: logging.Get("report"),
	}
}

// Run executes the report of the given kind.
func (r *Reporter) Run(ctx context.Context, kind Kind, opts Options) (*output.Result, error) {
	matcher, err := compileMatch(opts.Match)
	if err != nil {
		return nil, err
	}

	queryLimit := opts.Limit
	if opts.filtered() {
		queryLimit = 0
	}
	term := strings.TrimSpace(opts.Term)

	var rows []output.Row
	total := 0
	switch kind {
	case KindDuplicates:
		rows, total, err = r.duplicates(ctx, opts, matcher)
	case KindSearch:
		if term == "" {
			return nil, ErrEmptyTerm
		}
		rows, err = r.records(r.src.SearchByPathSubstring(ctx, term, queryLimit))
	case KindSize:
		rows, err = r.records(r.src.OrderBySizeDesc(ctx, queryLimit))
	case KindRecent:
		rows, err = r.records(r.src.OrderByMtimeDesc(ctx, queryLimit))
	case KindMissing:
		rows, err = r.records(r.src.ListMissing(ctx, queryLimit))
	case KindMismatched:
		rows, err = r.records(r.src.ListMismatched(ctx, queryLimit))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s report: %w", kind, err)
	}

	if kind != KindDuplicates {
		rows = filterRows(rows, opts, matcher)
		total = len(rows)
		switch {
		case opts.filtered() && opts.Limit > 0 && len(rows) > opts.Limit:
			rows = rows[:opts.Limit]
		case !opts.filtered() && opts.Limit > 0 && len(rows) == opts.Limit:
			// The limit was applied by the query; count what it cut off.
			if total, err = r.count(ctx, kind, term); err != nil {
				return nil, fmt.Errorf("%s report: %w", kind, err)
			}
		}
	}

	res := &output.Result{
		Title:     titles[kind],
		Kind:      string(kind),
		Root:      r.root,
		Rows:      rows,
		TotalRows: total,
	}
	if kind == KindSearch {
		res.Title = fmt.Sprintf("Search: %q", term)
	}
	if opts.Summary {
		sum, err := r.src.Summary(ctx)
		if err != nil {
			return nil, err
		}
		res.Summary = &sum
	}

	r.logger.Debug("report built", "kind", kind, "rows", len(rows), "total", total)
	return res, nil
}

func (r *Reporter) records(recs []types.FileRecord, err error) ([]output.Row, error) {
	if err != nil {
		return nil, err
	}
	rows := make([]output.Row, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, output.NewRow(r.root, rec))
	}
	return rows, nil
}

func (r *Reporter) count(ctx context.Context, kind Kind, term string) (int, error) {
	var (
		n   int64
		err error
	)
	switch kind {
	case KindSearch:
		n, err = r.src.CountSearch(ctx, term)
	case KindSize:
		n, err = r.src.CountSized(ctx)
	case KindRecent:
		n, err = r.src.CountRecent(ctx)
	case KindMissing:
		n, err = r.src.CountMissing(ctx)
	case KindMismatched:
		n, err = r.src.CountMismatched(ctx)
	}
	return int(n), err
}

// duplicates flattens duplicate groups into rows numbered by group. A group
// is kept whole when any member passes the filters. The limit counts groups;
// total counts the rows of every kept group.
func (r *Reporter) duplicates(ctx context.Context, opts Options, matcher glob.Glob) ([]output.Row, int, error) {
	groups, err := r.src.GroupDuplicateChecksums(ctx, 0)
	if err != nil {
		return nil, 0, err
	}

	var rows []output.Row
	kept, total := 0, 0
	for _, g := range groups {
		members := make([]output.Row, 0, len(g.Records))
		for _, rec := range g.Records {
			members = append(members, output.NewRow(r.root, rec))
		}
		if len(filterRows(members, opts, matcher)) == 0 {
			continue
		}
		total += len(members)
		if opts.Limit > 0 && kept == opts.Limit {
			continue
		}
		kept++
		for i := range members {
			members[i].Group = kept
		}
		rows = append(rows, members...)
	}
	return rows, total, nil
}

func compileMatch(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid match pattern %q: %w", pattern, err)
	}
	return g, nil
}

func filterRows(rows []output.Row, opts Options, matcher glob.Glob) []output.Row {
	if matcher == nil && opts.MinSize <= 0 {
		return rows
	}
	kept := make([]output.Row, 0, len(rows))
	for _, row := range rows {
		if matcher != nil && !matcher.Match(row.Path) {
			continue
		}
		if opts.MinSize > 0 && (!row.SizeKnown || row.Size < opts.MinSize) {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}
