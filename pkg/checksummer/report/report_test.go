package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/checksummer/pkg/checksummer/store"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

func int64p(v int64) *int64 { return &v }

func rec(path string, size int64, checksum string) types.FileRecord {
	return types.FileRecord{Path: path, Size: int64p(size), Checksum: checksum, Found: types.FoundPresent}
}

// fakeSource returns canned records and remembers the last limit it saw.
type fakeSource struct {
	records   []types.FileRecord
	groups    []store.DuplicateGroup
	summary   types.Summary
	err       error
	lastLimit int
	calls     []string
}

func (f *fakeSource) list(name string, limit int) ([]types.FileRecord, error) {
	f.calls = append(f.calls, name)
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := f.records
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]types.FileRecord(nil), out...), nil
}

func (f *fakeSource) SearchByPathSubstring(_ context.Context, _ string, limit int) ([]types.FileRecord, error) {
	return f.list("search", limit)
}

func (f *fakeSource) OrderBySizeDesc(_ context.Context, limit int) ([]types.FileRecord, error) {
	return f.list("size", limit)
}

func (f *fakeSource) OrderByMtimeDesc(_ context.Context, limit int) ([]types.FileRecord, error) {
	return f.list("recent", limit)
}

func (f *fakeSource) ListMissing(_ context.Context, limit int) ([]types.FileRecord, error) {
	return f.list("missing", limit)
}

func (f *fakeSource) ListMismatched(_ context.Context, limit int) ([]types.FileRecord, error) {
	return f.list("mismatched", limit)
}

func (f *fakeSource) GroupDuplicateChecksums(_ context.Context, limit int) ([]store.DuplicateGroup, error) {
	f.calls = append(f.calls, "duplicates")
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.groups) > limit {
		return f.groups[:limit], nil
	}
	return f.groups, nil
}

func (f *fakeSource) count(name string) (int64, error) {
	f.calls = append(f.calls, "count "+name)
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.records)), nil
}

func (f *fakeSource) CountSearch(context.Context, string) (int64, error) { return f.count("search") }

func (f *fakeSource) CountSized(context.Context) (int64, error) { return f.count("size") }

func (f *fakeSource) CountRecent(context.Context) (int64, error) { return f.count("recent") }

func (f *fakeSource) CountMissing(context.Context) (int64, error) { return f.count("missing") }

func (f *fakeSource) CountMismatched(context.Context) (int64, error) { return f.count("mismatched") }

func (f *fakeSource) Summary(context.Context) (types.Summary, error) {
	return f.summary, nil
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"search", KindSearch},
		{" Size ", KindSize},
		{"recent", KindRecent},
		{"duplicates", KindDuplicates},
		{"missing", KindMissing},
		{"deleted", KindMissing},
		{"changed", KindMismatched},
		{"mismatched", KindMismatched},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseKind("biggest")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Len(t, Kinds(), 6)
}

func TestRunDispatchesByKind(t *testing.T) {
	src := &fakeSource{records: []types.FileRecord{rec("a.txt", 10, "x")}}
	r := New(src, "/data")
	ctx := context.Background()

	for _, kind := range []Kind{KindSize, KindRecent, KindMissing, KindMismatched} {
		res, err := r.Run(ctx, kind, Options{Limit: 5})
		require.NoError(t, err, kind)
		assert.Equal(t, string(kind), res.Kind)
		assert.Equal(t, titles[kind], res.Title)
		assert.Equal(t, "/data", res.Root)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "/data/a.txt", res.Rows[0].AbsPath)
		assert.Equal(t, 5, src.lastLimit)
	}
	assert.Equal(t, []string{"size", "recent", "missing", "mismatched"}, src.calls)

	_, err := r.Run(ctx, Kind("bogus"), Options{})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRunSearch(t *testing.T) {
	src := &fakeSource{records: []types.FileRecord{rec("photos/cat.jpg", 10, "x")}}
	r := New(src, "/data")

	res, err := r.Run(context.Background(), KindSearch, Options{Term: " cat "})
	require.NoError(t, err)
	assert.Equal(t, `Search: "cat"`, res.Title)
	assert.Len(t, res.Rows, 1)

	_, err = r.Run(context.Background(), KindSearch, Options{Term: "  "})
	assert.ErrorIs(t, err, ErrEmptyTerm)
}

func TestRunMatchAppliesLimitAfterFiltering(t *testing.T) {
	src := &fakeSource{records: []types.FileRecord{
		rec("video/a.mp4", 300, "1"),
		rec("docs/b.txt", 200, "2"),
		rec("video/c.mp4", 100, "3"),
		rec("video/deep/d.mp4", 50, "4"),
	}}
	r := New(src, "/data")

	res, err := r.Run(context.Background(), KindSize, Options{Match: "video/*.mp4", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, src.lastLimit, "filtered reports query everything")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "video/a.mp4", res.Rows[0].Path)
	assert.Equal(t, 2, res.TotalRows)

	res, err = r.Run(context.Background(), KindSize, Options{Match: "video/**"})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)

	_, err = r.Run(context.Background(), KindSize, Options{Match: "[unclosed"})
	assert.Error(t, err)
}

func TestRunMinSize(t *testing.T) {
	src := &fakeSource{records: []types.FileRecord{
		rec("big", 300, "1"),
		rec("small", 10, "2"),
		{Path: "unknown"},
	}}
	res, err := New(src, "/data").Run(context.Background(), KindSearch, Options{Term: "i", MinSize: 100})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "big", res.Rows[0].Path)
}

func TestRunDuplicates(t *testing.T) {
	src := &fakeSource{groups: []store.DuplicateGroup{
		{Checksum: "aa", Count: 2, Records: []types.FileRecord{rec("x/1.bin", 100, "aa"), rec("y/1.bin", 100, "aa")}},
		{Checksum: "bb", Count: 2, Records: []types.FileRecord{rec("x/2.bin", 10, "bb"), rec("x/3.bin", 10, "bb")}},
		{Checksum: "cc", Count: 3, Records: []types.FileRecord{rec("z/4.bin", 1, "cc"), rec("z/5.bin", 1, "cc"), rec("y/6.bin", 1, "cc")}},
	}}
	r := New(src, "/data")

	res, err := r.Run(context.Background(), KindDuplicates, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 7)
	assert.True(t, res.Grouped())
	assert.Equal(t, 1, res.Rows[0].Group)
	assert.Equal(t, 2, res.Rows[2].Group)
	assert.Equal(t, 3, res.Rows[6].Group)

	assert.Equal(t, 7, res.TotalRows)

	res, err = r.Run(context.Background(), KindDuplicates, Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 4)
	assert.Equal(t, 7, res.TotalRows, "rows of the groups beyond the limit are counted")

	// Groups are kept whole when any member matches, and renumbered.
	res, err = r.Run(context.Background(), KindDuplicates, Options{Match: "y/*", Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "x/1.bin", res.Rows[0].Path)
	assert.Equal(t, "y/1.bin", res.Rows[1].Path)
	assert.Equal(t, 1, res.Rows[1].Group)
	assert.Equal(t, 5, res.TotalRows)

	res, err = r.Run(context.Background(), KindDuplicates, Options{Match: "z/*"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, 1, res.Rows[0].Group)
}

func TestRunDuplicatesFilterKeepsMembers(t *testing.T) {
	src := &fakeSource{groups: []store.DuplicateGroup{
		{Checksum: "aa", Count: 2, Records: []types.FileRecord{rec("x/1.bin", 100, "aa"), rec("y/1.bin", 100, "aa")}},
	}}
	r := New(src, "/data")

	for _, opts := range []Options{{Match: "y/*"}, {Match: "x/*"}, {MinSize: 50}} {
		res, err := r.Run(context.Background(), KindDuplicates, opts)
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "x/1.bin", res.Rows[0].Path)
		assert.Equal(t, "y/1.bin", res.Rows[1].Path)
	}
	assert.Equal(t, "x/1.bin", src.groups[0].Records[0].Path)
}

func TestRunCountsRowsBeyondQueryLimit(t *testing.T) {
	src := &fakeSource{records: []types.FileRecord{
		rec("a", 30, "1"),
		rec("b", 20, "2"),
		rec("c", 10, "3"),
	}}
	r := New(src, "/data")
	ctx := context.Background()

	for _, kind := range []Kind{KindSize, KindRecent, KindMissing, KindMismatched, KindSearch} {
		src.calls = nil
		res, err := r.Run(ctx, kind, Options{Term: "x", Limit: 2})
		require.NoError(t, err, kind)
		assert.Len(t, res.Rows, 2)
		assert.Equal(t, 3, res.TotalRows, kind)
		assert.Equal(t, []string{string(kind), "count " + string(kind)}, src.calls)
	}

	src.calls = nil
	res, err := r.Run(ctx, KindSize, Options{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, []string{"size"}, src.calls, "no count when the limit cut nothing")

	src.err = errors.New("locked")
	_, err = r.Run(ctx, KindSize, Options{Limit: 2})
	assert.ErrorIs(t, err, src.err)
}

func TestRunSummaryAndErrors(t *testing.T) {
	src := &fakeSource{summary: types.Summary{Total: 9, Missing: 2}}
	r := New(src, "/data")

	res, err := r.Run(context.Background(), KindMissing, Options{Summary: true})
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Equal(t, int64(9), res.Summary.Total)
	assert.Empty(t, res.Rows)

	boom := errors.New("disk gone")
	src.err = boom
	_, err = r.Run(context.Background(), KindSize, Options{})
	assert.ErrorIs(t, err, boom)
	_, err = r.Run(context.Background(), KindDuplicates, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestRunAgainstStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, t.TempDir()+"/inv.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	for _, p := range []string{"a.txt", "b/c.txt"} {
		_, err := st.UpsertNewPath(ctx, p)
		require.NoError(t, err)
		r, err := st.Get(ctx, p)
		require.NoError(t, err)
		require.NoError(t, st.RecordStat(ctx, r.ID, 5, 1700000000))
		require.NoError(t, st.RecordChecksum(ctx, r.ID, "same"))
	}

	res, err := New(st, "/data").Run(ctx, KindDuplicates, Options{Summary: true})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a.txt", res.Rows[0].Path)
	assert.Equal(t, int64(2), res.Summary.Total)

	res, err = New(st, "/data").Run(ctx, KindSearch, Options{Term: ".txt", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.TotalRows)

	res, err = New(st, "/data").Run(ctx, KindSize, Options{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRows)
}
