package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
	"github.com/jamesainslie/checksummer/pkg/checksummer/hasher"
	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/store"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// newSession returns a session over a fresh store with a fresh temp root.
func newSession(t *testing.T, opts ...engine.Option) (*engine.Session, string) {
	t.Helper()
	root := t.TempDir()
	st := openStore(t, filepath.Join(t.TempDir(), "inventory.db"))
	sess := engine.New(st, append([]engine.Option{engine.WithRoot(root)}, opts...)...)
	return sess, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func records(t *testing.T, sess *engine.Session) map[string]types.FileRecord {
	t.Helper()
	all, err := sess.Store().ListAll(context.Background())
	require.NoError(t, err)
	out := make(map[string]types.FileRecord, len(all))
	for _, rec := range all {
		out[rec.Path] = rec
	}
	return out
}

func sortedPaths(recs map[string]types.FileRecord) []string {
	out := make([]string, 0, len(recs))
	for p := range recs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// stubHasher fails for chosen paths and delegates the rest.
type stubHasher struct {
	fail map[string]error
}

func (h *stubHasher) Hash(path string) (string, error) {
	if err, ok := h.fail[filepath.Base(path)]; ok {
		return "", err
	}
	return hasher.New(0).Hash(path)
}

type memRecorder struct {
	entries []*journal.Entry
	err     error
}

func (r *memRecorder) Record(entry *journal.Entry) error {
	r.entries = append(r.entries, entry)
	return r.err
}

func TestCollectIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "dir/b.txt", "b")
	writeFile(t, root, "dir/sub/it's \"quoted\".txt", "c")

	first, err := sess.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.Processed)
	assert.Equal(t, int64(3), first.Added)

	second, err := sess.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), second.Processed)
	assert.Zero(t, second.Added)

	assert.Equal(t, []string{"a.txt", "dir/b.txt", "dir/sub/it's \"quoted\".txt"}, sortedPaths(records(t, sess)))
}

func TestCollectKeepsVanishedPaths(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "a.txt", "a")

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))

	_, err = sess.Collect(ctx)
	require.NoError(t, err)
	assert.Contains(t, records(t, sess), "a.txt")
}

func TestCollectSkipsStoreFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	st := openStore(t, filepath.Join(root, "inventory.db"))
	sess := engine.New(st, engine.WithRoot(root))
	writeFile(t, root, "data.bin", "x")

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"data.bin"}, sortedPaths(records(t, sess)))
}

func TestCollectExclude(t *testing.T) {
	t.Parallel()
	sess, root := newSession(t, engine.WithExclude(".git", "*.tmp"), engine.WithWorkers(2))
	writeFile(t, root, ".git/config", "x")
	writeFile(t, root, "scratch.tmp", "x")
	writeFile(t, root, "keep.txt", "x")

	_, err := sess.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, sortedPaths(records(t, sess)))
}

func TestPhasesRequireRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openStore(t, filepath.Join(t.TempDir(), "inventory.db"))

	noRoot := engine.New(st)
	_, err := noRoot.Collect(ctx)
	assert.ErrorIs(t, err, engine.ErrNoRoot)
	_, err = noRoot.Stat(ctx)
	assert.ErrorIs(t, err, engine.ErrNoRoot)
	_, err = noRoot.Checksum(ctx)
	assert.ErrorIs(t, err, engine.ErrNoRoot)
	_, err = noRoot.Verify(ctx)
	assert.ErrorIs(t, err, engine.ErrNoRoot)

	gone := engine.New(st, engine.WithRoot(filepath.Join(t.TempDir(), "unmounted")))
	_, err = gone.Stat(ctx)
	assert.ErrorIs(t, err, engine.ErrRootNotDir)
}

func TestStatPostconditions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "stay.txt", "hello")
	writeFile(t, root, "go.txt", "bye")

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	_, err = sess.Stat(ctx)
	require.NoError(t, err)
	_, err = sess.Checksum(ctx)
	require.NoError(t, err)
	before := records(t, sess)["go.txt"]

	require.NoError(t, os.Remove(filepath.Join(root, "go.txt")))
	res, err := sess.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Processed)
	assert.Equal(t, int64(1), res.Present)
	assert.Equal(t, int64(1), res.Missing)

	recs := records(t, sess)
	for _, rec := range recs {
		assert.Contains(t, []types.FoundState{types.FoundPresent, types.FoundMissing}, rec.Found)
	}

	stay := recs["stay.txt"]
	assert.Equal(t, types.FoundPresent, stay.Found)
	require.NotNil(t, stay.Size)
	assert.Equal(t, int64(5), *stay.Size)
	assert.NotNil(t, stay.MTime)

	gone := recs["go.txt"]
	assert.Equal(t, types.FoundMissing, gone.Found)
	assert.Equal(t, before.Checksum, gone.Checksum)
	assert.Equal(t, before.Size, gone.Size)
	assert.Equal(t, before.MTime, gone.MTime)
}

func TestStatTreatsDirectoryAsMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "thing", "x")

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "thing")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "thing"), 0o755))

	_, err = sess.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.FoundMissing, records(t, sess)["thing"].Found)
}

func TestChecksumPostconditions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t, engine.WithBatchSize(2))
	for _, name := range []string{"1", "2", "3", "4", "5"} {
		writeFile(t, root, name, "hello")
	}

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	_, err = sess.Stat(ctx)
	require.NoError(t, err)

	// Vanishes between stat and checksum.
	require.NoError(t, os.Remove(filepath.Join(root, "3")))

	res, err := sess.Checksum(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Processed)
	assert.Equal(t, int64(4), res.Hashed)
	assert.Equal(t, int64(20), res.HashedBytes)
	assert.Equal(t, int64(1), res.Demoted)

	for path, rec := range records(t, sess) {
		if path == "3" {
			assert.Equal(t, types.FoundMissing, rec.Found)
			assert.Empty(t, rec.Checksum)
			continue
		}
		assert.Equal(t, types.FoundPresent, rec.Found)
		assert.Equal(t, helloDigest, rec.Checksum)
	}

	again, err := sess.Checksum(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Processed, "digests are computed once")
}

func TestChecksumReportsProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var seen []types.Progress
	sess, root := newSession(t, engine.WithProgress(func(p types.Progress) {
		if p.Phase == engine.PhaseChecksum {
			seen = append(seen, p)
		}
	}))
	writeFile(t, root, "a", "12345")
	writeFile(t, root, "b", "123")

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	_, err = sess.Stat(ctx)
	require.NoError(t, err)
	_, err = sess.Checksum(ctx)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, int64(2), seen[0].Remaining)
	assert.Equal(t, int64(8), seen[0].RemainingBytes)
	assert.Equal(t, int64(1), seen[1].Remaining)
	assert.Equal(t, int64(1), seen[1].Done)
}

func TestChecksumPropagatesUnexpectedErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("digest engine failure")
	sess, root := newSession(t, engine.WithHasher(&stubHasher{fail: map[string]error{"b": boom}}))
	writeFile(t, root, "a", "x")
	writeFile(t, root, "b", "y")

	// Insert directly so "a" gets the lower id and is hashed first.
	for _, p := range []string{"a", "b"} {
		_, err := sess.Store().UpsertNewPath(ctx, p)
		require.NoError(t, err)
	}
	_, err := sess.Stat(ctx)
	require.NoError(t, err)

	_, err = sess.Checksum(ctx)
	assert.ErrorIs(t, err, boom)

	recs := records(t, sess)
	assert.NotEmpty(t, recs["a"].Checksum, "work before the failure is committed")
	assert.Equal(t, types.FoundPresent, recs["b"].Found, "unexpected errors do not demote")
}

func TestChecksumCancelKeepsCommittedProgress(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, root := newSession(t, engine.WithBatchSize(2), engine.WithProgress(func(p types.Progress) {
		if p.Phase == engine.PhaseChecksum && p.Done == 3 {
			cancel()
		}
	}))
	for _, name := range []string{"1", "2", "3", "4", "5"} {
		writeFile(t, root, name, name)
	}

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	_, err = sess.Stat(ctx)
	require.NoError(t, err)

	_, err = sess.Checksum(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	remaining, _, err := sess.Store().CountSelection(context.Background(), store.SelectNeedingChecksum)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)

	// Re-running picks up where the interrupted run stopped.
	res, err := sess.Checksum(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Hashed)
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "b/c.txt", "world")

	first, err := sess.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Collect.Added)
	assert.Equal(t, int64(2), first.Checksum.Hashed)
	assert.Equal(t, int64(2), first.Verify.Processed, "fresh digests are verified too")
	assert.Equal(t, int64(2), first.Verify.Matches)
	assert.Zero(t, first.Verify.Mismatches)

	second, err := sess.Verify(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Checksum.Hashed)
	assert.Equal(t, int64(2), second.Verify.Matches)
	assert.Zero(t, second.Verify.Mismatches)

	for _, rec := range records(t, sess) {
		assert.Equal(t, types.VerifiedMatches, rec.Verified)
	}
}

func TestVerifyDetectsMutation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "steady.txt", "steady")

	_, err := sess.Verify(ctx)
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "tampered")
	vr, err := sess.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), vr.Verify.Mismatches)
	require.Len(t, vr.Verify.Mismatched, 1)
	assert.Equal(t, "a.txt", vr.Verify.Mismatched[0].Path)

	recs := records(t, sess)
	assert.Equal(t, types.VerifiedMismatches, recs["a.txt"].Verified)
	assert.Equal(t, helloDigest, recs["a.txt"].Checksum, "the trusted digest is kept")
	assert.Equal(t, types.VerifiedMatches, recs["steady.txt"].Verified)

	mismatched, err := sess.Store().CountMismatched(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mismatched)
}

func TestVerifyDemotesUnreadable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	stub := &stubHasher{}
	sess, root := newSession(t, engine.WithHasher(stub))
	writeFile(t, root, "a", "x")
	writeFile(t, root, "b", "y")

	_, err := sess.Verify(ctx)
	require.NoError(t, err)

	stub.fail = map[string]error{"b": &hasher.ReadError{Path: "b", Err: os.ErrPermission}}
	vr, err := sess.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), vr.Verify.Demoted)
	assert.Equal(t, int64(1), vr.Verify.Matches)

	b := records(t, sess)["b"]
	assert.Equal(t, types.FoundMissing, b.Found)
	assert.NotEmpty(t, b.Checksum)
}

func TestPruneDeletedIsExact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "keep", "k")
	writeFile(t, root, "drop1", "d")
	writeFile(t, root, "drop2", "d")

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "drop1")))
	require.NoError(t, os.Remove(filepath.Join(root, "drop2")))
	_, err = sess.Stat(ctx)
	require.NoError(t, err)

	res, err := sess.PruneDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Pruned)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, []string{"keep"}, sortedPaths(records(t, sess)))
}

func TestPruneChangedIsExact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "changed", "before")
	writeFile(t, root, "steady", "same")

	_, err := sess.Verify(ctx)
	require.NoError(t, err)
	steadyBefore := records(t, sess)["steady"]

	writeFile(t, root, "changed", "after!")
	_, err = sess.Verify(ctx)
	require.NoError(t, err)

	res, err := sess.PruneChanged(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Pruned)

	recs := records(t, sess)
	changed := recs["changed"]
	assert.Empty(t, changed.Checksum)
	assert.Nil(t, changed.Size)
	assert.Equal(t, types.VerifiedUnknown, changed.Verified)
	assert.Equal(t, steadyBefore.Checksum, recs["steady"].Checksum)
	assert.Equal(t, types.VerifiedMatches, recs["steady"].Verified)

	// The next passes adopt the new content as the baseline.
	vr, err := sess.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), vr.Checksum.Hashed)
	assert.Zero(t, vr.Verify.Mismatches)
}

func TestEndToEndScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "b/c.txt", "hello")

	_, err := sess.Collect(ctx)
	require.NoError(t, err)
	_, err = sess.Stat(ctx)
	require.NoError(t, err)
	_, err = sess.Checksum(ctx)
	require.NoError(t, err)

	recs := records(t, sess)
	for _, p := range []string{"a.txt", "b/c.txt"} {
		rec := recs[p]
		require.NotNil(t, rec.Size)
		assert.Equal(t, int64(5), *rec.Size)
		assert.Equal(t, helloDigest, rec.Checksum)
		assert.Equal(t, types.FoundPresent, rec.Found)
	}

	groups, err := sess.Store().GroupDuplicateChecksums(ctx, 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "a.txt", groups[0].Records[0].Path)
	assert.Equal(t, "b/c.txt", groups[0].Records[1].Path)

	require.NoError(t, os.Remove(filepath.Join(root, "b", "c.txt")))
	_, err = sess.Stat(ctx)
	require.NoError(t, err)

	gone := records(t, sess)["b/c.txt"]
	assert.Equal(t, types.FoundMissing, gone.Found)
	assert.Equal(t, helloDigest, gone.Checksum)
	require.NotNil(t, gone.Size)
	assert.Equal(t, int64(5), *gone.Size)

	_, err = sess.PruneDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, sortedPaths(records(t, sess)))
}

func TestDuplicateGroupingExcludesSingletons(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, root := newSession(t)
	writeFile(t, root, "one", "same")
	writeFile(t, root, "two", "same")
	writeFile(t, root, "three", "different")

	_, err := sess.Verify(ctx)
	require.NoError(t, err)

	groups, err := sess.Store().GroupDuplicateChecksums(ctx, 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
}

func TestRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openStore(t, filepath.Join(t.TempDir(), "inventory.db"))
	sess := engine.New(st)

	_, err := sess.LoadRoot(ctx)
	assert.ErrorIs(t, err, engine.ErrNoRoot)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = sess.SetRoot(ctx, file, false)
	assert.ErrorIs(t, err, engine.ErrRootNotDir)
	_, err = sess.SetRoot(ctx, "  ", false)
	assert.ErrorIs(t, err, engine.ErrNoRoot)

	root := t.TempDir()
	_, err = sess.SetRoot(ctx, root, false)
	require.NoError(t, err)
	assert.Equal(t, root, sess.Root())

	// A new session over the same store picks the root up.
	loaded, err := engine.New(st).LoadRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, loaded)
}

func TestRootChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess, oldRoot := newSession(t)
	writeFile(t, oldRoot, "shared.txt", "old")
	writeFile(t, oldRoot, "only-old.txt", "old")

	_, err := sess.Verify(ctx)
	require.NoError(t, err)

	newRoot := t.TempDir()
	writeFile(t, newRoot, "shared.txt", "old")

	// Kept records are read against the new root.
	_, err = sess.SetRoot(ctx, newRoot, false)
	require.NoError(t, err)
	_, err = sess.Stat(ctx)
	require.NoError(t, err)
	recs := records(t, sess)
	assert.Equal(t, types.FoundPresent, recs["shared.txt"].Found)
	assert.Equal(t, types.FoundMissing, recs["only-old.txt"].Found)

	res, err := sess.SetRoot(ctx, newRoot, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Pruned)
	assert.Empty(t, records(t, sess))
}

func TestCollectReturnsStoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &memRecorder{}
	sess, root := newSession(t, engine.WithRecorder(rec))
	writeFile(t, root, "a", "1")
	writeFile(t, root, "dir/b", "2")
	writeFile(t, root, "dir/c", "3")

	require.NoError(t, sess.Store().Close())

	res, err := sess.Collect(ctx)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Zero(t, res.Added)
	assert.Zero(t, res.ScanErrors, "store failures are not scan errors")

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.OpCollect, rec.entries[0].Operation)
	assert.NotEmpty(t, rec.entries[0].Error)
}

func TestRunsAreJournaled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &memRecorder{err: errors.New("journal unavailable")}
	sess, root := newSession(t, engine.WithRecorder(rec))
	writeFile(t, root, "a", "1")

	_, err := sess.Verify(ctx)
	require.NoError(t, err, "journal failures never fail a run")

	require.NoError(t, os.Remove(filepath.Join(root, "a")))
	_, err = sess.Stat(ctx)
	require.NoError(t, err)
	_, err = sess.PruneDeleted(ctx)
	require.NoError(t, err)

	require.Len(t, rec.entries, 3)
	assert.Equal(t, journal.OpVerify, rec.entries[0].Operation)
	assert.Equal(t, int64(1), rec.entries[0].Summary.Matches)
	assert.Equal(t, journal.OpStat, rec.entries[1].Operation)
	assert.Equal(t, int64(1), rec.entries[1].Summary.Missing)
	assert.Equal(t, journal.OpPruneDeleted, rec.entries[2].Operation)
	require.Len(t, rec.entries[2].Files, 1)
	assert.Equal(t, "a", rec.entries[2].Files[0].Path)
	assert.Equal(t, root, rec.entries[2].Root)
}
