package journal

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpenEmptyDir(t *testing.T) {
	t.Parallel()
	if _, err := Open(""); err == nil {
		t.Fatal("Open() error = nil, want error for empty directory")
	}
}

func TestJournal_Record(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)

	entry := &Entry{
		Operation: OpVerify,
		Store:     "/tmp/inv.db",
		Root:      "/data",
		Summary:   Summary{Processed: 3, Matches: 2, Mismatches: 1},
		Files:     []FileRecord{{Path: "a.txt", Size: 5, Checksum: "abc"}},
	}
	if err := j.Record(entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !strings.HasPrefix(entry.ID, "verify-") {
		t.Errorf("ID = %q, want verify- prefix", entry.ID)
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	got, err := j.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Summary.Mismatches != 1 || got.Root != "/data" || len(got.Files) != 1 {
		t.Errorf("Get() = %+v", got)
	}
}

func TestJournal_RecordNil(t *testing.T) {
	t.Parallel()
	if err := openTestJournal(t).Record(nil); err == nil {
		t.Fatal("Record(nil) error = nil")
	}
}

func TestJournal_List(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)

	base := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	ops := []Operation{OpCollect, OpStat, OpChecksum}
	for i, op := range ops {
		if err := j.Record(&Entry{Operation: op, Timestamp: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
	for i, want := range []Operation{OpChecksum, OpStat, OpCollect} {
		if entries[i].Operation != want {
			t.Errorf("entries[%d].Operation = %s, want %s", i, entries[i].Operation, want)
		}
	}

	limited, err := j.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 || limited[0].Operation != OpChecksum {
		t.Errorf("List(2) = %+v", limited)
	}
}

func TestJournal_ListEmpty(t *testing.T) {
	t.Parallel()
	entries, err := openTestJournal(t).List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", entries)
	}
}

func TestJournal_GetUnknown(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)

	if _, err := j.Get("stat-2024-01-01T00-00-00-deadbeef"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get() error = %v, want ErrEntryNotFound", err)
	}
	if _, err := j.Get(""); err == nil {
		t.Error("Get(\"\") error = nil")
	}
}

func TestJournal_Cleanup(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)

	old := &Entry{Operation: OpPruneDeleted, Timestamp: time.Now().AddDate(0, 0, -45)}
	recent := &Entry{Operation: OpPruneChanged}
	for _, e := range []*Entry{old, recent} {
		if err := j.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	removed, err := j.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}

	if _, err := j.Get(old.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("old entry still present: %v", err)
	}
	if _, err := j.Get(recent.ID); err != nil {
		t.Errorf("recent entry removed: %v", err)
	}

	removed, err = j.Cleanup(0)
	if err != nil || removed != 0 {
		t.Errorf("Cleanup(0) = %d, %v", removed, err)
	}
}

func TestGenerateID(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	id := generateID(OpStat, ts)
	if !strings.HasPrefix(id, "stat-2024-06-15T10-30-00-") || len(id) != len("stat-2024-06-15T10-30-00-")+8 {
		t.Errorf("generateID() = %q", id)
	}
	if other := generateID(OpStat, ts); other == id {
		t.Errorf("generateID() not unique: %q", id)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Parallel()
	if got := DefaultPath(); filepath.Base(got) != "journal" {
		t.Errorf("DefaultPath() = %q", got)
	}
}
