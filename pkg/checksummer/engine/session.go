// Package engine reconciles the inventory with the filesystem.
//
// A Session binds a store to a tracked root and runs the reconciliation
// phases against it:
//
//	Collect   scan the root and track every new path
//	Stat      refresh size and mtime, marking vanished files missing
//	Checksum  hash present files that have no digest yet
//	Verify    Collect, Stat and Checksum, then re-hash everything and
//	          compare against the stored digests
//
// PruneDeleted and PruneChanged are explicit operator actions that drop
// missing records and reset mismatched ones. Each phase is safe to re-run;
// bulk writes are committed in batches, so an interrupted phase keeps the
// progress made before its last commit.
package engine

import (
	"errors"
	"time"

	"github.com/jamesainslie/checksummer/pkg/checksummer/hasher"
	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
	"github.com/jamesainslie/checksummer/pkg/checksummer/store"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

var (
	// ErrNoRoot is returned when a phase needs the filesystem but no root is
	// configured.
	ErrNoRoot = errors.New("no root configured")

	// ErrRootNotDir is returned when the root does not exist or is not a
	// directory.
	ErrRootNotDir = errors.New("root is not a directory")
)

// Phase names, as used in results, progress and logs.
const (
	PhaseCollect      = "collect"
	PhaseStat         = "stat"
	PhaseChecksum     = "checksum"
	PhaseVerify       = "verify"
	PhasePruneDeleted = "prune-deleted"
	PhasePruneChanged = "prune-changed"
	PhaseRoot         = "root"
)

// Hasher computes the content digest of a file. Failures to read the file
// are reported as *hasher.ReadError; any other error aborts the phase.
type Hasher interface {
	Hash(path string) (string, error)
}

// Recorder persists a summary of each completed run.
type Recorder interface {
	Record(entry *journal.Entry) error
}

// Session carries everything a phase needs: the store, the current root and
// the run settings. It holds no inventory state of its own.
type Session struct {
	store      *store.Store
	root       string
	hasher     Hasher
	recorder   Recorder
	batchSize  int
	exclude    []string
	workers    int
	onProgress func(types.Progress)
	logger     *logging.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithRoot sets the tracked root without consulting the store.
func WithRoot(root string) Option {
	return func(s *Session) { s.root = root }
}

// WithHasher replaces the SHA-256 file hasher.
func WithHasher(h Hasher) Option {
	return func(s *Session) { s.hasher = h }
}

// WithRecorder journals every run to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithBatchSize sets the number of writes per store transaction.
func WithBatchSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithExclude sets doublestar patterns that Collect never tracks.
func WithExclude(patterns ...string) Option {
	return func(s *Session) { s.exclude = append([]string(nil), patterns...) }
}

// WithWorkers sets the number of directory walkers used by Collect.
func WithWorkers(n int) Option {
	return func(s *Session) { s.workers = n }
}

// WithProgress registers a callback for phase progress.
func WithProgress(fn func(types.Progress)) Option {
	return func(s *Session) { s.onProgress = fn }
}

// New creates a Session over st.
func New(st *store.Store, opts ...Option) *Session {
	s := &Session{
		store:     st,
		hasher:    hasher.New(hasher.ChunkSize),
		batchSize: store.DefaultBatchSize,
		logger:    logging.Get("engine"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the session's store.
func (s *Session) Store() *store.Store {
	return s.store
}

// Root returns the current root, or "" if none is configured.
func (s *Session) Root() string {
	return s.root
}

// Result summarises one phase. Counters that do not apply to the phase stay
// zero.
type Result struct {
	Phase string `json:"phase"`

	// Processed is the number of paths or records the phase visited.
	Processed int64 `json:"processed"`

	// Added counts newly tracked paths (collect).
	Added int64 `json:"added,omitempty"`

	// Present and Missing count stat outcomes.
	Present int64 `json:"present,omitempty"`
	Missing int64 `json:"missing,omitempty"`

	// Hashed counts digests stored by the checksum phase.
	Hashed      int64 `json:"hashed,omitempty"`
	HashedBytes int64 `json:"hashed_bytes,omitempty"`

	// Demoted counts records marked missing because they could not be read
	// while hashing.
	Demoted int64 `json:"demoted,omitempty"`

	// Matches and Mismatches count verification outcomes.
	Matches    int64              `json:"matches,omitempty"`
	Mismatches int64              `json:"mismatches,omitempty"`
	Mismatched []types.FileRecord `json:"mismatched,omitempty"`

	// Pruned counts removed or reset records; Records holds them as they
	// were before the prune.
	Pruned  int64              `json:"pruned,omitempty"`
	Records []types.FileRecord `json:"records,omitempty"`

	// ScanErrors counts entries the walk could not read.
	ScanErrors int `json:"scan_errors,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// VerifyResult holds the result of each step of a verify run.
type VerifyResult struct {
	Collect  *Result       `json:"collect"`
	Stat     *Result       `json:"stat"`
	Checksum *Result       `json:"checksum"`
	Verify   *Result       `json:"verify"`
	Elapsed  time.Duration `json:"elapsed"`
}

func (s *Session) progress(p types.Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}
