// Package journal keeps a history of reconciliation runs.
package journal

import "time"

// Operation is the kind of run an entry records.
type Operation string

const (
	// OpCollect records a collect phase.
	OpCollect Operation = "collect"
	// OpStat records a stat phase.
	OpStat Operation = "stat"
	// OpChecksum records a checksum phase.
	OpChecksum Operation = "checksum"
	// OpVerify records a full verify run.
	OpVerify Operation = "verify"
	// OpPruneDeleted records removal of missing records.
	OpPruneDeleted Operation = "prune-deleted"
	// OpPruneChanged records reset of mismatched records.
	OpPruneChanged Operation = "prune-changed"
	// OpRoot records a change of the tracked root.
	OpRoot Operation = "root"
)

// Entry is one journaled run.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation Operation     `json:"operation"`
	Store     string        `json:"store"`
	Root      string        `json:"root"`
	Duration  time.Duration `json:"duration"`
	Summary   Summary       `json:"summary"`
	Files     []FileRecord  `json:"files,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// FileRecord is a path affected by a run, such as a pruned record or a
// checksum mismatch.
type FileRecord struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
}

// Summary holds the counters of a run. Unused counters stay zero.
type Summary struct {
	Processed   int64 `json:"processed"`
	Added       int64 `json:"added,omitempty"`
	Present     int64 `json:"present,omitempty"`
	Missing     int64 `json:"missing,omitempty"`
	Hashed      int64 `json:"hashed,omitempty"`
	HashedBytes int64 `json:"hashed_bytes,omitempty"`
	Matches     int64 `json:"matches,omitempty"`
	Mismatches  int64 `json:"mismatches,omitempty"`
	Pruned      int64 `json:"pruned,omitempty"`
}
