// Package types provides core data types for the checksummer inventory.
// It includes the tracked file record with its lifecycle states, scan and
// progress structures, and utility functions for parsing and formatting
// sizes and timestamps.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// TimeLayout is the layout used to render timestamps in local time.
const TimeLayout = "2006-01-02 15:04:05"

// FoundState records whether a tracked file was present at its last stat.
type FoundState int

// Found states. FoundUnknown means the record was never stated.
const (
	FoundUnknown FoundState = iota
	FoundPresent
	FoundMissing
)

// String returns the string representation of the state.
func (s FoundState) String() string {
	switch s {
	case FoundPresent:
		return "present"
	case FoundMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// VerifiedState records the outcome of the last verification pass.
type VerifiedState int

// Verified states. VerifiedUnknown means the record was never verified
// (or its flag was reset before a new pass).
const (
	VerifiedUnknown VerifiedState = iota
	VerifiedMatches
	VerifiedMismatches
)

// String returns the string representation of the state.
func (s VerifiedState) String() string {
	switch s {
	case VerifiedMatches:
		return "matches"
	case VerifiedMismatches:
		return "mismatches"
	default:
		return "unknown"
	}
}

// FileRecord is one tracked path in the inventory.
// Optional fields are nil (or empty for Checksum) until first set.
type FileRecord struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id"`

	// Path is relative to the tracked root and unique across records.
	Path string `json:"path"`

	// Checksum is the hex SHA-256 digest; empty until first hashed.
	Checksum string `json:"checksum,omitempty"`

	// Size is the byte count from the last successful stat.
	Size *int64 `json:"size,omitempty"`

	// MTime is the modification time in unix seconds from the last successful stat.
	MTime *int64 `json:"mtime,omitempty"`

	// Found is set by the stat phase.
	Found FoundState `json:"found"`

	// Verified is set only by the verify phase.
	Verified VerifiedState `json:"verified"`
}

// HasChecksum reports whether a digest is stored for the record.
func (r *FileRecord) HasChecksum() bool {
	return r.Checksum != ""
}

// SizeOrZero returns the recorded size, or zero when never stated.
func (r *FileRecord) SizeOrZero() int64 {
	if r.Size == nil {
		return 0
	}
	return *r.Size
}

// ModTime returns the recorded modification time, or the zero time.
func (r *FileRecord) ModTime() time.Time {
	if r.MTime == nil {
		return time.Time{}
	}
	return time.Unix(*r.MTime, 0)
}

// Summary aggregates record counts across lifecycle states.
type Summary struct {
	Total      int64 `json:"total"`
	Present    int64 `json:"present"`
	Missing    int64 `json:"missing"`
	Unstated   int64 `json:"unstated"`
	Unhashed   int64 `json:"unhashed"`
	Matches    int64 `json:"matches"`
	Mismatches int64 `json:"mismatches"`
	TotalBytes int64 `json:"total_bytes"`
}

// ScanResult contains the aggregated results of a filesystem walk.
type ScanResult struct {
	// FilesFound is the number of regular files yielded.
	FilesFound int64 `json:"files_found"`

	// DirsScanned is the total number of directories traversed.
	DirsScanned int64 `json:"dirs_scanned"`

	// Skipped counts entries dropped by exclusion rules or non-regular types.
	Skipped int64 `json:"skipped"`

	// Elapsed is the total time taken to complete the walk.
	Elapsed time.Duration `json:"elapsed"`

	// Errors contains entries that could not be read during the walk.
	Errors []ScanError `json:"errors,omitempty"`
}

// ScanError represents an error encountered during scanning.
// It pairs a file path with the error message for debugging and reporting.
type ScanError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// Progress reports the state of a running phase.
type Progress struct {
	// Phase is the name of the running phase.
	Phase string `json:"phase"`

	// Done is the number of records (or paths) processed so far.
	Done int64 `json:"done"`

	// Remaining is the number of records still queued, when known.
	Remaining int64 `json:"remaining"`

	// RemainingBytes is the byte total still to hash, when known.
	RemainingBytes int64 `json:"remaining_bytes"`

	// CurrentPath is the record being processed.
	CurrentPath string `json:"current_path"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string such as "10MB" or "512K"
// and returns the size in bytes. Units are binary.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatSize renders a byte count with 1024 scaling and one decimal place.
//
// Examples:
//   - FormatSize(5) returns "5.0 B"
//   - FormatSize(1536) returns "1.5 KB"
//   - FormatSize(3*MiB) returns "3.0 MB"
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + FormatSize(-bytes)
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[unit])
}

// FormatTime renders t as a local calendar date-time.
// The zero time renders as an empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}
