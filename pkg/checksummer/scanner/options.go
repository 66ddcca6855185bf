// Package scanner walks a tracked root and yields every regular file's path
// relative to that root. Directory traversal runs on fastwalk's parallel
// workers; the caller's callback is serialized, so consumers see a single
// ordered stream of paths and may write to the store without locking.
package scanner

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// ErrBadPattern is returned when an exclusion pattern is not a valid glob.
var ErrBadPattern = errors.New("invalid exclude pattern")

// DefaultWorkers is the number of directory walker workers used when unset.
const DefaultWorkers = 4

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to walk.
	Root string

	// Exclude contains doublestar patterns matched against slash-separated
	// paths relative to Root, and against base names. A matching directory
	// is pruned along with its contents.
	Exclude []string

	// SkipPaths lists absolute file paths that are never yielded, such as
	// the inventory database and its sidecar files.
	SkipPaths []string

	// Workers is the number of concurrent directory readers.
	Workers int

	// OnProgress is called periodically with walk progress.
	// It is invoked from the serialized callback and need not be thread-safe.
	OnProgress func(types.Progress)
}

// Validate applies defaults and checks exclusion patterns.
func (o *Options) Validate() error {
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	for _, pattern := range o.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}
	}
	return nil
}
