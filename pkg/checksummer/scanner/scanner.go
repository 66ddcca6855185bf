package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// PathFunc receives one relative file path. Returning an error stops the walk.
type PathFunc func(rel string) error

// Scanner walks a root directory using fastwalk.
type Scanner struct {
	opts   Options
	logger *logging.Logger

	dirsScanned atomic.Int64
	filesFound  atomic.Int64
	skipped     atomic.Int64

	// emitMu serializes calls into the consumer callback and guards stopErr.
	emitMu  sync.Mutex
	stopErr error
	halted  atomic.Bool

	errors   []types.ScanError
	errorsMu sync.Mutex

	lastProgress atomic.Int64

	root string
	skip map[string]struct{}
}

// New creates a Scanner. Options are validated and defaults applied.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = struct{}{}
		}
	}

	return &Scanner{
		opts:   opts,
		logger: logging.Get("scanner"),
		skip:   skip,
	}, nil
}

// Scan performs a fresh traversal of the root and calls fn once per regular
// file with its path relative to the root. Entries that cannot be read,
// including ones removed while the walk is running, are recorded in the
// result and skipped. Scan blocks until the walk completes, fn fails, or ctx
// is cancelled.
func (s *Scanner) Scan(ctx context.Context, fn PathFunc) (*types.ScanResult, error) {
	start := time.Now()
	s.reset()

	root, err := validateRoot(s.opts.Root)
	if err != nil {
		return nil, err
	}
	s.root = root

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.Workers,
	}

	s.logger.Debug("walk started", "root", root, "workers", s.opts.Workers)

	walkErr := fastwalk.Walk(&conf, root, s.walkCallback(ctx, fn))
	if stopErr := s.stopped(); stopErr != nil {
		walkErr = stopErr
	}
	result := &types.ScanResult{
		FilesFound:  s.filesFound.Load(),
		DirsScanned: s.dirsScanned.Load(),
		Skipped:     s.skipped.Load(),
		Elapsed:     time.Since(start),
		Errors:      s.errors,
	}
	if walkErr != nil {
		return result, walkErr
	}

	s.logger.Debug("walk finished", "files", result.FilesFound, "dirs", result.DirsScanned,
		"errors", len(result.Errors), "elapsed", result.Elapsed)
	return result, nil
}

// reset clears counters so a Scanner can be reused for a fresh traversal.
func (s *Scanner) reset() {
	s.dirsScanned.Store(0)
	s.filesFound.Store(0)
	s.skipped.Store(0)
	s.lastProgress.Store(0)
	s.emitMu.Lock()
	s.stopErr = nil
	s.halted.Store(false)
	s.emitMu.Unlock()
	s.errorsMu.Lock()
	s.errors = nil
	s.errorsMu.Unlock()
}

// validateRoot resolves the root path to absolute and verifies it is a directory.
func validateRoot(path string) (string, error) {
	if path == "" {
		return "", errors.New("scan root is empty")
	}

	root, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", root, os.ErrInvalid)
	}

	return root, nil
}

// walkCallback returns the callback function for fastwalk.Walk.
func (s *Scanner) walkCallback(ctx context.Context, fn PathFunc) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// fastwalk reports the consumer's error a second time against the
		// directory being read; it ends the walk instead of becoming a scan error.
		if stopErr := s.stopped(); stopErr != nil {
			return stopErr
		}

		// Unreadable or vanished entries are skipped, not fatal.
		if err != nil {
			s.addError(path, err)
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			s.addError(path, relErr)
			return nil
		}

		if d.IsDir() {
			if rel != "." && s.isExcluded(rel) {
				s.skipped.Add(1)
				return fastwalk.SkipDir
			}
			s.dirsScanned.Add(1)
			return nil
		}

		if !d.Type().IsRegular() {
			s.skipped.Add(1)
			return nil
		}

		if _, ok := s.skip[path]; ok || s.isExcluded(rel) {
			s.skipped.Add(1)
			return nil
		}

		return s.emit(rel, fn)
	}
}

// emit hands one path to the consumer while holding the emit lock. After the
// consumer fails once it is not called again.
func (s *Scanner) emit(rel string, fn PathFunc) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.stopErr != nil {
		return s.stopErr
	}
	if err := fn(rel); err != nil {
		s.stopErr = err
		s.halted.Store(true)
		return err
	}
	s.filesFound.Add(1)
	s.reportProgress(rel)
	return nil
}

func (s *Scanner) stopped() error {
	if !s.halted.Load() {
		return nil
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	return s.stopErr
}

// isExcluded checks a relative path, and its base name, against the exclusion patterns.
func (s *Scanner) isExcluded(rel string) bool {
	if len(s.opts.Exclude) == 0 {
		return false
	}

	slashed := filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, pattern := range s.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// addError adds an error to the error list thread-safely.
func (s *Scanner) addError(path string, err error) {
	s.logger.Debug("walk entry skipped", "path", path, "error", err)

	s.errorsMu.Lock()
	s.errors = append(s.errors, types.ScanError{
		Path:  path,
		Error: err.Error(),
	})
	s.errorsMu.Unlock()
}

// reportProgress calls the progress callback at most every 50ms.
// Must be called with emitMu held.
func (s *Scanner) reportProgress(current string) {
	if s.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	if now-s.lastProgress.Load() < 50 {
		return
	}
	s.lastProgress.Store(now)

	s.opts.OnProgress(types.Progress{
		Phase:       "collect",
		Done:        s.filesFound.Load(),
		CurrentPath: current,
	})
}
