package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/store"
)

// ResolveRoot returns the absolute, cleaned form of path after checking it
// is an existing directory.
func ResolveRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrNoRoot
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRootNotDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrRootNotDir, abs)
	}
	return abs, nil
}

// LoadRoot reads the root from the store and makes it the session root.
// It returns ErrNoRoot when the store has none.
func (s *Session) LoadRoot(ctx context.Context) (string, error) {
	root, err := s.store.GetOption(ctx, store.OptionBasePath)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoRoot
	}
	if err != nil {
		return "", err
	}
	s.root = root
	return root, nil
}

// SetRoot validates root, persists it and makes it the session root.
// Existing records keep their relative paths and are interpreted against
// the new root from then on; with reset they are removed first.
func (s *Session) SetRoot(ctx context.Context, root string, reset bool) (*Result, error) {
	start := time.Now()

	abs, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	res := &Result{Phase: PhaseRoot}
	if reset {
		n, err := s.store.ClearFiles(ctx)
		if err != nil {
			return nil, err
		}
		res.Pruned = n
	}

	if err := s.store.SetOption(ctx, store.OptionBasePath, abs); err != nil {
		return nil, err
	}

	previous := s.root
	s.root = abs
	res.Elapsed = time.Since(start)

	s.logger.Info("root changed", "from", previous, "to", abs, "cleared", res.Pruned)
	s.record(journal.OpRoot, res, nil)
	return res, nil
}

// checkRoot fails unless the session root is an existing directory. Phases
// that touch the filesystem call it first, so an unmounted root is reported
// instead of marking every record missing.
func (s *Session) checkRoot() error {
	if s.root == "" {
		return ErrNoRoot
	}
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRootNotDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, s.root)
	}
	return nil
}
