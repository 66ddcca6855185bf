// Package pager sends long listings through an external pager when the
// output is a terminal, and writes them directly otherwise.
package pager

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
)

// DefaultCommand is used when neither the caller nor $PAGER names a pager.
const DefaultCommand = "less -X -F -R"

// Pager writes content to out, through an external command when interactive.
type Pager struct {
	out     io.Writer
	command string
	enabled bool
	force   bool
	logger  *logging.Logger
}

// Option configures a Pager.
type Option func(*Pager)

// WithCommand sets the pager command line. Empty means $PAGER, then DefaultCommand.
func WithCommand(command string) Option {
	return func(p *Pager) { p.command = command }
}

// WithEnabled turns paging on or off. Disabled pagers always write directly.
func WithEnabled(enabled bool) Option {
	return func(p *Pager) { p.enabled = enabled }
}

// WithForce pages even when out is not a terminal.
func WithForce(force bool) Option {
	return func(p *Pager) { p.force = force }
}

// New creates a Pager writing to out.
func New(out io.Writer, opts ...Option) *Pager {
	p := &Pager{
		out:     out,
		enabled: true,
		logger:  logging.Get("pager"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Command returns the command line that would be run.
func (p *Pager) Command() string {
	return ResolveCommand(p.command)
}

// Interactive reports whether Page would run the external command.
func (p *Pager) Interactive() bool {
	if !p.enabled {
		return false
	}
	return p.force || IsTerminal(p.out)
}

// Page shows content. A pager that cannot be started falls back to a
// direct write so output is never lost.
func (p *Pager) Page(content []byte) error {
	if len(content) == 0 {
		return nil
	}
	if !p.Interactive() {
		return p.write(content)
	}

	fields := strings.Fields(p.Command())
	if len(fields) == 0 {
		return p.write(content)
	}

	cmd := exec.Command(fields[0], fields[1:]...)
	cmd.Stdin = bytes.NewReader(content)
	cmd.Stdout = p.out
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		p.logger.Warn("pager unavailable, writing directly", "command", fields[0], "error", err)
		return p.write(content)
	}
	if err := cmd.Wait(); err != nil {
		// Quitting less early closes its stdin; that is not a failure.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.logger.Debug("pager exited", "command", fields[0], "code", exitErr.ExitCode())
			return nil
		}
		return fmt.Errorf("running pager %s: %w", fields[0], err)
	}
	return nil
}

func (p *Pager) write(content []byte) error {
	if _, err := p.out.Write(content); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// ResolveCommand picks the pager command line: configured, then $PAGER,
// then DefaultCommand.
func ResolveCommand(configured string) string {
	if c := strings.TrimSpace(configured); c != "" {
		return c
	}
	if c := strings.TrimSpace(os.Getenv("PAGER")); c != "" {
		return c
	}
	return DefaultCommand
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
