package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/checksummer/pkg/checksummer/pager"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

const (
	progressInterval = 100 * time.Millisecond
	progressPathMax  = 50
)

// progressLine redraws a single status line on a terminal. It stays silent
// when w is not a terminal. A nil progressLine is valid and does nothing.
type progressLine struct {
	w     io.Writer
	tty   bool
	last  time.Time
	shown bool
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w, tty: pager.IsTerminal(w)}
}

// Update redraws the line, at most once per progressInterval.
func (p *progressLine) Update(pr types.Progress) {
	if p == nil || !p.tty {
		return
	}
	now := time.Now()
	if now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now
	fmt.Fprintf(p.w, "\r\033[K%s", formatProgress(pr))
	p.shown = true
}

// Done clears the line.
func (p *progressLine) Done() {
	if p == nil || !p.shown {
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
	p.shown = false
}

func formatProgress(pr types.Progress) string {
	path := truncatePath(pr.CurrentPath, progressPathMax)
	if pr.Remaining > 0 || pr.RemainingBytes > 0 {
		return fmt.Sprintf("%s: %s done, %s left (%s)  %s",
			pr.Phase, humanize.Comma(pr.Done), humanize.Comma(pr.Remaining),
			types.FormatSize(pr.RemainingBytes), path)
	}
	return fmt.Sprintf("%s: %s files  %s", pr.Phase, humanize.Comma(pr.Done), path)
}

// truncatePath keeps the tail of path, which carries the file name.
func truncatePath(path string, max int) string {
	runes := []rune(path)
	if len(runes) <= max {
		return path
	}
	return "..." + string(runes[len(runes)-max+3:])
}
