package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jamesainslie/checksummer/pkg/checksummer/config"
	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
	"github.com/jamesainslie/checksummer/pkg/checksummer/output"
	"github.com/jamesainslie/checksummer/pkg/checksummer/pager"
	"github.com/jamesainslie/checksummer/pkg/checksummer/report"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// errQuit ends the menu loop.
var errQuit = errors.New("quit")

const (
	sectionCollection = "Collection"
	sectionAnalysis   = "Analysis"
	sectionOther      = ""
)

// menuEntry is one command of the interactive menu.
type menuEntry struct {
	code    string
	section string
	label   func(sum types.Summary) string
	visible func(sum types.Summary) bool
	run     func(m *menu, ctx context.Context, sum types.Summary) error
}

func always(types.Summary) bool { return true }
func hasRecords(sum types.Summary) bool { return sum.Total > 0 }
func hasMissing(sum types.Summary) bool { return sum.Missing > 0 }
func hasMismatch(sum types.Summary) bool { return sum.Mismatches > 0 }

func fixed(label string) func(types.Summary) string {
	return func(types.Summary) string { return label }
}

// menuEntries lists the commands in display order.
func menuEntries() []menuEntry {
	return []menuEntry{
		{"cf", sectionCollection, fixed("collect files"), always, (*menu).collect},
		{"cd", sectionCollection, fixed("check files in database"), hasRecords, (*menu).stat},
		{"mc", sectionCollection, fixed("make checksums"), hasRecords, (*menu).checksum},
		{"rc", sectionCollection, fixed("reindex & check all files"), hasRecords, (*menu).verify},

		{"s", sectionAnalysis, fixed("search"), hasRecords, (*menu).search},
		{"r", sectionAnalysis, fixed("rank by size"), hasRecords, showReport(report.KindSize)},
		{"m", sectionAnalysis, fixed("recently modified"), hasRecords, showReport(report.KindRecent)},
		{"ld", sectionAnalysis, fixed("list duplicates"), hasRecords, showReport(report.KindDuplicates)},
		{"d", sectionAnalysis, func(sum types.Summary) string {
			return fmt.Sprintf("show %d deleted", sum.Missing)
		}, hasMissing, showReport(report.KindMissing)},
		{"pd", sectionAnalysis, fixed("prune deleted"), hasMissing, (*menu).pruneDeleted},
		{"ch", sectionAnalysis, func(sum types.Summary) string {
			return fmt.Sprintf("show %d changed", sum.Mismatches)
		}, hasMismatch, showReport(report.KindMismatched)},
		{"pc", sectionAnalysis, fixed("prune changed"), hasMismatch, (*menu).pruneChanged},

		{"cb", sectionOther, fixed("change basepath"), always, (*menu).changeRoot},
		{"q", sectionOther, fixed("exit"), always, func(*menu, context.Context, types.Summary) error {
			return errQuit
		}},
	}
}

// menu is the interactive loop: print the header and the commands that
// apply, read a code, run its handler, repeat.
type menu struct {
	app     *app
	in      *bufio.Scanner
	out     io.Writer
	pager   *pager.Pager
	entries []menuEntry
}

func newMenu(a *app, in io.Reader, out io.Writer, pg *pager.Pager) *menu {
	return &menu{
		app:     a,
		in:      bufio.NewScanner(in),
		out:     out,
		pager:   pg,
		entries: menuEntries(),
	}
}

// run loops until the operator exits or input ends.
func (m *menu) run(ctx context.Context) error {
	if err := m.ensureRoot(ctx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sum, err := m.app.store.Summary(ctx)
		if err != nil {
			return err
		}
		visible := m.visible(sum)
		m.printMenu(sum, visible)

		code, err := m.readLine("> ")
		if err != nil {
			fmt.Fprintln(m.out)
			return ignoreEOF(err)
		}
		code = strings.ToLower(code)
		if code == "" {
			continue
		}

		entry, ok := lookupEntry(visible, code)
		if !ok {
			fmt.Fprintf(m.out, "Unknown command %q\n\n", code)
			continue
		}

		err = m.dispatch(ctx, entry, sum)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, io.EOF):
			fmt.Fprintln(m.out)
			return nil
		case err != nil:
			fmt.Fprintf(m.out, "Error: %v\n", err)
		}
		fmt.Fprintln(m.out)
	}
}

// dispatch runs one handler. An interrupt cancels the handler only.
func (m *menu) dispatch(ctx context.Context, entry menuEntry, sum types.Summary) error {
	runCtx, stop := withInterrupt(ctx)
	defer stop()

	err := entry.run(m, runCtx, sum)
	m.app.progress.Done()

	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		fmt.Fprintln(m.out, "Interrupted; work committed before the interrupt was kept.")
		return nil
	}
	return err
}

func (m *menu) visible(sum types.Summary) []menuEntry {
	var out []menuEntry
	for _, e := range m.entries {
		if e.visible(sum) {
			out = append(out, e)
		}
	}
	return out
}

func lookupEntry(entries []menuEntry, code string) (menuEntry, bool) {
	for _, e := range entries {
		if e.code == code {
			return e, true
		}
	}
	return menuEntry{}, false
}

func (m *menu) printMenu(sum types.Summary, entries []menuEntry) {
	fmt.Fprintln(m.out, output.TitleStyle.Render("checksummer"))
	for _, line := range statusLines(m.app.session.Root(), sum) {
		fmt.Fprintln(m.out, line)
	}

	section := "-"
	for _, e := range entries {
		if e.section != section {
			section = e.section
			if section == sectionOther {
				fmt.Fprintln(m.out)
			} else {
				fmt.Fprintln(m.out, output.TitleStyle.Render("=== "+section+" ==="))
			}
		}
		fmt.Fprintf(m.out, "  %-4s %s\n", e.code, e.label(sum))
	}
}

// readLine prompts and returns the trimmed line. It returns io.EOF when
// input ends.
func (m *menu) readLine(prompt string) (string, error) {
	fmt.Fprint(m.out, prompt)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func (m *menu) confirm(question string) (bool, error) {
	answer, err := m.readLine(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (m *menu) println(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
}

// ensureRoot loads the stored basepath, prompting for one until a valid
// directory is given.
func (m *menu) ensureRoot(ctx context.Context) error {
	err := m.app.useRoot(ctx)
	if !errors.Is(err, engine.ErrNoRoot) {
		return err
	}

	fmt.Fprintln(m.out, "No basepath is set for this store.")
	for {
		line, err := m.readLine("basepath: ")
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if err := m.setRoot(ctx, line, false); err != nil {
			fmt.Fprintf(m.out, "Error: %v\n", err)
			continue
		}
		return nil
	}
}

func (m *menu) setRoot(ctx context.Context, path string, reset bool) error {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	res, err := m.app.session.SetRoot(ctx, expanded, reset)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Basepath set to %s\n", m.app.session.Root())
	m.println(describeResult(res))
	return nil
}

func (m *menu) collect(ctx context.Context, _ types.Summary) error {
	res, err := m.app.session.Collect(ctx)
	m.app.progress.Done()
	m.println(describeResult(res))
	return err
}

func (m *menu) stat(ctx context.Context, _ types.Summary) error {
	res, err := m.app.session.Stat(ctx)
	m.app.progress.Done()
	m.println(describeResult(res))
	return err
}

func (m *menu) checksum(ctx context.Context, _ types.Summary) error {
	res, err := m.app.session.Checksum(ctx)
	m.app.progress.Done()
	m.println(describeResult(res))
	return err
}

func (m *menu) verify(ctx context.Context, _ types.Summary) error {
	vr, err := m.app.session.Verify(ctx)
	m.app.progress.Done()
	m.println(describeVerify(vr))
	return err
}

func (m *menu) search(ctx context.Context, _ types.Summary) error {
	term, err := m.readLine("search for: ")
	if err != nil {
		return err
	}
	if term == "" {
		fmt.Fprintln(m.out, "No search term given.")
		return nil
	}
	return m.report(ctx, report.KindSearch, term)
}

func showReport(kind report.Kind) func(*menu, context.Context, types.Summary) error {
	return func(m *menu, ctx context.Context, _ types.Summary) error {
		return m.report(ctx, kind, "")
	}
}

// report renders a report and sends it through the pager.
func (m *menu) report(ctx context.Context, kind report.Kind, term string) error {
	opts, err := reportOptions(m.app.cfg)
	if err != nil {
		return err
	}
	opts.Term = term

	res, err := m.app.report(ctx, kind, opts)
	if err != nil {
		return err
	}
	data, err := m.app.render(res, m.app.cfg.Output.Format)
	if err != nil {
		return err
	}
	return m.pager.Page(data)
}

func (m *menu) pruneDeleted(ctx context.Context, sum types.Summary) error {
	ok, err := m.confirm(fmt.Sprintf("Remove %d deleted records from the store?", sum.Missing))
	if err != nil || !ok {
		return err
	}
	res, err := m.app.session.PruneDeleted(ctx)
	if err != nil {
		return err
	}
	m.println(describeResult(res))
	return nil
}

func (m *menu) pruneChanged(ctx context.Context, sum types.Summary) error {
	ok, err := m.confirm(fmt.Sprintf("Reset %d changed records so they are hashed again?", sum.Mismatches))
	if err != nil || !ok {
		return err
	}
	res, err := m.app.session.PruneChanged(ctx)
	if err != nil {
		return err
	}
	m.println(describeResult(res))
	return nil
}

// changeRoot switches the basepath. Existing records are kept and resolved
// against the new basepath unless the operator clears them.
func (m *menu) changeRoot(ctx context.Context, sum types.Summary) error {
	path, err := m.readLine("new basepath: ")
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(m.out, "Basepath unchanged.")
		return nil
	}

	reset := false
	if sum.Total > 0 {
		reset, err = m.confirm(fmt.Sprintf("Clear the %d tracked records?", sum.Total))
		if err != nil {
			return err
		}
	}
	return m.setRoot(ctx, path, reset)
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
