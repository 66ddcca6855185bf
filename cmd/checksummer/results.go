package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// maxListed caps the paths printed under a phase summary.
const maxListed = 20

// describeResult renders a phase result as human-readable lines.
func describeResult(res *engine.Result) []string {
	if res == nil {
		return nil
	}
	elapsed := res.Elapsed.Round(time.Millisecond)

	var lines []string
	switch res.Phase {
	case engine.PhaseCollect:
		lines = append(lines, fmt.Sprintf("Collected %s files (%s new) in %s",
			humanize.Comma(res.Processed), humanize.Comma(res.Added), elapsed))
		if res.ScanErrors > 0 {
			lines = append(lines, fmt.Sprintf("  %d entries could not be read", res.ScanErrors))
		}
	case engine.PhaseStat:
		lines = append(lines, fmt.Sprintf("Checked %s files: %s present, %s missing in %s",
			humanize.Comma(res.Processed), humanize.Comma(res.Present), humanize.Comma(res.Missing), elapsed))
	case engine.PhaseChecksum:
		lines = append(lines, fmt.Sprintf("Hashed %s files (%s) in %s",
			humanize.Comma(res.Hashed), types.FormatSize(res.HashedBytes), elapsed))
		if res.Demoted > 0 {
			lines = append(lines, fmt.Sprintf("  %s unreadable files marked missing", humanize.Comma(res.Demoted)))
		}
	case engine.PhaseVerify:
		lines = append(lines, fmt.Sprintf("Verified %s files: %s match, %s changed in %s",
			humanize.Comma(res.Processed), humanize.Comma(res.Matches), humanize.Comma(res.Mismatches), elapsed))
		if res.Demoted > 0 {
			lines = append(lines, fmt.Sprintf("  %s unreadable files marked missing", humanize.Comma(res.Demoted)))
		}
		lines = append(lines, listPaths("changed", res.Mismatched)...)
	case engine.PhasePruneDeleted:
		lines = append(lines, fmt.Sprintf("Removed %s deleted records", humanize.Comma(res.Pruned)))
		lines = append(lines, listPaths("removed", res.Records)...)
	case engine.PhasePruneChanged:
		lines = append(lines, fmt.Sprintf("Reset %s changed records; the next checksum run re-hashes them",
			humanize.Comma(res.Pruned)))
		lines = append(lines, listPaths("reset", res.Records)...)
	case engine.PhaseRoot:
		if res.Pruned > 0 {
			lines = append(lines, fmt.Sprintf("Cleared %s records", humanize.Comma(res.Pruned)))
		}
	}
	return lines
}

// describeVerify renders every step of a verify run.
func describeVerify(vr *engine.VerifyResult) []string {
	if vr == nil {
		return nil
	}
	var lines []string
	for _, res := range []*engine.Result{vr.Collect, vr.Stat, vr.Checksum, vr.Verify} {
		lines = append(lines, describeResult(res)...)
	}
	return lines
}

func listPaths(verb string, recs []types.FileRecord) []string {
	if len(recs) == 0 {
		return nil
	}
	lines := make([]string, 0, min(len(recs), maxListed)+1)
	for i, rec := range recs {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("  ... and %d more %s", len(recs)-maxListed, verb))
			break
		}
		lines = append(lines, "  "+verb+": "+rec.Path)
	}
	return lines
}

// statusLines summarises the inventory for the status command and the menu.
func statusLines(root string, sum types.Summary) []string {
	if root == "" {
		root = "(not set)"
	}
	lines := []string{
		fmt.Sprintf("basepath:   %s", root),
		fmt.Sprintf("tracked:    %s files, %s", humanize.Comma(sum.Total), types.FormatSize(sum.TotalBytes)),
	}
	var states []string
	add := func(n int64, label string) {
		if n > 0 {
			states = append(states, humanize.Comma(n)+" "+label)
		}
	}
	add(sum.Present, "present")
	add(sum.Missing, "deleted")
	add(sum.Unhashed, "unhashed")
	add(sum.Matches, "verified")
	add(sum.Mismatches, "changed")
	if len(states) > 0 {
		lines = append(lines, "status:     "+strings.Join(states, ", "))
	}
	return lines
}
