package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksummer/pkg/checksummer/report"
)

var pruneCmd = &cobra.Command{
	Use:   "prune <store> deleted|changed",
	Short: "Drop deleted records or reset changed ones",
	Long: `Prune the store.

  deleted   remove records of files marked deleted
  changed   clear the checksum of files whose content changed, so the next
            checksum run records their new content`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"deleted", "changed"},
	RunE:      runPrune,
}

var pruneDryRun bool

func init() {
	pruneCmd.Flags().BoolVarP(&pruneDryRun, "dry-run", "d", false, "list the affected records without changing the store")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	var kind report.Kind
	switch args[1] {
	case "deleted", "missing":
		kind = report.KindMissing
	case "changed", "mismatched":
		kind = report.KindMismatched
	default:
		return fmt.Errorf("prune target must be 'deleted' or 'changed', got %q", args[1])
	}

	return withApp(cmd, args[0], func(ctx context.Context, a *app) error {
		if pruneDryRun {
			return pruneDryRunReport(ctx, a, kind)
		}

		var lines []string
		if kind == report.KindMissing {
			res, err := a.session.PruneDeleted(ctx)
			if err != nil {
				return err
			}
			lines = describeResult(res)
		} else {
			res, err := a.session.PruneChanged(ctx)
			if err != nil {
				return err
			}
			lines = describeResult(res)
		}
		printLines(lines)
		return nil
	})
}

func pruneDryRunReport(ctx context.Context, a *app, kind report.Kind) error {
	if err := a.useRoot(ctx); err != nil {
		printVerbose("no root: %v", err)
	}
	res, err := a.report(ctx, kind, report.Options{})
	if err != nil {
		return err
	}
	res.Title += " (dry run)"
	data, err := a.render(res, a.cfg.Output.Format)
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}
