package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksummer/pkg/checksummer/pager"
	"github.com/jamesainslie/checksummer/pkg/checksummer/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <store> <search|size|recent|duplicates|missing|mismatched> [term...]",
	Short: "Print a report of the tracked files",
	Long: `Print a read-only report of the store.

  search       files whose path contains the term, largest first
  size         largest files first
  recent       present files, most recently modified first
  duplicates   files sharing a checksum, grouped, largest groups first
  missing      files marked deleted (alias: deleted)
  mismatched   files whose content changed (alias: changed)

Use -o to choose the output format, --limit to cap the rows and --match to
keep only paths matching a glob.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runReport,
}

var reportSummary bool

func init() {
	reportCmd.Flags().BoolVar(&reportSummary, "summary", false, "include inventory totals")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	kind, err := report.ParseKind(args[1])
	if err != nil {
		return err
	}

	return withApp(cmd, args[0], func(ctx context.Context, a *app) error {
		if err := a.useRoot(ctx); err != nil {
			printVerbose("no root, showing relative paths: %v", err)
		}

		opts, err := reportOptions(a.cfg)
		if err != nil {
			return err
		}
		opts.Term = strings.Join(args[2:], " ")
		opts.Summary = reportSummary

		res, err := a.report(ctx, kind, opts)
		if err != nil {
			return err
		}
		data, err := a.render(res, a.cfg.Output.Format)
		if err != nil {
			return err
		}

		return pager.New(a.out,
			pager.WithEnabled(a.cfg.Pager.Enabled),
			pager.WithCommand(a.cfg.Pager.Command)).Page(data)
	})
}
