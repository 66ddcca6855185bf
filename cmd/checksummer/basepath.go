package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksummer/pkg/checksummer/config"
	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
)

var basepathCmd = &cobra.Command{
	Use:   "root <store> [directory]",
	Short: "Show or change the directory tracked by a store",
	Long: `Without a directory, print the store's root.

With a directory, make it the root. Existing records keep their relative
paths and are checked against the new root from then on, which suits a tree
that was moved or remounted elsewhere. Use --reset to clear them instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBasepath,
}

var basepathReset bool

func init() {
	basepathCmd.Flags().BoolVar(&basepathReset, "reset", false, "remove every tracked record before changing the root")
	rootCmd.AddCommand(basepathCmd)
}

func runBasepath(cmd *cobra.Command, args []string) error {
	return withApp(cmd, args[0], func(ctx context.Context, a *app) error {
		if len(args) == 1 {
			root, err := a.session.LoadRoot(ctx)
			if errors.Is(err, engine.ErrNoRoot) {
				printInfo("(not set)")
				return nil
			}
			if err != nil {
				return err
			}
			printInfo("%s", root)
			return nil
		}

		dir, err := config.ExpandPath(args[1])
		if err != nil {
			return err
		}
		res, err := a.session.SetRoot(ctx, dir, basepathReset)
		if err != nil {
			return err
		}
		printInfo("Root set to %s", a.session.Root())
		printLines(describeResult(res))
		return nil
	})
}
