package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status <store>",
	Short: "Show inventory totals",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, args[0], func(ctx context.Context, a *app) error {
		if err := a.useRoot(ctx); err != nil && !errors.Is(err, engine.ErrNoRoot) {
			return err
		}

		sum, err := a.store.Summary(ctx)
		if err != nil {
			return err
		}

		printInfo("store:      %s", a.store.Path())
		printLines(statusLines(a.session.Root(), sum))
		if getVerbose() {
			version, err := a.store.SchemaVersion(ctx)
			if err == nil {
				printVerbose("schema version %d", version)
			}
		}
		return nil
	})
}
