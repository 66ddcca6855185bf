package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
)

var collectCmd = &cobra.Command{
	Use:   "collect <store>",
	Short: "Track files added under the root",
	Long: `Walk the root and add every file not yet in the store.

Records of files that no longer exist are kept; run 'stat' to mark them
deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhase(engine.PhaseCollect),
}

var statCmd = &cobra.Command{
	Use:   "stat <store>",
	Short: "Refresh size and modification time of every record",
	Long: `Stat every tracked file. Files that exist are marked present with their
current size and modification time; files that do not are marked deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhase(engine.PhaseStat),
}

var checksumCmd = &cobra.Command{
	Use:   "checksum <store>",
	Short: "Hash present files that have no checksum yet",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhase(engine.PhaseChecksum),
}

var verifyCmd = &cobra.Command{
	Use:   "verify <store>",
	Short: "Collect, stat and checksum, then re-verify every checksum",
	Long: `Run collect, stat and checksum, then re-hash every present file and compare
the result with the stored checksum. Files whose content changed are flagged
and keep their old checksum until 'prune changed' resets them.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhase(engine.PhaseVerify),
}

func init() {
	rootCmd.AddCommand(collectCmd, statCmd, checksumCmd, verifyCmd)
}

// withApp opens the store named on the command line, runs fn and closes
// the store. SIGINT cancels fn's context.
func withApp(cmd *cobra.Command, storePath string, fn func(ctx context.Context, a *app) error) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := withInterrupt(ctx)
	defer stop()

	a, err := openApp(ctx, cfg, storePath, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// runPhase returns the RunE of a reconciliation phase command.
func runPhase(phase string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args[0], func(ctx context.Context, a *app) error {
			if err := a.requireRoot(ctx); err != nil {
				return err
			}
			printVerbose("Running %s on %s", phase, a.session.Root())

			lines, err := runSessionPhase(ctx, a.session, phase)
			a.progress.Done()
			printLines(lines)

			if errors.Is(err, context.Canceled) {
				printInfo("Interrupted; work committed before the interrupt was kept.")
				return nil
			}
			return err
		})
	}
}

func runSessionPhase(ctx context.Context, s *engine.Session, phase string) ([]string, error) {
	var (
		res *engine.Result
		err error
	)
	switch phase {
	case engine.PhaseCollect:
		res, err = s.Collect(ctx)
	case engine.PhaseStat:
		res, err = s.Stat(ctx)
	case engine.PhaseChecksum:
		res, err = s.Checksum(ctx)
	case engine.PhaseVerify:
		vr, err := s.Verify(ctx)
		return describeVerify(vr), err
	default:
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
	return describeResult(res), err
}

func printLines(lines []string) {
	for _, line := range lines {
		printInfo("%s", line)
	}
}
