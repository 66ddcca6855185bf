package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksummer/pkg/checksummer/config"
	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	Long: `View the journal of collect, stat, checksum, verify, prune and root runs.

Each entry records when the run happened, which store and root it touched,
its counters, and the records it pruned or found changed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific operation",
	Long:  `Display detailed information about a specific operation by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyDays  int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyCleanCmd.Flags().IntVar(&historyDays, "days", 0, "retention in days (default: journal.retention_days)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openJournal opens the configured journal.
func openJournal() (*journal.Journal, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, cfg, nil
}

// runHistory lists recent operations.
func runHistory(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	j, _, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		return nil
	}

	fmt.Printf("\n%-42s  %-14s  %-20s  %s\n", "ID", "STORE", "WHEN", "RESULT")
	fmt.Println(strings.Repeat("-", 100))

	for _, entry := range entries {
		fmt.Printf("%-42s  %-14s  %-20s  %s\n",
			truncateString(entry.ID, 42),
			truncateString(filepath.Base(entry.Store), 14),
			humanize.Time(entry.Timestamp),
			summarizeEntry(entry),
		)
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'checksummer history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays details of a specific operation.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	j, _, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	entry, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Println("\nOperation Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Timestamp:  %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Operation:  %s\n", entry.Operation)
	fmt.Printf("Store:      %s\n", entry.Store)
	fmt.Printf("Root:       %s\n", entry.Root)
	fmt.Printf("Duration:   %s\n", entry.Duration)
	fmt.Printf("Result:     %s\n", summarizeEntry(*entry))
	if entry.Error != "" {
		fmt.Printf("Error:      %s\n", entry.Error)
	}

	if len(entry.Files) > 0 {
		fmt.Println("\nFiles:")
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("%-12s  %s\n", "SIZE", "PATH")
		fmt.Println(strings.Repeat("-", 60))

		limit := min(len(entry.Files), 50)
		for _, file := range entry.Files[:limit] {
			fmt.Printf("%-12s  %s\n", types.FormatSize(file.Size), file.Path)
		}
		if len(entry.Files) > limit {
			fmt.Printf("\n... and %d more files\n", len(entry.Files)-limit)
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	j, cfg, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	retentionDays := historyDays
	if retentionDays <= 0 {
		retentionDays = cfg.Journal.RetentionDays
	}
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := j.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// summarizeEntry renders the counters that apply to the entry's operation.
func summarizeEntry(e journal.Entry) string {
	s := e.Summary
	var parts []string
	switch e.Operation {
	case journal.OpCollect:
		parts = append(parts, fmt.Sprintf("%s files, %s new", humanize.Comma(s.Processed), humanize.Comma(s.Added)))
	case journal.OpStat:
		parts = append(parts, fmt.Sprintf("%s present, %s missing", humanize.Comma(s.Present), humanize.Comma(s.Missing)))
	case journal.OpChecksum:
		parts = append(parts, fmt.Sprintf("%s hashed (%s)", humanize.Comma(s.Hashed), types.FormatSize(s.HashedBytes)))
	case journal.OpVerify:
		parts = append(parts, fmt.Sprintf("%s match, %s changed", humanize.Comma(s.Matches), humanize.Comma(s.Mismatches)))
	case journal.OpPruneDeleted, journal.OpPruneChanged:
		parts = append(parts, fmt.Sprintf("%s pruned", humanize.Comma(s.Pruned)))
	case journal.OpRoot:
		parts = append(parts, "root "+e.Root)
	}
	if e.Error != "" {
		parts = append(parts, "failed")
	}
	return strings.Join(parts, ", ")
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
