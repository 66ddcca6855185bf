package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/checksummer/pkg/checksummer/config"
	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
	"github.com/jamesainslie/checksummer/pkg/checksummer/pager"
	"github.com/jamesainslie/checksummer/pkg/checksummer/report"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "checksummer <store> [search terms...]",
		Short: "Track file checksums and find deleted or changed files",
		Long: `Checksummer keeps an inventory of every file under a directory: its path,
size, modification time and SHA-256 checksum. Later runs re-verify the
checksums and report files that were deleted or whose content changed.

The inventory lives in the <store> database file. Without search terms,
checksummer opens an interactive menu. With search terms, it prints the
tracked files whose path contains them and exits.

Examples:
  checksummer ~/photos.db                  # Interactive menu
  checksummer ~/photos.db --root ~/Photos  # Track ~/Photos in a new store
  checksummer ~/photos.db holiday 2019     # Search for "holiday 2019"
  checksummer verify ~/photos.db           # Re-verify every checksum
  checksummer report ~/photos.db duplicates`,
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: initializeLogging,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Close() },
		RunE:              runRoot,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/checksummer/config.yaml)")
	flags.String("root", "", "directory tracked by the store (saved in the store)")
	flags.StringP("format", "o", "", "output format: "+strings.Join(availableFormats(), ", "))
	flags.IntP("limit", "l", 0, "maximum rows per report (0 = all)")
	flags.String("match", "", "only report paths matching this glob")
	flags.String("min-size", "", "only report files at least this large (e.g. 100M, 1G)")
	flags.Int("batch-size", 0, "record writes per store transaction")
	flags.StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	flags.IntP("workers", "w", 0, "directory walker workers")
	flags.Bool("no-pager", false, "never page output")
	flags.Bool("no-journal", false, "do not record runs in the journal")
	flags.BoolP("quiet", "q", false, "minimal output")
	flags.BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("root", flags.Lookup("root"))
	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
	_ = viper.BindPFlag("output.limit", flags.Lookup("limit"))
	_ = viper.BindPFlag("match", flags.Lookup("match"))
	_ = viper.BindPFlag("min_size", flags.Lookup("min-size"))
	_ = viper.BindPFlag("batch_size", flags.Lookup("batch-size"))
	_ = viper.BindPFlag("exclude", flags.Lookup("exclude"))
	_ = viper.BindPFlag("workers", flags.Lookup("workers"))
	_ = viper.BindPFlag("no_pager", flags.Lookup("no-pager"))
	_ = viper.BindPFlag("no_journal", flags.Lookup("no-journal"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	v := viper.GetViper()
	if err := config.Configure(v, cfgFile); err != nil {
		printError("%v", err)
		return
	}
	if err := config.Read(v); err != nil {
		printError("%v", err)
	}
}

// loadConfig decodes the merged flags, environment and config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if viper.GetBool("no_pager") {
		cfg.Pager.Enabled = false
	}
	if viper.GetBool("no_journal") {
		cfg.Journal.Enabled = false
	}
	return cfg, nil
}

// initializeLogging is the PersistentPreRunE hook. It creates the data and
// state directories and starts file logging; --verbose mirrors it to stderr.
func initializeLogging(_ *cobra.Command, _ []string) error {
	for _, dir := range []string{config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logCfg, err := cfg.Logging.Logging()
	if err != nil {
		return err
	}
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		// Logging is not worth refusing to run over.
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// runRoot opens the interactive menu, or runs a search and exits when
// search terms follow the store path.
func runRoot(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, cfg, args[0], os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if terms := args[1:]; len(terms) > 0 {
		return runSearch(ctx, a, strings.Join(terms, " "), os.Stdout)
	}

	pg := pager.New(os.Stdout,
		pager.WithEnabled(cfg.Pager.Enabled),
		pager.WithCommand(cfg.Pager.Command))
	return newMenu(a, os.Stdin, os.Stdout, pg).run(ctx)
}

// runSearch prints matches for term directly, without paging.
func runSearch(ctx context.Context, a *app, term string, out io.Writer) error {
	// Search reads only the store; without a root, rows show relative paths.
	if err := a.useRoot(ctx); err != nil && !errors.Is(err, engine.ErrNoRoot) {
		return err
	}

	opts, err := reportOptions(a.cfg)
	if err != nil {
		return err
	}
	opts.Term = term

	res, err := a.report(ctx, report.KindSearch, opts)
	if err != nil {
		return err
	}
	data, err := a.render(res, a.cfg.Output.Format)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
