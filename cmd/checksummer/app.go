package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/jamesainslie/checksummer/pkg/checksummer/config"
	"github.com/jamesainslie/checksummer/pkg/checksummer/engine"
	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
	"github.com/jamesainslie/checksummer/pkg/checksummer/output"
	"github.com/jamesainslie/checksummer/pkg/checksummer/report"
	"github.com/jamesainslie/checksummer/pkg/checksummer/store"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// app ties one opened store to a session and the optional journal for the
// lifetime of a command.
type app struct {
	cfg      *config.Config
	store    *store.Store
	journal  *journal.Journal
	session  *engine.Session
	progress *progressLine
	rootFlag string
	out      io.Writer
	errOut   io.Writer
	logger   *logging.Logger
}

// openApp opens the store at storePath and builds a session from cfg.
// A journal that cannot be opened is logged and skipped.
func openApp(ctx context.Context, cfg *config.Config, storePath string, out, errOut io.Writer) (*app, error) {
	st, err := store.Open(ctx, storePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		store:    st,
		rootFlag: viper.GetString("root"),
		out:      out,
		errOut:   errOut,
		logger:   logging.Get("cli"),
	}

	opts := []engine.Option{
		engine.WithBatchSize(cfg.BatchSize),
		engine.WithExclude(cfg.Exclude...),
		engine.WithWorkers(cfg.Workers),
	}
	if !getQuiet() {
		a.progress = newProgressLine(errOut)
		opts = append(opts, engine.WithProgress(a.progress.Update))
	}
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			a.logger.Warn("journal unavailable", "path", cfg.Journal.Path, "error", err)
			printVerbose("journal unavailable: %v", err)
		} else {
			a.journal = j
			opts = append(opts, engine.WithRecorder(j))
		}
	}

	a.session = engine.New(st, opts...)
	return a, nil
}

// Close releases the journal and the store.
func (a *app) Close() error {
	a.progress.Done()

	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// useRoot makes the session root the --root flag, saving it when it differs
// from the stored one, or else the stored root. It returns engine.ErrNoRoot
// when neither exists.
func (a *app) useRoot(ctx context.Context) error {
	if a.rootFlag == "" {
		_, err := a.session.LoadRoot(ctx)
		return err
	}

	abs, err := engine.ResolveRoot(a.rootFlag)
	if err != nil {
		return err
	}
	stored, err := a.session.LoadRoot(ctx)
	if err != nil && !errors.Is(err, engine.ErrNoRoot) {
		return err
	}
	if stored == abs {
		return nil
	}
	_, err = a.session.SetRoot(ctx, abs, false)
	return err
}

// requireRoot is useRoot for commands that cannot run without a root.
func (a *app) requireRoot(ctx context.Context) error {
	err := a.useRoot(ctx)
	if errors.Is(err, engine.ErrNoRoot) {
		return fmt.Errorf("%w: set one with --root or 'checksummer root %s <dir>'", err, a.store.Path())
	}
	return err
}

func (a *app) report(ctx context.Context, kind report.Kind, opts report.Options) (*output.Result, error) {
	return report.New(a.store, a.session.Root()).Run(ctx, kind, opts)
}

// render formats res. The template format uses output.template from the
// config when one is set.
func (a *app) render(res *output.Result, format string) ([]byte, error) {
	if format == "" {
		format = config.DefaultFormat
	}

	var (
		formatter output.Formatter
		err       error
	)
	if format == "template" && a.cfg.Output.Template != "" {
		formatter = output.NewTemplateFormatter(a.cfg.Output.Template)
	} else {
		formatter, err = output.Get(format)
		if err != nil {
			return nil, fmt.Errorf("unknown output format %q: available formats are %v", format, output.Available())
		}
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, res); err != nil {
		return nil, fmt.Errorf("failed to format output: %w", err)
	}
	return buf.Bytes(), nil
}

// reportOptions builds report options from the config and the filter flags.
func reportOptions(cfg *config.Config) (report.Options, error) {
	opts := report.Options{
		Limit: cfg.Output.Limit,
		Match: viper.GetString("match"),
	}
	if s := viper.GetString("min_size"); s != "" {
		size, err := types.ParseSize(s)
		if err != nil {
			return opts, fmt.Errorf("invalid min-size %q: %w", s, err)
		}
		opts.MinSize = size
	}
	return opts, nil
}

func availableFormats() []string {
	return output.Available()
}

// withInterrupt cancels ctx on SIGINT or SIGTERM. Work committed before the
// signal is kept.
func withInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
