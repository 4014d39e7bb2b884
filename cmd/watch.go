package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mailsmith/internal/build"
	"github.com/conneroisu/mailsmith/internal/config"
	"github.com/conneroisu/mailsmith/internal/logging"
	"github.com/conneroisu/mailsmith/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild the templates when the registry or config changes",
	Long: `Compile every template, then watch the registry directory (or watch.paths)
and the config file, rebuilding after each debounced batch of changes.

Examples:
  mailsmith watch                 # Watch the registry directory
  mailsmith watch -v              # Print each changed file`,
	RunE: runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
}

// rebuilder compiles on demand and keeps totals across runs.
type rebuilder struct {
	cfg     *config.Config
	logger  logging.Logger
	printer *reportPrinter
	metrics *build.Metrics
}

func (r *rebuilder) run(ctx context.Context) {
	start := time.Now()
	report, err := compileTemplates(ctx, r.cfg, r.logger, nil)
	if report != nil {
		r.metrics.RecordRun(report, time.Since(start))
		r.printer.Print(report)
	}
	if err != nil {
		r.logger.Error(ctx, err, "rebuild failed")
	}
}

// reloadConfig re-reads the config file. On error the previous config is kept.
func (r *rebuilder) reloadConfig(ctx context.Context) {
	if err := viper.ReadInConfig(); err != nil {
		r.logger.Warn(ctx, err, "config reload failed, keeping previous configuration")
		return
	}
	cfg, err := config.Load()
	if err != nil {
		r.logger.Warn(ctx, err, "config reload failed, keeping previous configuration")
		return
	}
	r.cfg = cfg
}

func (r *rebuilder) handle(configFile string) watcher.ChangeHandler {
	var isConfig watcher.FileFilter
	if configFile != "" {
		isConfig = watcher.OnlyFiles(configFile)
	}
	return func(ctx context.Context, events []watcher.ChangeEvent) error {
		if watchVerbose {
			for _, event := range events {
				fmt.Fprintf(r.printer.out, "%s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Fprintf(r.printer.out, "%d file(s) changed\n", len(events))
		}

		if isConfig != nil && touches(events, isConfig) {
			r.reloadConfig(ctx)
		}
		r.run(ctx)
		return nil
	}
}

// touches reports whether any event in the batch passes match.
func touches(events []watcher.ChangeEvent, match watcher.FileFilter) bool {
	for _, event := range events {
		if match(event.Path) {
			return true
		}
	}
	return false
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &rebuilder{
		cfg:     cfg,
		logger:  logger,
		printer: newReportPrinter(cmd.OutOrStdout()),
		metrics: build.NewMetrics(),
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.RegistryFilter)
	fileWatcher.AddFilter(watcher.NoTempFilter)

	configFile := viper.ConfigFileUsed()
	fileWatcher.AddHandler(r.handle(configFile))

	paths := append([]string{}, cfg.Watch.Paths...)
	if configFile != "" {
		paths = append(paths, configFile)
	}
	for _, path := range paths {
		if err := fileWatcher.AddPath(path); err != nil {
			logger.Warn(ctx, err, "failed to watch path", "path", path)
			continue
		}
		logger.Info(ctx, "watching", "path", path)
	}

	r.run(ctx)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()

	stats := r.metrics.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d runs, %d templates built, %d failed, %d warnings, %s average\n",
		stats.Runs, stats.TemplatesBuilt, stats.TemplatesFailed, stats.Warnings, stats.AverageRunTime.Round(time.Millisecond))
	return nil
}
