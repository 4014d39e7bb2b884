package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mailsmith/internal/artifact"
	"github.com/conneroisu/mailsmith/internal/build"
	"github.com/conneroisu/mailsmith/internal/config"
	"github.com/conneroisu/mailsmith/internal/emails"
	"github.com/conneroisu/mailsmith/internal/logging"
	"github.com/conneroisu/mailsmith/internal/registry"
	"github.com/conneroisu/mailsmith/internal/renderer"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Compile every registered email template",
	Long: `Compile the templates listed in the registry into Go template artifacts.

The output directory is cleared of previous artifacts first, then each template
is rendered, substituted, reconstructed and written as <output>_html.tmpl and
<output>_text.tmpl. A failing template does not stop the others; the command
exits non-zero when any template failed.

Examples:
  mailsmith build                        # Compile everything
  mailsmith build --only new-signin      # Compile one template, keep other artifacts
  mailsmith build -o ./out -v            # Custom output directory, list warnings`,
	RunE: runBuild,
}

var (
	buildOnly    []string
	buildVerbose bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringSliceVar(&buildOnly, "only", nil, "Compile only the named templates (repeatable); skips cleanup")
	buildCmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Directory the artifacts are written to")
	buildCmd.Flags().StringP("registry", "r", config.DefaultRegistryPath, "Registry document (yaml or toml)")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "List every warning")

	_ = viper.BindPFlag("output.dir", buildCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("registry.path", buildCmd.Flags().Lookup("registry"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := compileTemplates(ctx, cfg, logger, buildOnly)
	if report != nil {
		printer := newReportPrinter(cmd.OutOrStdout())
		printer.Print(report)
		if buildVerbose {
			printer.PrintWarnings(report)
		}
	}
	if err != nil {
		return err
	}

	if !report.OK() {
		return fmt.Errorf("%d of %d templates failed", len(report.Failed()), len(report.Results))
	}
	return nil
}

// compileTemplates wires the registry, renderer, writer and pipeline for one run.
// An unreadable registry is fatal; every other failure lands in the report.
func compileTemplates(ctx context.Context, cfg *config.Config, logger logging.Logger, only []string) (*build.Report, error) {
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	catalog := renderer.NewCatalog()
	if err := emails.Register(catalog); err != nil {
		return nil, fmt.Errorf("failed to register components: %w", err)
	}

	writer := artifact.NewWriter(artifact.Options{
		Dir:         cfg.Output.Dir,
		Extension:   cfg.Output.Extension,
		RichVariant: cfg.Output.RichVariant,
		TextVariant: cfg.Output.TextVariant,
		BlockName:   cfg.Output.BlockName,
		Logger:      logger,
	})

	opts := []build.Option{
		build.WithLogger(logger),
		build.WithRenderTimeout(cfg.Render.Timeout),
	}
	if len(only) > 0 {
		opts = append(opts, build.WithOnly(only...))
	}

	pipeline := build.NewPipeline(reg, renderer.NewComponentRenderer(catalog), writer, opts...)
	return pipeline.Run(ctx)
}
