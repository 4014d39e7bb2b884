// Package cmd provides the command-line interface for mailsmith with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	Configuration comes from several sources with clear precedence:
//	1. Command-line flags (--output, --registry, --log-level) - highest priority
//	2. Individual environment variables (MAILSMITH_OUTPUT_DIR, etc.)
//	3. Configuration file (--config, MAILSMITH_CONFIG_FILE or .mailsmith.yml)
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	MAILSMITH_CONFIG_FILE: Path to custom configuration file
//	MAILSMITH_REGISTRY_PATH: Registry document to compile
//	MAILSMITH_OUTPUT_DIR: Directory the artifacts are written to
//	MAILSMITH_RENDER_TIMEOUT: Per-template render bound, e.g. 5s
//	And the rest following the MAILSMITH_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mailsmith/internal/config"
	"github.com/conneroisu/mailsmith/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mailsmith",
	Short: "Compile email components into Go template artifacts",
	Long: `mailsmith renders the email components listed in a registry with sentinel
props, rewrites every sentinel into a Go template expression and writes an
HTML and a plain-text artifact per template for the backend to load.

Quick Start:
  mailsmith build                 Compile every template in the registry
  mailsmith build --only test     Compile a single template
  mailsmith list                  Show the registry and its problems
  mailsmith watch                 Rebuild when the registry changes

Command Aliases:
  build (b), list (l), watch (w)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .mailsmith.yml, can also use MAILSMITH_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig selects the config file and enables environment overrides.
//
// Config file priority:
//  1. --config flag
//  2. MAILSMITH_CONFIG_FILE environment variable
//  3. .mailsmith.yml in the current directory
//
// A missing default file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("MAILSMITH_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mailsmith")
	}

	viper.SetEnvPrefix("MAILSMITH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(config.EnvReplacer())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and a logger configured from it.
func loadConfig(stderr io.Writer) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		Component: "mailsmith",
	}), nil
}

// commandContext returns the command's context, or Background when the
// command was invoked directly rather than through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
