// Package config provides configuration management for mailsmith using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the MAILSMITH_ prefix, defaults, and validation. It holds the registry
// location, the artifact output settings, the render timeout and the logging
// and watch options.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultRegistryPath  = "templates/registry.yaml"
	DefaultOutputDir     = "../backend/resources/email-templates"
	DefaultExtension     = "tmpl"
	DefaultRichVariant   = "html"
	DefaultTextVariant   = "text"
	DefaultBlockName     = "root"
	DefaultRenderTimeout = 10 * time.Second
	DefaultDebounce      = 300 * time.Millisecond
)

type Config struct {
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Render   RenderConfig   `mapstructure:"render" yaml:"render"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Extension   string `mapstructure:"extension" yaml:"extension"`
	RichVariant string `mapstructure:"rich_variant" yaml:"rich_variant"`
	TextVariant string `mapstructure:"text_variant" yaml:"text_variant"`
	BlockName   string `mapstructure:"block_name" yaml:"block_name"`
}

type RenderConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Paths    []string      `mapstructure:"paths" yaml:"paths"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("registry.path", DefaultRegistryPath)
	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.extension", DefaultExtension)
	v.SetDefault("output.rich_variant", DefaultRichVariant)
	v.SetDefault("output.text_variant", DefaultTextVariant)
	v.SetDefault("output.block_name", DefaultBlockName)
	v.SetDefault("render.timeout", DefaultRenderTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("watch.debounce", DefaultDebounce)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults for anything unset.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	// Viper does not split env-provided slices on its own.
	if v.IsSet("watch.paths") && len(config.Watch.Paths) == 0 {
		config.Watch.Paths = v.GetStringSlice("watch.paths")
	}

	config.Output.Extension = strings.TrimPrefix(config.Output.Extension, ".")

	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{filepath.Dir(config.Registry.Path)}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// EnvReplacer maps nested keys to MAILSMITH_SECTION_KEY environment names.
func EnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

var identPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Registry.Path) == "" {
		return fmt.Errorf("registry.path must not be empty")
	}

	if err := validateOutputConfig(&config.Output); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if config.Render.Timeout < 0 {
		return fmt.Errorf("render.timeout must not be negative")
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log.format %q is not one of text, json", config.Log.Format)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}

	return nil
}

func validateOutputConfig(config *OutputConfig) error {
	if strings.TrimSpace(config.Dir) == "" {
		return fmt.Errorf("dir must not be empty")
	}

	for field, value := range map[string]string{
		"extension":    config.Extension,
		"rich_variant": config.RichVariant,
		"text_variant": config.TextVariant,
		"block_name":   config.BlockName,
	} {
		if !identPattern.MatchString(value) {
			return fmt.Errorf("%s %q must be a plain identifier", field, value)
		}
	}

	if config.RichVariant == config.TextVariant {
		return fmt.Errorf("rich_variant and text_variant must differ (both %q)", config.RichVariant)
	}

	return nil
}
