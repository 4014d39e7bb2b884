package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mailsmith/internal/registry"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the templates in the registry",
	Long: `List every template in the registry with its output name, component and rule
counts. Entries rejected at load time are listed with their validation errors.

Examples:
  mailsmith list                  # Table
  mailsmith list -f json          # JSON
  mailsmith list -f yaml          # YAML`,
	RunE: runList,
}

var listFormat string

var listFormats = []string{"table", "json", "yaml"}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table|json|yaml)")
	AddFlagValidation(listCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, listFormats)
	})
}

type listEntry struct {
	Name          string   `json:"name" yaml:"name"`
	Output        string   `json:"output,omitempty" yaml:"output,omitempty"`
	Component     string   `json:"component,omitempty" yaml:"component,omitempty"`
	Rules         int      `json:"rules" yaml:"rules"`
	Conditionals  int      `json:"conditionals" yaml:"conditionals"`
	GeneratedText bool     `json:"generated_text" yaml:"generated_text"`
	Valid         bool     `json:"valid" yaml:"valid"`
	Errors        []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	entries := listEntries(reg)
	out := cmd.OutOrStdout()

	switch listFormat {
	case "json":
		return outputListJSON(out, entries)
	case "yaml":
		return outputListYAML(out, entries)
	default:
		return outputListTable(out, entries)
	}
}

func listEntries(reg *registry.Registry) []listEntry {
	var entries []listEntry
	for _, d := range reg.List() {
		entries = append(entries, listEntry{
			Name:          d.Name,
			Output:        d.OutputName,
			Component:     d.Component,
			Rules:         len(d.Rules()),
			Conditionals:  len(d.Conditionals),
			GeneratedText: d.TextGenerated,
			Valid:         true,
		})
	}
	for _, inv := range reg.Invalid() {
		entry := listEntry{Name: inv.Name}
		for _, err := range inv.Errors {
			entry.Errors = append(entry.Errors, err.Error())
		}
		entries = append(entries, entry)
	}
	return entries
}

func outputListJSON(out io.Writer, entries []listEntry) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

func outputListYAML(out io.Writer, entries []listEntry) error {
	encoder := yaml.NewEncoder(out)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(entries)
}

func outputListTable(out io.Writer, entries []listEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tOUTPUT\tCOMPONENT\tRULES\tCONDITIONALS\tTEXT")

	var invalid []listEntry
	for _, e := range entries {
		if !e.Valid {
			invalid = append(invalid, e)
			continue
		}
		text := "authored"
		if e.GeneratedText {
			text = "generated"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", e.Name, e.Output, e.Component, e.Rules, e.Conditionals, text)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(invalid) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\n%d invalid:\n", len(invalid))
	for _, e := range invalid {
		fmt.Fprintf(out, "  %s\n", e.Name)
		for _, msg := range e.Errors {
			fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(msg, "\n", "\n    "))
		}
	}
	return nil
}
