package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormatWithSuggestion rejects a format outside allowed, suggesting
// the closest allowed one.
func ValidateFormatWithSuggestion(format string, allowed []string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}

	msg := fmt.Sprintf("invalid format %q (expected %s)", format, strings.Join(allowed, ", "))
	if matches := fuzzy.Find(format, allowed); len(matches) > 0 {
		msg += fmt.Sprintf("; did you mean %q?", matches[0].Str)
	}
	return errors.New(msg)
}
