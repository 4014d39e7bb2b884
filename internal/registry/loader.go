package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	perrors "github.com/conneroisu/mailsmith/internal/errors"
)

// Format is the on-disk encoding of a registry document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported registry format %q (expected .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

type document struct {
	Base      baseSpec         `yaml:"base" toml:"base"`
	Templates []descriptorSpec `yaml:"templates" toml:"templates"`
}

type baseSpec struct {
	SampleProps  Props  `yaml:"sample_props" toml:"sample_props"`
	Replacements []Rule `yaml:"replacements" toml:"replacements"`
}

type descriptorSpec struct {
	Name         string            `yaml:"name" toml:"name"`
	OutputName   string            `yaml:"output_name" toml:"output_name"`
	Component    string            `yaml:"component" toml:"component"`
	SampleProps  Props             `yaml:"sample_props" toml:"sample_props"`
	Replacements []Rule            `yaml:"replacements" toml:"replacements"`
	Conditionals []ConditionalRule `yaml:"conditionals" toml:"conditionals"`
	Text         string            `yaml:"text" toml:"text"`
}

// Load reads and validates the registry file at path. An error is returned
// only when the file cannot be read or decoded, or when the shared base
// section is invalid. Invalid descriptors are excluded and listed by Invalid.
func Load(path string) (*Registry, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, perrors.NewConfigError("", perrors.ErrCodeRegistryUnreadable, err.Error())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.WrapIO(err, perrors.ErrCodeRegistryUnreadable, "read registry "+path)
	}

	reg, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	reg.source = path
	return reg, nil
}

// Parse decodes and validates a registry document held in memory.
func Parse(data []byte, format Format) (*Registry, error) {
	var doc document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, decodeError(err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, decodeError(err)
		}
	default:
		return nil, perrors.NewConfigError("", perrors.ErrCodeRegistryUnreadable,
			fmt.Sprintf("unsupported registry format %q", format))
	}

	base, err := validateBase(doc.Base)
	if err != nil {
		return nil, err
	}

	reg := newRegistry()
	for _, spec := range doc.Templates {
		d, errs := buildDescriptor(spec, base)
		if len(errs) > 0 {
			reg.reject(spec.Name, errs)
			continue
		}
		reg.add(d)
	}
	return reg, nil
}

func decodeError(err error) error {
	return perrors.Wrap(err, perrors.ErrorTypeConfig, perrors.ErrCodeRegistryUnreadable, "decode registry")
}

// Base is the cross-template section: props and rules every descriptor shares.
type Base struct {
	SampleProps  Props
	Replacements []Rule
}

func validateBase(spec baseSpec) (Base, error) {
	base := Base{SampleProps: spec.SampleProps}
	if base.SampleProps == nil {
		base.SampleProps = Props{}
	}

	var errs []error
	errs = append(errs, checkSentinelLeaves("base", base.SampleProps)...)
	rules, ruleErrs := compileRules("base", spec.Replacements, base.SampleProps)
	errs = append(errs, ruleErrs...)
	if len(errs) > 0 {
		return Base{}, perrors.Join(errs...)
	}
	base.Replacements = rules
	return base, nil
}

func buildDescriptor(spec descriptorSpec, base Base) (*Descriptor, []error) {
	name := strings.TrimSpace(spec.Name)
	var errs []error

	if !namePattern.MatchString(name) {
		errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeInvalidName,
			fmt.Sprintf("name %q must be lower-case letters, digits and dashes", spec.Name)))
	}

	outputName := strings.TrimSpace(spec.OutputName)
	if outputName == "" {
		outputName = name
	}
	if outputName != name && !namePattern.MatchString(outputName) {
		errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeInvalidName,
			fmt.Sprintf("output_name %q must be lower-case letters, digits and dashes", spec.OutputName)))
	}

	if strings.TrimSpace(spec.Component) == "" {
		errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeMissingComponent, "component is required"))
	}

	props := MergeProps(base.SampleProps, spec.SampleProps)
	errs = append(errs, checkSentinelLeaves(name, spec.SampleProps)...)

	own, ruleErrs := compileRules(name, spec.Replacements, props)
	errs = append(errs, ruleErrs...)

	all := make([]Rule, 0, len(base.Replacements)+len(own))
	all = append(all, base.Replacements...)
	all = append(all, own...)
	if len(ruleErrs) == 0 {
		errs = append(errs, checkShadowing(name, all, props)...)
	}

	conds, condErrs := compileConditionals(name, spec.Conditionals, props)
	errs = append(errs, condErrs...)

	if len(errs) > 0 {
		return nil, errs
	}

	d := &Descriptor{
		Name:         name,
		OutputName:   outputName,
		Component:    strings.TrimSpace(spec.Component),
		SampleProps:  props,
		Replacements: own,
		Conditionals: conds,
		Text:         spec.Text,
		rules:        all,
	}
	if strings.TrimSpace(d.Text) == "" {
		d.Text = GenericText(name)
		d.TextGenerated = true
	}
	return d, nil
}

func checkSentinelLeaves(name string, props Props) []error {
	var errs []error
	for _, leaf := range props.Leaves() {
		s, ok := leaf.Value.(string)
		if !ok || !IsSentinel(s) {
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeNotSentinel,
				fmt.Sprintf("sample prop %s = %v does not follow the UPPER%s convention", leaf.Path, leaf.Value, SentinelSuffix)))
		}
	}
	return errs
}

func compileRules(name string, specs []Rule, props Props) ([]Rule, []error) {
	var errs []error
	rules := make([]Rule, 0, len(specs))
	for i, r := range specs {
		re, err := regexp.Compile(r.Pattern)
		if err != nil || r.Pattern == "" {
			if err == nil {
				err = fmt.Errorf("empty pattern")
			}
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeBadPattern,
				fmt.Sprintf("replacement %d pattern %q: %v", i, r.Pattern, err)))
			continue
		}
		value, ok := props.Lookup(r.Field)
		if !ok {
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeUnknownField,
				fmt.Sprintf("replacement %d references unknown field %q", i, r.Field)))
			continue
		}
		if _, isMap := asProps(value); isMap {
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeUnknownField,
				fmt.Sprintf("replacement %d field %q is not a leaf", i, r.Field)))
			continue
		}
		if strings.Contains(r.Target, SentinelSuffix) {
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeSentinelInTarget,
				fmt.Sprintf("replacement %d target %q contains sentinel syntax", i, r.Target)))
			continue
		}
		if s, ok := value.(string); ok && !re.MatchString(s) {
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeBadPattern,
				fmt.Sprintf("replacement %d pattern %q never matches its field's sentinel %q", i, r.Pattern, s)))
			continue
		}
		r.re = re
		rules = append(rules, r)
	}
	return rules, errs
}

// checkShadowing rejects a rule that would eat into another field's sentinel
// before that field's own rule has run (NAME_PLACEHOLDER inside
// APIKEYNAME_PLACEHOLDER).
func checkShadowing(name string, rules []Rule, props Props) []error {
	var errs []error
	for _, leaf := range props.Leaves() {
		sentinel, ok := leaf.Value.(string)
		if !ok {
			continue
		}
		for i, r := range rules {
			if r.Field == leaf.Path {
				break
			}
			if r.Regexp().MatchString(sentinel) {
				errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeBadPattern,
					fmt.Sprintf("replacement %d for %q also matches %q of field %q; order the more specific rule first or anchor the pattern",
						i, r.Field, sentinel, leaf.Path)))
				break
			}
		}
	}
	return errs
}

func compileConditionals(name string, specs []ConditionalRule, props Props) ([]ConditionalRule, []error) {
	var errs []error
	out := make([]ConditionalRule, 0, len(specs))
	for i, c := range specs {
		re, err := regexp.Compile(c.Pattern)
		if err != nil || c.Pattern == "" {
			if err == nil {
				err = fmt.Errorf("empty pattern")
			}
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeBadPattern,
				fmt.Sprintf("conditional %d pattern %q: %v", i, c.Pattern, err)))
			continue
		}
		if strings.TrimSpace(c.Condition) == "" {
			errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeEmptyCondition,
				fmt.Sprintf("conditional %d has no condition", i)))
			continue
		}
		bad := false
		for _, f := range c.Fields {
			if _, ok := props.Lookup(f); !ok {
				errs = append(errs, perrors.NewConfigError(name, perrors.ErrCodeUnknownField,
					fmt.Sprintf("conditional %d references unknown field %q", i, f)))
				bad = true
			}
		}
		if bad {
			continue
		}
		c.re = re
		out = append(out, c)
	}
	return out, errs
}

// GenericText builds the plain-text body used when a template authors none:
// the title-cased name, an underline and the standard footer.
func GenericText(name string) string {
	title := cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
	return title + "\n" + strings.Repeat("=", len(title)) + "\n\n" +
		"Email content goes here.\n\n" +
		"--\n" +
		"This is automatically sent email from {{.AppName}}.\n"
}
