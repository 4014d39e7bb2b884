// Package registry holds the static template configuration: per-template
// sample props, substitution rules, conditional rules, the literal text body
// and the output name. Descriptors are loaded and validated once per run and
// are read-only afterwards.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SentinelSuffix marks every sample prop value. It never appears in genuine
// markup produced by the email components.
const SentinelSuffix = "_PLACEHOLDER"

var (
	// SentinelPattern finds sentinel markers anywhere in a string.
	SentinelPattern = regexp.MustCompile(`[A-Z][A-Z0-9]*` + SentinelSuffix)

	sentinelValue = regexp.MustCompile(`^[A-Z][A-Z0-9]*` + SentinelSuffix + `$`)
	namePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// IsSentinel reports whether s follows the sentinel convention exactly.
func IsSentinel(s string) bool {
	return sentinelValue.MatchString(s)
}

// Props is a tree of sample values. Leaves are sentinel strings, inner nodes
// are nested Props.
type Props map[string]interface{}

// Leaf is a single sample value and its dotted path.
type Leaf struct {
	Path  string
	Value interface{}
}

// Lookup returns the value at a dotted path such as "data.city".
func (p Props) Lookup(path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	var cur interface{} = p
	for _, part := range strings.Split(path, ".") {
		m, ok := asProps(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Leaves returns every non-map value in the tree, sorted by path.
func (p Props) Leaves() []Leaf {
	var out []Leaf
	p.walk("", func(path string, v interface{}) {
		out = append(out, Leaf{Path: path, Value: v})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (p Props) walk(prefix string, fn func(string, interface{})) {
	for k, v := range p {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := asProps(v); ok {
			child.walk(path, fn)
			continue
		}
		fn(path, v)
	}
}

// Clone returns a deep copy.
func (p Props) Clone() Props {
	out := make(Props, len(p))
	for k, v := range p {
		if child, ok := asProps(v); ok {
			out[k] = child.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// MergeProps deep-merges override on top of base and returns a new tree.
func MergeProps(base, override Props) Props {
	out := base.Clone()
	for k, v := range override {
		if child, ok := asProps(v); ok {
			if existing, ok := asProps(out[k]); ok {
				out[k] = MergeProps(existing, child)
				continue
			}
			out[k] = child.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// asProps normalises the map shapes produced by the YAML and TOML decoders.
func asProps(v interface{}) (Props, bool) {
	switch m := v.(type) {
	case Props:
		return m, true
	case map[string]interface{}:
		return Props(m), true
	case map[interface{}]interface{}:
		out := make(Props, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Rule replaces every match of Pattern with the literal Target.
type Rule struct {
	Field   string `yaml:"field" toml:"field" json:"field"`
	Pattern string `yaml:"pattern" toml:"pattern" json:"pattern"`
	Target  string `yaml:"target" toml:"target" json:"target"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern.
func (r Rule) Regexp() *regexp.Regexp {
	if r.re == nil {
		return regexp.MustCompile(r.Pattern)
	}
	return r.re
}

// ConditionalRule wraps the first fragment matching Pattern in an
// {{if Condition}} ... {{end}} block.
type ConditionalRule struct {
	Name      string   `yaml:"name" toml:"name" json:"name"`
	Pattern   string   `yaml:"pattern" toml:"pattern" json:"pattern"`
	Condition string   `yaml:"condition" toml:"condition" json:"condition"`
	Fields    []string `yaml:"fields" toml:"fields" json:"fields,omitempty"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern.
func (c ConditionalRule) Regexp() *regexp.Regexp {
	if c.re == nil {
		return regexp.MustCompile(c.Pattern)
	}
	return c.re
}

// Wrap surrounds fragment with the runtime conditional.
func (c ConditionalRule) Wrap(fragment string) string {
	return "{{if " + strings.TrimSpace(c.Condition) + "}}" + fragment + "{{end}}"
}

// Label names the rule in logs, falling back to its condition.
func (c ConditionalRule) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Condition
}

// Descriptor is one validated registry entry.
type Descriptor struct {
	Name         string
	OutputName   string
	Component    string
	SampleProps  Props
	Replacements []Rule
	Conditionals []ConditionalRule
	Text         string

	// TextGenerated is set when no text body was authored and a generic one
	// was derived from the name.
	TextGenerated bool

	rules []Rule
}

// Rules returns the base rules followed by the template's own rules.
func (d *Descriptor) Rules() []Rule {
	out := make([]Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

// Sentinels returns the sorted, de-duplicated sentinel values fed to the renderer.
func (d *Descriptor) Sentinels() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, leaf := range d.SampleProps.Leaves() {
		s, ok := leaf.Value.(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
