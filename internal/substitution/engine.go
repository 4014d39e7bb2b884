// Package substitution replaces sentinel markers in rendered markup with
// template expressions.
package substitution

import (
	"sort"
	"strings"

	"github.com/conneroisu/mailsmith/internal/registry"
)

// RuleStat records how many matches a single rule replaced.
type RuleStat struct {
	Field   string
	Pattern string
	Count   int
}

// Result is the outcome of applying a rule list to one markup string.
type Result struct {
	Output   string
	Applied  []RuleStat
	Residual []string
}

// Complete reports whether no sentinel survived substitution.
func (r Result) Complete() bool {
	return len(r.Residual) == 0
}

// Engine applies ordered substitution rules. The zero value is ready to use.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// Apply runs rules in order over markup. Every match is replaced by the rule's
// target taken literally, so "$" in a target is never expanded. A rule that
// matches nothing is a no-op. known lists the sentinels fed to the renderer;
// any of them left in the output is residual even when it does not follow
// the sentinel naming convention.
func (e *Engine) Apply(markup string, rules []registry.Rule, known ...string) Result {
	res := Result{
		Output:  markup,
		Applied: make([]RuleStat, 0, len(rules)),
	}
	for _, rule := range rules {
		re := rule.Regexp()
		n := len(re.FindAllStringIndex(res.Output, -1))
		if n > 0 {
			res.Output = re.ReplaceAllLiteralString(res.Output, rule.Target)
		}
		res.Applied = append(res.Applied, RuleStat{Field: rule.Field, Pattern: rule.Pattern, Count: n})
	}
	res.Residual = Residual(res.Output, known...)
	return res
}

// Residual returns the sentinel markers still present in s, sorted and
// de-duplicated: every match of the sentinel pattern plus every known value
// that occurs literally.
func Residual(s string, known ...string) []string {
	found := registry.SentinelPattern.FindAllString(s, -1)
	for _, k := range known {
		if k != "" && strings.Contains(s, k) {
			found = append(found, k)
		}
	}
	if len(found) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, m := range found {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
