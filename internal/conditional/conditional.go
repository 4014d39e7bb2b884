// Package conditional restores optional fragments that were present in the
// sample render but may be absent at runtime, by wrapping them in template
// conditionals.
package conditional

import (
	"github.com/conneroisu/mailsmith/internal/registry"
)

// Span is a half-open byte range [Start, End) within markup.
type Span struct {
	Start int
	End   int
}

func (s Span) overlaps(start, end int) bool {
	return start < s.End && s.Start < end
}

// Matcher locates the fragment a rule guards and wraps it. Matches that
// overlap a protected span are skipped. When no fragment matches, markup is
// returned unchanged with ok set to false.
type Matcher interface {
	MatchAndWrap(markup string, rule registry.ConditionalRule, protected []Span) (out string, wrapped Span, ok bool)
}

// RegexMatcher wraps the first match of the rule's pattern.
type RegexMatcher struct{}

// MatchAndWrap implements Matcher. Matches are taken over the whole markup so
// anchors such as ^ and \b keep their meaning next to protected spans.
func (RegexMatcher) MatchAndWrap(markup string, rule registry.ConditionalRule, protected []Span) (string, Span, bool) {
	for _, loc := range rule.Regexp().FindAllStringIndex(markup, -1) {
		start, end := loc[0], loc[1]
		if end == start {
			// Empty matches guard nothing.
			continue
		}
		if blocked(protected, start, end) {
			continue
		}
		wrapped := rule.Wrap(markup[start:end])
		out := markup[:start] + wrapped + markup[end:]
		return out, Span{Start: start, End: start + len(wrapped)}, true
	}
	return markup, Span{}, false
}

func blocked(protected []Span, start, end int) bool {
	for _, p := range protected {
		if p.overlaps(start, end) {
			return true
		}
	}
	return false
}

// Result is the outcome of running every conditional rule of a template.
type Result struct {
	Output    string
	Matched   []string
	Unmatched []string
}

// Reconstructor applies conditional rules in sequence.
type Reconstructor struct {
	matcher Matcher
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithMatcher swaps the fragment matcher.
func WithMatcher(m Matcher) Option {
	return func(r *Reconstructor) {
		if m != nil {
			r.matcher = m
		}
	}
}

// New returns a Reconstructor using RegexMatcher unless overridden.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{matcher: RegexMatcher{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply runs rules in order. Each inserted wrapper becomes protected, so a
// later rule can never wrap text that is already inside a conditional. A rule
// that matches nothing is recorded in Unmatched and is not an error.
func (r *Reconstructor) Apply(markup string, rules []registry.ConditionalRule) Result {
	res := Result{Output: markup}
	var protected []Span

	for _, rule := range rules {
		out, span, ok := r.matcher.MatchAndWrap(res.Output, rule, protected)
		if !ok {
			res.Unmatched = append(res.Unmatched, rule.Label())
			continue
		}

		delta := len(out) - len(res.Output)
		for i := range protected {
			if protected[i].Start >= span.Start {
				protected[i].Start += delta
				protected[i].End += delta
			}
		}
		protected = append(protected, span)

		res.Output = out
		res.Matched = append(res.Matched, rule.Label())
	}
	return res
}
