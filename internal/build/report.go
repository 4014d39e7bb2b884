package build

import (
	"fmt"
	"time"

	"github.com/conneroisu/mailsmith/internal/artifact"
)

// TemplateResult is the outcome for one template. Stage is the last stage
// reached: StageDone on success, the failing stage otherwise.
type TemplateResult struct {
	Name       string
	OutputName string
	Stage      Stage
	Err        error
	Paths      artifact.Paths
	Warnings   []error
	Duration   time.Duration
}

// OK reports whether the template's artifacts were written.
func (r TemplateResult) OK() bool {
	return r.Err == nil
}

// Line renders the result as a single summary line.
func (r TemplateResult) Line() string {
	if r.Err != nil {
		return fmt.Sprintf("FAIL %s [%s]: %v", r.Name, r.Stage, r.Err)
	}
	line := fmt.Sprintf("ok   %s -> %s, %s", r.Name, r.Paths.Rich, r.Paths.Text)
	if n := len(r.Warnings); n > 0 {
		line += fmt.Sprintf(" (%d warning%s)", n, plural(n))
	}
	return line
}

// Report collects every template result of a run.
type Report struct {
	Results    []TemplateResult
	Cleanup    artifact.CleanupResult
	CleanupErr error
}

// Succeeded returns the results whose artifacts were written.
func (r *Report) Succeeded() []TemplateResult {
	var out []TemplateResult
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the results that did not produce artifacts.
func (r *Report) Failed() []TemplateResult {
	var out []TemplateResult
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Warnings counts warnings across all results.
func (r *Report) Warnings() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Warnings)
	}
	return n
}

// OK is true when every template compiled.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// Lines returns one line per template followed by a summary line.
func (r *Report) Lines() []string {
	lines := make([]string, 0, len(r.Results)+1)
	for _, res := range r.Results {
		lines = append(lines, res.Line())
	}
	return append(lines, r.Summary())
}

// Summary describes the run as a whole.
func (r *Report) Summary() string {
	failed := len(r.Failed())
	s := fmt.Sprintf("%d of %d templates compiled", len(r.Results)-failed, len(r.Results))
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	if w := r.Warnings(); w > 0 {
		s += fmt.Sprintf(", %d warning%s", w, plural(w))
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
