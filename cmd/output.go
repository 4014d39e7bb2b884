package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/conneroisu/mailsmith/internal/build"
)

// reportPrinter writes build reports, styled only when the target is a terminal.
type reportPrinter struct {
	out    io.Writer
	styled bool

	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	summary lipgloss.Style
}

func newReportPrinter(out io.Writer) *reportPrinter {
	return &reportPrinter{
		out:     out,
		styled:  isTerminal(out),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}),
		fail:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}).Bold(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}),
		summary: lipgloss.NewStyle().Bold(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *reportPrinter) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

// Print writes one line per template and the summary line.
func (p *reportPrinter) Print(report *build.Report) {
	if report.CleanupErr != nil {
		fmt.Fprintln(p.out, p.render(p.warn, "cleanup: "+report.CleanupErr.Error()))
	}
	for _, failure := range report.Cleanup.Failed {
		fmt.Fprintln(p.out, p.render(p.warn, fmt.Sprintf("cleanup: could not remove %s: %v", failure.Path, failure.Err)))
	}

	for _, res := range report.Results {
		line := res.Line()
		switch {
		case !res.OK():
			line = p.render(p.fail, line)
		case len(res.Warnings) > 0:
			line = p.render(p.warn, line)
		default:
			line = p.render(p.ok, line)
		}
		fmt.Fprintln(p.out, line)
	}

	summary := report.Summary()
	switch {
	case !report.OK():
		summary = p.render(p.summary.Inherit(p.fail), summary)
	case report.Warnings() > 0:
		summary = p.render(p.summary.Inherit(p.warn), summary)
	default:
		summary = p.render(p.summary.Inherit(p.ok), summary)
	}
	fmt.Fprintln(p.out, summary)
}

// PrintWarnings lists each warning under its template, for verbose output.
func (p *reportPrinter) PrintWarnings(report *build.Report) {
	for _, res := range report.Results {
		for _, w := range res.Warnings {
			fmt.Fprintf(p.out, "  %s: %s\n", res.Name, strings.TrimSpace(w.Error()))
		}
	}
}
