// Package build drives the compilation of every registered template: render,
// substitute, reconstruct conditionals, write. Templates are processed one at
// a time in registry order and a failure in one never stops the others.
package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/conneroisu/mailsmith/internal/artifact"
	"github.com/conneroisu/mailsmith/internal/conditional"
	perrors "github.com/conneroisu/mailsmith/internal/errors"
	"github.com/conneroisu/mailsmith/internal/logging"
	"github.com/conneroisu/mailsmith/internal/registry"
	"github.com/conneroisu/mailsmith/internal/renderer"
	"github.com/conneroisu/mailsmith/internal/substitution"
)

// Stage names a step of the per-template pipeline.
type Stage string

const (
	StageLoad        Stage = "load"
	StageRender      Stage = "render"
	StageSubstitute  Stage = "substitute"
	StageConditional Stage = "conditional"
	StageWrite       Stage = "write"
	StageDone        Stage = "done"
)

// ArtifactWriter is the output side of the pipeline.
type ArtifactWriter interface {
	Cleanup(ctx context.Context) (artifact.CleanupResult, error)
	Write(outputName, rich, text string) (artifact.Paths, error)
}

// Callback is invoked after each template finishes, successfully or not.
type Callback func(result TemplateResult)

// Pipeline compiles a registry into artifacts.
type Pipeline struct {
	registry      *registry.Registry
	renderer      renderer.Renderer
	writer        ArtifactWriter
	engine        *substitution.Engine
	matcher       conditional.Matcher
	logger        logging.Logger
	renderTimeout time.Duration
	only          []string
	callbacks     []Callback
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMatcher replaces the conditional fragment matcher.
func WithMatcher(m conditional.Matcher) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.matcher = m
		}
	}
}

// WithRenderTimeout bounds each render call. Zero leaves it unbounded.
func WithRenderTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.renderTimeout = d
	}
}

// WithOnly restricts the run to the named templates. Cleanup is skipped so
// artifacts of templates outside the selection survive.
func WithOnly(names ...string) Option {
	return func(p *Pipeline) {
		p.only = append(p.only, names...)
	}
}

// WithCallback registers a function called after every template.
func WithCallback(cb Callback) Option {
	return func(p *Pipeline) {
		if cb != nil {
			p.callbacks = append(p.callbacks, cb)
		}
	}
}

// NewPipeline wires the registry, the renderer and the writer together.
func NewPipeline(reg *registry.Registry, r renderer.Renderer, w ArtifactWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: reg,
		renderer: r,
		writer:   w,
		engine:   substitution.New(),
		matcher:  conditional.RegexMatcher{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("build")
	return p
}

// Run executes one full build. The returned error is non-nil only when ctx is
// cancelled; per-template failures are reported in the Report.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	selected, missing := p.selection()

	if len(p.only) == 0 {
		cleanup, err := p.writer.Cleanup(ctx)
		report.Cleanup = cleanup
		if err != nil {
			report.CleanupErr = err
			p.logger.Error(ctx, err, "cleanup failed, continuing with writes")
		} else {
			p.logger.Info(ctx, "cleaned output directory",
				"removed", len(cleanup.Removed), "failed", len(cleanup.Failed))
		}
	}

	for _, inv := range p.registry.Invalid() {
		if !p.wanted(inv.Name) {
			continue
		}
		res := TemplateResult{Name: inv.Name, Stage: StageLoad, Err: inv.Err()}
		p.logger.Error(ctx, res.Err, "template excluded at load", "template", inv.Name)
		p.finish(report, res)
	}
	for _, name := range missing {
		res := TemplateResult{Name: name, Stage: StageLoad, Err: missingError(p.registry, name)}
		p.logger.Error(ctx, res.Err, "unknown template", "template", name)
		p.finish(report, res)
	}

	for _, d := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.finish(report, p.compile(ctx, d))
	}

	p.logger.Info(ctx, "build finished",
		"succeeded", len(report.Succeeded()), "failed", len(report.Failed()))
	return report, nil
}

func (p *Pipeline) finish(report *Report, res TemplateResult) {
	report.Results = append(report.Results, res)
	for _, cb := range p.callbacks {
		cb(res)
	}
}

func (p *Pipeline) wanted(name string) bool {
	if len(p.only) == 0 {
		return true
	}
	for _, n := range p.only {
		if n == name {
			return true
		}
	}
	return false
}

// selection returns the descriptors to build in registry order, plus any
// requested names the registry knows nothing about.
func (p *Pipeline) selection() ([]*registry.Descriptor, []string) {
	all := p.registry.List()
	if len(p.only) == 0 {
		return all, nil
	}

	var selected []*registry.Descriptor
	for _, d := range all {
		if p.wanted(d.Name) {
			selected = append(selected, d)
		}
	}

	invalid := make(map[string]bool)
	for _, inv := range p.registry.Invalid() {
		invalid[inv.Name] = true
	}
	var missing []string
	seen := make(map[string]bool)
	for _, name := range p.only {
		if seen[name] || invalid[name] {
			continue
		}
		seen[name] = true
		if _, err := p.registry.Get(name); err != nil {
			missing = append(missing, name)
		}
	}
	return selected, missing
}

func missingError(reg *registry.Registry, name string) error {
	_, err := reg.Get(name)
	return perrors.Wrap(err, perrors.ErrorTypeConfig, perrors.ErrCodeUnknownTemplate, "select template").
		WithTemplate(name).WithStage(string(StageLoad))
}

func (p *Pipeline) compile(ctx context.Context, d *registry.Descriptor) TemplateResult {
	started := time.Now()
	res := p.runStages(ctx, d)
	res.Duration = time.Since(started)
	return res
}

// runStages runs every stage for one descriptor.
func (p *Pipeline) runStages(ctx context.Context, d *registry.Descriptor) TemplateResult {
	logger := p.logger.With("template", d.Name)
	res := TemplateResult{Name: d.Name, OutputName: d.OutputName}

	var markup string
	err := p.stage(d, StageRender, func() error {
		rctx := ctx
		if p.renderTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, p.renderTimeout)
			defer cancel()
		}
		var err error
		markup, err = p.renderer.Render(rctx, d.Component, d.SampleProps)
		return err
	})
	if err != nil {
		return p.fail(ctx, logger, res, StageRender, err)
	}
	if strings.TrimSpace(markup) == "" {
		err := perrors.NewRenderError(d.Name, perrors.ErrCodeEmptyRender,
			fmt.Sprintf("component %q rendered no markup", d.Component), nil).WithStage(string(StageRender))
		return p.fail(ctx, logger, res, StageRender, err)
	}
	logger.Debug(ctx, "rendered", "component", d.Component, "bytes", len(markup))

	var sub substitution.Result
	err = p.stage(d, StageSubstitute, func() error {
		sub = p.engine.Apply(markup, d.Rules(), d.Sentinels()...)
		return nil
	})
	if err != nil {
		return p.fail(ctx, logger, res, StageSubstitute, err)
	}
	if !sub.Complete() {
		warn := perrors.NewIncompleteSubstitution(d.Name, sub.Residual)
		res.Warnings = append(res.Warnings, warn)
		for _, marker := range sub.Residual {
			logger.Warn(ctx, warn, "sentinel survived substitution", "marker", marker)
		}
	}

	var cond conditional.Result
	err = p.stage(d, StageConditional, func() error {
		cond = conditional.New(conditional.WithMatcher(p.matcher)).Apply(sub.Output, d.Conditionals)
		return nil
	})
	if err != nil {
		return p.fail(ctx, logger, res, StageConditional, err)
	}
	if len(d.Conditionals) > 0 && len(cond.Matched) == 0 {
		warn := fmt.Errorf("none of %d conditional rules matched %v", len(d.Conditionals), cond.Unmatched)
		res.Warnings = append(res.Warnings, warn)
		logger.Warn(ctx, warn, "conditional fragments not found; markup shape may have changed")
	} else if len(cond.Unmatched) > 0 {
		logger.Debug(ctx, "some conditionals did not match", "unmatched", cond.Unmatched)
	}

	if d.TextGenerated {
		warn := fmt.Errorf("no text body authored; wrote a generic one for %q", d.Name)
		res.Warnings = append(res.Warnings, warn)
		logger.Warn(ctx, warn, "plain-text variant generated from the template name")
	}

	err = p.stage(d, StageWrite, func() error {
		paths, err := p.writer.Write(d.OutputName, cond.Output, d.Text)
		res.Paths = paths
		return err
	})
	if err != nil {
		return p.fail(ctx, logger, res, StageWrite, err)
	}

	res.Stage = StageDone
	logger.Info(ctx, "compiled", "rich", res.Paths.Rich, "text", res.Paths.Text)
	return res
}

// stage runs fn, turning a panic into an internal error and tagging any error
// with the template and stage.
func (p *Pipeline) stage(d *registry.Descriptor, stage Stage, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = perrors.FromPanic(d.Name, string(stage), rec)
		}
	}()
	if err := fn(); err != nil {
		return tag(err, d.Name, stage)
	}
	return nil
}

func tag(err error, template string, stage Stage) error {
	var pe *perrors.PipelineError
	if stderrors.As(err, &pe) {
		if pe.Template == "" {
			pe.Template = template
		}
		if pe.Stage == "" {
			pe.Stage = string(stage)
		}
		return err
	}
	if stage == StageRender {
		return perrors.NewRenderError(template, perrors.ErrCodeRenderFailed, "render", err)
	}
	return perrors.Wrap(err, perrors.ErrorTypeInternal, "", string(stage)).
		WithTemplate(template).WithStage(string(stage))
}

func (p *Pipeline) fail(ctx context.Context, logger logging.Logger, res TemplateResult, stage Stage, err error) TemplateResult {
	res.Stage = stage
	res.Err = err
	logger.Error(ctx, err, "template failed", "stage", string(stage))
	return res
}
