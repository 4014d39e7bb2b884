// Package renderer turns a component reference plus a props tree into markup.
//
// Components are registered explicitly in a Catalog under the name the
// registry refers to; there is no reflection-based discovery. Rendering is
// bounded by a timeout and every failure is reported as a render error.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"

	perrors "github.com/conneroisu/mailsmith/internal/errors"
	"github.com/conneroisu/mailsmith/internal/registry"
)

// RenderFunc builds a component from a props tree.
type RenderFunc func(props registry.Props) (templ.Component, error)

// Renderer is the boundary the pipeline calls once per template per run.
type Renderer interface {
	Render(ctx context.Context, component string, props registry.Props) (string, error)
}

// Catalog maps component names to render functions.
type Catalog struct {
	mu    sync.RWMutex
	funcs map[string]RenderFunc
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{funcs: make(map[string]RenderFunc)}
}

// Register adds fn under name. Names must be unique.
func (c *Catalog) Register(name string, fn RenderFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register component: name and render func are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.funcs[name]; exists {
		return fmt.Errorf("register component: %q already registered", name)
	}
	c.funcs[name] = fn
	return nil
}

// MustRegister is Register that panics, for static wiring.
func (c *Catalog) MustRegister(name string, fn RenderFunc) {
	if err := c.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the render function for name.
func (c *Catalog) Lookup(name string) (RenderFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[name]
	return fn, ok
}

// Names returns the registered component names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComponentRenderer renders catalog components into strings.
type ComponentRenderer struct {
	catalog *Catalog
	timeout time.Duration
}

// Option configures a ComponentRenderer.
type Option func(*ComponentRenderer)

// WithTimeout bounds a single render call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *ComponentRenderer) {
		r.timeout = d
	}
}

// NewComponentRenderer creates a renderer over catalog.
func NewComponentRenderer(catalog *Catalog, opts ...Option) *ComponentRenderer {
	r := &ComponentRenderer{catalog: catalog}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// quoteEntities are folded back to a literal quote after rendering so that
// template expressions such as {{.X.Format "..."}} survive in text nodes.
var quoteEntities = strings.NewReplacer("&quot;", `"`, "&#34;", `"`)

type renderResult struct {
	html string
	err  error
}

// Render resolves component, builds it from props and renders it.
func (r *ComponentRenderer) Render(ctx context.Context, component string, props registry.Props) (string, error) {
	fn, ok := r.catalog.Lookup(component)
	if !ok {
		return "", perrors.NewRenderError("", perrors.ErrCodeUnknownComponent,
			fmt.Sprintf("no component registered as %q", component), nil)
	}

	comp, err := fn(props.Clone())
	if err != nil {
		return "", perrors.NewRenderError("", perrors.ErrCodeRenderFailed,
			fmt.Sprintf("build component %q", component), err)
	}
	if comp == nil {
		return "", perrors.NewRenderError("", perrors.ErrCodeRenderFailed,
			fmt.Sprintf("component %q returned nil", component), nil)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- renderResult{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		var buf bytes.Buffer
		err := comp.Render(ctx, &buf)
		done <- renderResult{html: buf.String(), err: err}
	}()

	var res renderResult
	select {
	case <-ctx.Done():
		return "", perrors.NewRenderError("", perrors.ErrCodeRenderTimeout,
			fmt.Sprintf("render %q", component), ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return "", perrors.NewRenderError("", perrors.ErrCodeRenderFailed,
			fmt.Sprintf("render %q", component), res.err)
	}
	if strings.TrimSpace(res.html) == "" {
		return "", perrors.NewRenderError("", perrors.ErrCodeEmptyRender,
			fmt.Sprintf("component %q rendered no markup", component), nil)
	}

	return quoteEntities.Replace(res.html), nil
}
