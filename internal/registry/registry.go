package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	perrors "github.com/conneroisu/mailsmith/internal/errors"
)

// ErrNotFound is returned by Get for names the registry does not hold.
var ErrNotFound = errors.New("template not found")

// NotFoundError carries close matches for an unknown template name.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("template %q not found", e.Name)
	}
	return fmt.Sprintf("template %q not found (did you mean %s?)", e.Name, strings.Join(e.Suggestions, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Invalid records a descriptor excluded at load time.
type Invalid struct {
	Name   string
	Errors []error
}

// Err joins the descriptor's violations into one error.
func (i Invalid) Err() error {
	return perrors.Join(i.Errors...)
}

// Registry is the immutable, ordered set of valid descriptors.
type Registry struct {
	descriptors []*Descriptor
	byName      map[string]*Descriptor
	byOutput    map[string]string
	seen        map[string]bool
	invalid     []Invalid
	source      string
}

func newRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Descriptor),
		byOutput: make(map[string]string),
		seen:     make(map[string]bool),
	}
}

// add keeps the first descriptor for a name or output name and rejects later
// ones. A name claimed by a rejected entry stays claimed.
func (r *Registry) add(d *Descriptor) {
	if r.seen[d.Name] {
		r.reject(d.Name, []error{perrors.NewConfigError(d.Name, perrors.ErrCodeDuplicateName,
			fmt.Sprintf("name %q is already registered", d.Name))})
		return
	}
	if owner, dup := r.byOutput[d.OutputName]; dup {
		r.reject(d.Name, []error{perrors.NewConfigError(d.Name, perrors.ErrCodeDuplicateOutput,
			fmt.Sprintf("output_name %q is already used by %q", d.OutputName, owner))})
		return
	}
	r.seen[d.Name] = true
	r.byName[d.Name] = d
	r.byOutput[d.OutputName] = d.Name
	r.descriptors = append(r.descriptors, d)
}

func (r *Registry) reject(name string, errs []error) {
	if name != "" {
		r.seen[name] = true
	}
	r.invalid = append(r.invalid, Invalid{Name: name, Errors: errs})
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (*Descriptor, error) {
	if d, ok := r.byName[name]; ok {
		return d, nil
	}
	return nil, &NotFoundError{Name: name, Suggestions: r.Suggest(name, 3)}
}

// List returns every valid descriptor in registry order.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Names returns descriptor names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = d.Name
	}
	return out
}

// Invalid returns the descriptors excluded at load, in document order.
func (r *Registry) Invalid() []Invalid {
	out := make([]Invalid, len(r.invalid))
	copy(out, r.invalid)
	return out
}

// Source is the file the registry was loaded from, empty for Parse.
func (r *Registry) Source() string {
	return r.source
}

// Suggest returns up to limit registered names that fuzzily match name.
func (r *Registry) Suggest(name string, limit int) []string {
	names := r.Names()
	matches := fuzzy.Find(name, names)
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		// fuzzy.Find needs every query rune in order; fall back to shared prefixes.
		for _, n := range names {
			if name != "" && (strings.HasPrefix(n, name[:1]) || strings.Contains(n, name)) {
				out = append(out, n)
				if len(out) == limit {
					break
				}
			}
		}
	}
	return out
}
