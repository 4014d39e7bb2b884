package registry

import (
	"strings"
	"testing"
)

// FuzzParse feeds arbitrary documents to the loader. It must never panic, and
// whatever it accepts must satisfy the descriptor invariants.
func FuzzParse(f *testing.F) {
	f.Add([]byte(baseDoc + "  - name: test\n    component: test\n"))
	f.Add([]byte("templates: []\n"))
	f.Add([]byte("templates:\n  - name: a\n    component: a\n  - name: a\n    component: b\n"))
	f.Add([]byte("templates:\n  - name: x\n    component: x\n    replacements:\n      - field: f\n        pattern: '('\n"))
	f.Add([]byte("base: {sample_props: {a: A_PLACEHOLDER}}\ntemplates:\n  - {name: t, component: t}\n"))
	f.Add([]byte("\x00\x01"))
	f.Add([]byte(strings.Repeat("templates:\n", 100)))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 64*1024 {
			t.Skip("document too large")
		}

		reg, err := Parse(data, FormatYAML)
		if err != nil {
			return
		}

		seenOutputs := make(map[string]bool)
		for _, d := range reg.List() {
			if d.Name == "" || d.Component == "" || d.OutputName == "" {
				t.Errorf("accepted descriptor with empty identity: %+v", d)
			}
			if seenOutputs[d.OutputName] {
				t.Errorf("output name %q accepted twice", d.OutputName)
			}
			seenOutputs[d.OutputName] = true

			for _, s := range d.Sentinels() {
				if !IsSentinel(s) {
					t.Errorf("%s: accepted non-sentinel sample value %q", d.Name, s)
				}
			}
			for _, r := range d.Rules() {
				if r.Regexp() == nil {
					t.Errorf("%s: rule for %s has no compiled pattern", d.Name, r.Field)
				}
				if SentinelPattern.MatchString(r.Target) {
					t.Errorf("%s: target %q reintroduces a sentinel", d.Name, r.Target)
				}
			}
			if _, err := reg.Get(d.Name); err != nil {
				t.Errorf("listed descriptor %q not retrievable: %v", d.Name, err)
			}
		}

		for _, inv := range reg.Invalid() {
			if len(inv.Errors) == 0 {
				t.Errorf("invalid entry %q without errors", inv.Name)
			}
		}
	})
}
