package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/mailsmith/internal/errors"
)

const baseDoc = `
base:
  sample_props:
    logoURL: LOGOURL_PLACEHOLDER
    appName: APPNAME_PLACEHOLDER
  replacements:
    - field: logoURL
      pattern: 'LOGOURL_PLACEHOLDER'
      target: '{{.LogoURL}}'
    - field: appName
      pattern: 'APPNAME_PLACEHOLDER'
      target: '{{.AppName}}'
templates:
`

func parse(t *testing.T, templates string) *Registry {
	t.Helper()
	reg, err := Parse([]byte(baseDoc+templates), FormatYAML)
	require.NoError(t, err)
	return reg
}

func codes(inv Invalid) []string {
	var out []string
	for _, err := range inv.Errors {
		var pe *perrors.PipelineError
		if errors.As(err, &pe) {
			out = append(out, pe.Code)
		}
	}
	return out
}

func TestParse_ValidDescriptor(t *testing.T) {
	reg := parse(t, `
  - name: new-signin
    output_name: login-with-new-device
    component: new-signin
    sample_props:
      data:
        city: CITY_PLACEHOLDER
        country: COUNTRY_PLACEHOLDER
    replacements:
      - field: data.city
        pattern: 'CITY_PLACEHOLDER'
        target: '{{.Data.City}}'
      - field: data.country
        pattern: 'COUNTRY_PLACEHOLDER'
        target: '{{.Data.Country}}'
    conditionals:
      - name: location
        pattern: 'Approximate Location'
        condition: and .Data.City .Data.Country
        fields: [data.city, data.country]
    text: "hello\n"
`)
	require.Empty(t, reg.Invalid())

	d, err := reg.Get("new-signin")
	require.NoError(t, err)
	assert.Equal(t, "login-with-new-device", d.OutputName)
	assert.Equal(t, "hello\n", d.Text)
	assert.False(t, d.TextGenerated)

	var fields []string
	for _, r := range d.Rules() {
		fields = append(fields, r.Field)
	}
	assert.Equal(t, []string{"logoURL", "appName", "data.city", "data.country"}, fields)
	assert.Len(t, d.Replacements, 2)

	want := []string{"APPNAME_PLACEHOLDER", "CITY_PLACEHOLDER", "COUNTRY_PLACEHOLDER", "LOGOURL_PLACEHOLDER"}
	if diff := cmp.Diff(want, d.Sentinels()); diff != "" {
		t.Errorf("Sentinels() mismatch (-want +got):\n%s", diff)
	}

	city, ok := d.SampleProps.Lookup("data.city")
	require.True(t, ok)
	assert.Equal(t, "CITY_PLACEHOLDER", city)
	assert.Equal(t, "{{if and .Data.City .Data.Country}}<x>{{end}}", d.Conditionals[0].Wrap("<x>"))
}

func TestParse_DefaultsOutputNameAndText(t *testing.T) {
	reg := parse(t, `
  - name: password-reset
    component: password-reset
`)
	d, err := reg.Get("password-reset")
	require.NoError(t, err)
	assert.Equal(t, "password-reset", d.OutputName)
	assert.True(t, d.TextGenerated)
	assert.True(t, strings.HasPrefix(d.Text, "Password Reset\n==============\n\nEmail content goes here."))
	assert.Contains(t, d.Text, "{{.AppName}}")
}

func TestParse_InvalidDescriptorsAreExcluded(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"bad name", `
  - name: Bad_Name
    component: x
`, perrors.ErrCodeInvalidName},
		{"missing component", `
  - name: no-component
`, perrors.ErrCodeMissingComponent},
		{"uncompilable pattern", `
  - name: bad-pattern
    component: x
    replacements:
      - field: appName
        pattern: '(APPNAME'
        target: '{{.AppName}}'
`, perrors.ErrCodeBadPattern},
		{"unknown field", `
  - name: unknown-field
    component: x
    replacements:
      - field: data.city
        pattern: 'CITY_PLACEHOLDER'
        target: '{{.Data.City}}'
`, perrors.ErrCodeUnknownField},
		{"field is not a leaf", `
  - name: not-leaf
    component: x
    sample_props:
      data:
        city: CITY_PLACEHOLDER
    replacements:
      - field: data
        pattern: 'CITY_PLACEHOLDER'
        target: '{{.Data}}'
`, perrors.ErrCodeUnknownField},
		{"non-sentinel sample prop", `
  - name: real-value
    component: x
    sample_props:
      data:
        city: Paris
`, perrors.ErrCodeNotSentinel},
		{"target contains sentinel", `
  - name: sentinel-target
    component: x
    sample_props:
      data:
        city: CITY_PLACEHOLDER
    replacements:
      - field: data.city
        pattern: 'CITY_PLACEHOLDER'
        target: 'COUNTRY_PLACEHOLDER'
`, perrors.ErrCodeSentinelInTarget},
		{"pattern misses its own sentinel", `
  - name: misses
    component: x
    sample_props:
      data:
        city: CITY_PLACEHOLDER
    replacements:
      - field: data.city
        pattern: 'TOWN_PLACEHOLDER'
        target: '{{.Data.City}}'
`, perrors.ErrCodeBadPattern},
		{"shadowed sentinel", `
  - name: shadowed
    component: x
    sample_props:
      data:
        name: NAME_PLACEHOLDER
        apiKeyName: APIKEYNAME_PLACEHOLDER
    replacements:
      - field: data.name
        pattern: 'NAME_PLACEHOLDER'
        target: '{{.Data.Name}}'
      - field: data.apiKeyName
        pattern: 'APIKEYNAME_PLACEHOLDER'
        target: '{{.Data.ApiKeyName}}'
`, perrors.ErrCodeBadPattern},
		{"empty condition", `
  - name: empty-condition
    component: x
    conditionals:
      - pattern: 'x'
        condition: '  '
`, perrors.ErrCodeEmptyCondition},
		{"conditional references unknown field", `
  - name: cond-field
    component: x
    conditionals:
      - pattern: 'x'
        condition: .Data.City
        fields: [data.city]
`, perrors.ErrCodeUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := parse(t, tt.doc+`
  - name: good
    component: good
`)
			assert.Equal(t, []string{"good"}, reg.Names())

			invalid := reg.Invalid()
			require.Len(t, invalid, 1)
			assert.Contains(t, codes(invalid[0]), tt.code)
			assert.True(t, perrors.IsConfigError(invalid[0].Err()))
		})
	}
}

func TestParse_DuplicatesKeepFirst(t *testing.T) {
	reg := parse(t, `
  - name: a
    component: first
  - name: a
    component: second
  - name: b
    output_name: a
    component: third
`)
	d, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "first", d.Component)
	assert.Equal(t, []string{"a"}, reg.Names())

	invalid := reg.Invalid()
	require.Len(t, invalid, 2)
	assert.Equal(t, []string{perrors.ErrCodeDuplicateName}, codes(invalid[0]))
	assert.Equal(t, []string{perrors.ErrCodeDuplicateOutput}, codes(invalid[1]))
}

func TestParse_RejectedNameStaysClaimed(t *testing.T) {
	reg := parse(t, `
  - name: alpha
    component: ""
  - name: alpha
    component: second
  - name: beta
    component: beta
`)
	assert.Equal(t, []string{"beta"}, reg.Names())
	_, err := reg.Get("alpha")
	assert.ErrorIs(t, err, ErrNotFound)

	invalid := reg.Invalid()
	require.Len(t, invalid, 2)
	assert.Equal(t, "alpha", invalid[0].Name)
	assert.Equal(t, "alpha", invalid[1].Name)
	assert.Equal(t, []string{perrors.ErrCodeDuplicateName}, codes(invalid[1]))
}

func TestParse_UnknownKeyIsFatal(t *testing.T) {
	_, err := Parse([]byte(baseDoc+`
  - name: a
    component: a
    colour: blue
`), FormatYAML)
	require.Error(t, err)
	assert.True(t, perrors.IsConfigError(err))
}

func TestParse_InvalidBaseIsFatal(t *testing.T) {
	_, err := Parse([]byte(`
base:
  sample_props:
    appName: Pocket ID
templates: []
`), FormatYAML)
	require.Error(t, err)
	assert.True(t, perrors.IsConfigError(err))
}

func TestParse_TOML(t *testing.T) {
	doc := `
[base.sample_props]
appName = "APPNAME_PLACEHOLDER"

[[base.replacements]]
field = "appName"
pattern = 'APPNAME_PLACEHOLDER'
target = '{{.AppName}}'

[[templates]]
name = "test"
component = "test"
text = "This is a test email.\n"

[[templates]]
name = "one-time-access"
component = "one-time-access"

[templates.sample_props.data]
code = "CODE_PLACEHOLDER"

[[templates.replacements]]
field = "data.code"
pattern = 'CODE_PLACEHOLDER'
target = '{{.Data.Code}}'
`
	reg, err := Parse([]byte(doc), FormatTOML)
	require.NoError(t, err)
	require.Empty(t, reg.Invalid())
	assert.Equal(t, []string{"test", "one-time-access"}, reg.Names())

	d, err := reg.Get("one-time-access")
	require.NoError(t, err)
	assert.Len(t, d.Rules(), 2)
	code, ok := d.SampleProps.Lookup("data.code")
	require.True(t, ok)
	assert.Equal(t, "CODE_PLACEHOLDER", code)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yml")
	require.NoError(t, os.WriteFile(path, []byte(baseDoc+"  - name: test\n    component: test\n"), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, reg.Source())
	assert.Equal(t, []string{"test"}, reg.Names())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, perrors.IsIOError(err))

	_, err = Load(filepath.Join(dir, "registry.json"))
	require.Error(t, err)
	assert.True(t, perrors.IsConfigError(err))
}

func TestGet_NotFoundSuggests(t *testing.T) {
	reg := parse(t, `
  - name: one-time-access
    component: x
  - name: new-signin
    component: y
`)
	_, err := reg.Get("one-time")
	require.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"one-time-access"}, nf.Suggestions)
	assert.Contains(t, err.Error(), "did you mean one-time-access")
}

func TestList_ReturnsCopy(t *testing.T) {
	reg := parse(t, `
  - name: a
    component: a
  - name: b
    component: b
`)
	list := reg.List()
	list[0] = nil
	assert.NotNil(t, reg.List()[0])
}

func TestProps(t *testing.T) {
	base := Props{"appName": "APPNAME_PLACEHOLDER", "data": map[string]interface{}{"a": "A_PLACEHOLDER"}}
	merged := MergeProps(base, Props{"data": map[string]interface{}{"b": "B_PLACEHOLDER"}})

	var paths []string
	for _, l := range merged.Leaves() {
		paths = append(paths, l.Path)
	}
	assert.Equal(t, []string{"appName", "data.a", "data.b"}, paths)

	_, ok := base.Lookup("data.b")
	assert.False(t, ok, "merge must not mutate base")

	_, ok = merged.Lookup("data.a.deeper")
	assert.False(t, ok)
	_, ok = merged.Lookup("")
	assert.False(t, ok)
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel("CITY_PLACEHOLDER"))
	assert.True(t, IsSentinel("API2KEY_PLACEHOLDER"))
	assert.False(t, IsSentinel("city_PLACEHOLDER"))
	assert.False(t, IsSentinel("CITY_PLACEHOLDERX"))
	assert.False(t, IsSentinel("_PLACEHOLDER"))
	assert.False(t, IsSentinel("Paris"))
}
