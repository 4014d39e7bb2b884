package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mailsmith/internal/version"
	"github.com/conneroisu/mailsmith/internal/watcher"
)

const fixtureRegistry = `base:
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
  - name: test
    component: test
    text: |
      This is a test email.
`

const brokenTemplate = `
  - name: ghost
    component: no-such-component
  - name: Bad Name
    component: test
`

// setupProject writes a registry and points the global config at it.
func setupProject(t *testing.T, registryDoc string) (outDir string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registryDoc), 0o644))
	outDir = filepath.Join(dir, "out")

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("registry.path", path)
	viper.Set("output.dir", outDir)
	viper.Set("log.level", "error")

	buildOnly = nil
	buildVerbose = false
	listFormat = "table"
	return outDir
}

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	return cmd, &out
}

func TestRunBuild_WritesArtifacts(t *testing.T) {
	outDir := setupProject(t, fixtureRegistry)
	cmd, out := newTestCommand()

	require.NoError(t, runBuild(cmd, nil))

	html, err := os.ReadFile(filepath.Join(outDir, "test_html.tmpl"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(html), `{{define "root"}}`))
	assert.Contains(t, string(html), "{{.AppName}}")
	assert.NotContains(t, string(html), "_PLACEHOLDER")

	text, err := os.ReadFile(filepath.Join(outDir, "test_text.tmpl"))
	require.NoError(t, err)
	assert.Equal(t, "{{define \"root\"}}This is a test email.\n{{end}}", string(text))

	assert.Contains(t, out.String(), "ok   test -> ")
	assert.Contains(t, out.String(), "1 of 1 templates compiled")
}

func TestRunBuild_FailureExitsNonZero(t *testing.T) {
	outDir := setupProject(t, fixtureRegistry+brokenTemplate)
	cmd, out := newTestCommand()

	err := runBuild(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 templates failed")

	assert.FileExists(t, filepath.Join(outDir, "test_html.tmpl"))
	assert.Contains(t, out.String(), "FAIL ghost [render]")
	assert.Contains(t, out.String(), "FAIL Bad Name [load]")
}

func TestRunBuild_Only(t *testing.T) {
	outDir := setupProject(t, fixtureRegistry+brokenTemplate)
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	stale := filepath.Join(outDir, "stale_html.tmpl")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	buildOnly = []string{"test"}
	cmd, out := newTestCommand()
	require.NoError(t, runBuild(cmd, nil))

	assert.FileExists(t, stale, "--only must not clean other artifacts")
	assert.NotContains(t, out.String(), "ghost")
}

func TestRunBuild_MissingRegistry(t *testing.T) {
	setupProject(t, fixtureRegistry)
	viper.Set("registry.path", filepath.Join(t.TempDir(), "nope.yaml"))
	cmd, _ := newTestCommand()

	err := runBuild(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
}

func TestRunBuild_InvalidConfig(t *testing.T) {
	setupProject(t, fixtureRegistry)
	viper.Set("log.format", "xml")
	cmd, _ := newTestCommand()

	err := runBuild(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRunList_Formats(t *testing.T) {
	setupProject(t, fixtureRegistry+brokenTemplate)

	t.Run("table", func(t *testing.T) {
		listFormat = "table"
		cmd, out := newTestCommand()
		require.NoError(t, runList(cmd, nil))
		assert.Contains(t, out.String(), "NAME")
		assert.Contains(t, out.String(), "ghost")
		assert.Contains(t, out.String(), "1 invalid:")
		assert.Contains(t, out.String(), "Bad Name")
	})

	t.Run("json", func(t *testing.T) {
		listFormat = "json"
		cmd, out := newTestCommand()
		require.NoError(t, runList(cmd, nil))

		var entries []listEntry
		require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
		require.Len(t, entries, 3)
		assert.Equal(t, "test", entries[0].Name)
		assert.Equal(t, 2, entries[0].Rules)
		assert.False(t, entries[0].GeneratedText)
		assert.True(t, entries[1].GeneratedText)
		assert.False(t, entries[2].Valid)
		assert.NotEmpty(t, entries[2].Errors)
	})

	t.Run("yaml", func(t *testing.T) {
		listFormat = "yaml"
		cmd, out := newTestCommand()
		require.NoError(t, runList(cmd, nil))

		var entries []listEntry
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &entries))
		assert.Len(t, entries, 3)
	})
}

func TestValidateFormatWithSuggestion(t *testing.T) {
	assert.NoError(t, ValidateFormatWithSuggestion("json", listFormats))

	err := ValidateFormatWithSuggestion("jsn", listFormats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "json"?`)

	err = ValidateFormatWithSuggestion("xml", listFormats)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestListFormatFlagValidation(t *testing.T) {
	flag := listCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Error(t, flag.Value.Set("csv"))
	assert.NoError(t, flag.Value.Set("yaml"))
	listFormat = "table"
}

func TestWriteVersion(t *testing.T) {
	info := version.BuildInfo{Version: "v1.0.0", GitCommit: "0123456789", GoVersion: "go1.24", Platform: "linux/amd64"}
	t.Cleanup(func() {
		versionFormat, versionShort, versionDetailed = "text", false, false
	})

	var out bytes.Buffer
	versionFormat = "text"
	require.NoError(t, writeVersion(&out, info))
	assert.Equal(t, "mailsmith v1.0.0 (0123456)\n", out.String())

	out.Reset()
	versionShort = true
	require.NoError(t, writeVersion(&out, info))
	assert.Equal(t, "v1.0.0\n", out.String())

	out.Reset()
	versionShort = false
	versionFormat = "json"
	require.NoError(t, writeVersion(&out, info))
	var decoded version.BuildInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "v1.0.0", decoded.Version)

	versionFormat = "xml"
	assert.Error(t, writeVersion(&out, info))
}

func TestTouches(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, ".mailsmith.yml")
	isConfig := watcher.OnlyFiles(cfg)

	assert.False(t, touches(nil, isConfig))
	assert.True(t, touches([]watcher.ChangeEvent{{Path: cfg}}, isConfig))
	assert.True(t, touches([]watcher.ChangeEvent{{Path: dir + "/sub/../.mailsmith.yml"}}, isConfig))
	assert.False(t, touches([]watcher.ChangeEvent{{Path: filepath.Join(dir, "registry.yaml")}}, isConfig))
}
