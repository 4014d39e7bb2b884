// Package artifact persists compiled templates to the output directory.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/conneroisu/mailsmith/internal/errors"
	"github.com/conneroisu/mailsmith/internal/logging"
)

const (
	DefaultExtension   = "tmpl"
	DefaultRichVariant = "html"
	DefaultTextVariant = "text"
	DefaultBlockName   = "root"
	DefaultFileMode    = os.FileMode(0o644)
)

// Options configures a Writer. Zero fields take the defaults above.
type Options struct {
	Dir         string
	Extension   string
	RichVariant string
	TextVariant string
	BlockName   string
	FileMode    os.FileMode
	Logger      logging.Logger
}

// Paths are the two files written for one template.
type Paths struct {
	Rich string
	Text string
}

// Failure is a file Cleanup could not remove.
type Failure struct {
	Path string
	Err  error
}

// CleanupResult lists what Cleanup removed and what it had to skip.
type CleanupResult struct {
	Removed []string
	Failed  []Failure
}

// Writer owns the output directory for the duration of a run.
type Writer struct {
	opts   Options
	logger logging.Logger
	remove func(string) error
}

// NewWriter returns a Writer for opts.Dir.
func NewWriter(opts Options) *Writer {
	opts.Extension = strings.TrimPrefix(opts.Extension, ".")
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.RichVariant == "" {
		opts.RichVariant = DefaultRichVariant
	}
	if opts.TextVariant == "" {
		opts.TextVariant = DefaultTextVariant
	}
	if opts.BlockName == "" {
		opts.BlockName = DefaultBlockName
	}
	if opts.FileMode == 0 {
		opts.FileMode = DefaultFileMode
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Writer{
		opts:   opts,
		logger: logger.WithComponent("artifact"),
		remove: os.Remove,
	}
}

// Dir is the output directory.
func (w *Writer) Dir() string {
	return w.opts.Dir
}

// Path returns the file a template variant is written to.
func (w *Writer) Path(outputName, variant string) string {
	return filepath.Join(w.opts.Dir, outputName+"_"+variant+"."+w.opts.Extension)
}

// Cleanup creates the output directory if needed and removes every file with
// the artifact extension. Files that cannot be removed are logged and
// reported but do not fail the call.
func (w *Writer) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult

	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return res, perrors.WrapIO(err, perrors.ErrCodeCleanup, "create output directory "+w.opts.Dir)
	}

	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return res, perrors.WrapIO(err, perrors.ErrCodeCleanup, "read output directory "+w.opts.Dir)
	}

	suffix := "." + w.opts.Extension
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		path := filepath.Join(w.opts.Dir, entry.Name())
		if err := w.remove(path); err != nil {
			w.logger.Warn(ctx, err, "could not remove stale artifact", "path", path)
			res.Failed = append(res.Failed, Failure{Path: path, Err: err})
			continue
		}
		w.logger.Debug(ctx, "removed stale artifact", "path", path)
		res.Removed = append(res.Removed, path)
	}

	return res, nil
}

// Wrap places body inside the named root block every artifact exposes.
func (w *Writer) Wrap(body string) string {
	return fmt.Sprintf(`{{define "%s"}}%s{{end}}`, w.opts.BlockName, body)
}

// Write emits the rich and text variants for outputName. Both files are
// staged before either is renamed into place, and a text file that cannot be
// committed takes the new rich file with it, so a failed Write never leaves
// half a pair behind.
func (w *Writer) Write(outputName, rich, text string) (Paths, error) {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return Paths{}, perrors.WrapIO(err, perrors.ErrCodeWrite, "create output directory "+w.opts.Dir)
	}

	paths := Paths{
		Rich: w.Path(outputName, w.opts.RichVariant),
		Text: w.Path(outputName, w.opts.TextVariant),
	}

	richTmp, err := w.stage(paths.Rich, w.Wrap(rich))
	if err != nil {
		return Paths{}, err
	}
	defer removeTemp(richTmp)

	textTmp, err := w.stage(paths.Text, w.Wrap(text))
	if err != nil {
		return Paths{}, err
	}
	defer removeTemp(textTmp)

	if err := os.Rename(richTmp, paths.Rich); err != nil {
		return Paths{}, perrors.WrapIO(err, perrors.ErrCodeWrite, "rename into "+paths.Rich)
	}
	if err := os.Rename(textTmp, paths.Text); err != nil {
		if rmErr := w.remove(paths.Rich); rmErr != nil {
			w.logger.Warn(context.Background(), rmErr, "could not remove unpaired artifact", "path", paths.Rich)
		}
		return Paths{}, perrors.WrapIO(err, perrors.ErrCodeWrite, "rename into "+paths.Text)
	}
	return paths, nil
}

// stage writes content to a synced temp file next to path and returns its name.
func (w *Writer) stage(path, content string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", perrors.WrapIO(err, perrors.ErrCodeWrite, "create temp file for "+path)
	}
	tmpName := tmp.Name()

	fail := func(err error, action string) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", perrors.WrapIO(err, perrors.ErrCodeWrite, action+" "+path)
	}
	if _, err := tmp.WriteString(content); err != nil {
		return fail(err, "write")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "sync")
	}
	if err := tmp.Close(); err != nil {
		return fail(err, "close")
	}
	if err := os.Chmod(tmpName, w.opts.FileMode); err != nil {
		return fail(err, "chmod")
	}
	return tmpName, nil
}

// removeTemp drops a staged file that was never renamed. After a successful
// rename the name no longer exists and the error is ignored.
func removeTemp(name string) {
	_ = os.Remove(name)
}
