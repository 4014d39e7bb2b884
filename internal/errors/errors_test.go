package errors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Error(t *testing.T) {
	err := NewRenderError("new-signin", ErrCodeRenderFailed, "component failed", errors.New("boom"))

	assert.Equal(t, "[RENDER_FAILED] template:new-signin stage:render component failed: boom", err.Error())
}

func TestPipelineError_Is(t *testing.T) {
	err := NewConfigError("test", ErrCodeUnknownField, "rule references unknown field data.city")

	assert.True(t, errors.Is(err, ErrConfig))
	assert.True(t, errors.Is(err, &PipelineError{Type: ErrorTypeConfig, Code: ErrCodeUnknownField}))
	assert.False(t, errors.Is(err, &PipelineError{Type: ErrorTypeConfig, Code: ErrCodeBadPattern}))
	assert.False(t, errors.Is(err, ErrRender))
}

func TestPredicates(t *testing.T) {
	cfg := NewConfigError("a", ErrCodeDuplicateName, "dup")
	render := NewRenderError("a", ErrCodeEmptyRender, "empty", nil)
	io := NewIOError(ErrCodeWrite, "write", fs.ErrPermission)

	assert.True(t, IsConfigError(cfg))
	assert.True(t, IsRenderError(render))
	assert.True(t, IsIOError(io))
	assert.False(t, IsIOError(render))
	assert.True(t, errors.Is(io, fs.ErrPermission))

	assert.Equal(t, ErrorTypeInternal, GetErrorType(errors.New("plain")))
	assert.Equal(t, ErrorTypeRender, GetErrorType(render))
}

func TestWrap_PreservesTemplateAndStage(t *testing.T) {
	inner := NewIOError(ErrCodeWrite, "rename failed", fs.ErrExist).
		WithTemplate("test").
		WithStage("write")

	wrapped := Wrap(inner, ErrorTypeInternal, "OUTER", "outer")
	require.NotNil(t, wrapped)

	assert.Equal(t, "test", wrapped.Template)
	assert.Equal(t, "write", wrapped.Stage)
	assert.True(t, errors.Is(wrapped, fs.ErrExist))
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "y"))
}

func TestIncompleteSubstitution(t *testing.T) {
	err := NewIncompleteSubstitution("one-time-access", []string{"CODE_PLACEHOLDER"})

	assert.True(t, errors.Is(err, ErrIncompleteSubstitution))
	assert.Contains(t, err.Error(), "CODE_PLACEHOLDER")
	assert.Equal(t, "substitute", err.Stage)
}

func TestJoin(t *testing.T) {
	assert.Nil(t, Join(nil, nil))

	single := errors.New("one")
	assert.Same(t, single, Join(nil, single))

	a := NewConfigError("a", ErrCodeDuplicateName, "dup")
	b := errors.New("b")
	j := Join(a, b)
	require.Error(t, j)
	assert.Contains(t, j.Error(), "2 errors")
	assert.True(t, errors.Is(j, ErrConfig))
	assert.True(t, errors.Is(j, b))
}

func TestFromPanic(t *testing.T) {
	err := FromPanic("test", "render", "nil map")

	assert.Equal(t, ErrorTypeInternal, err.Type)
	assert.Equal(t, ErrCodePanic, err.Code)
	assert.Contains(t, err.Error(), "panic: nil map")
}
