// Package errors defines the typed errors raised by the template pipeline.
//
// Every error carries the template it belongs to and the pipeline stage that
// produced it so the orchestrator can report failures per template without
// string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeRender       ErrorType = "render"
	ErrorTypeSubstitution ErrorType = "substitution"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeInternal     ErrorType = "internal"
)

// Error codes.
const (
	ErrCodeDuplicateName      = "DUPLICATE_NAME"
	ErrCodeDuplicateOutput    = "DUPLICATE_OUTPUT_NAME"
	ErrCodeInvalidName        = "INVALID_NAME"
	ErrCodeMissingComponent   = "MISSING_COMPONENT"
	ErrCodeBadPattern         = "BAD_PATTERN"
	ErrCodeUnknownField       = "UNKNOWN_FIELD"
	ErrCodeNotSentinel        = "NOT_SENTINEL"
	ErrCodeSentinelInTarget   = "SENTINEL_IN_TARGET"
	ErrCodeEmptyCondition     = "EMPTY_CONDITION"
	ErrCodeRegistryUnreadable = "REGISTRY_UNREADABLE"
	ErrCodeUnknownTemplate    = "UNKNOWN_TEMPLATE"

	ErrCodeUnknownComponent = "UNKNOWN_COMPONENT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeEmptyRender      = "EMPTY_RENDER"
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"

	ErrCodeResidualSentinel = "RESIDUAL_SENTINEL"

	ErrCodeCleanup = "CLEANUP_FAILED"
	ErrCodeWrite   = "WRITE_FAILED"

	ErrCodePanic = "PANIC"
)

// PipelineError is a structured error type with template and stage context.
type PipelineError struct {
	Type     ErrorType
	Code     string
	Template string
	Stage    string
	Message  string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Template != "" {
		parts = append(parts, "template:"+e.Template)
	}

	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && (t.Code == "" || e.Code == t.Code)
	}

	return false
}

// WithTemplate adds template context.
func (e *PipelineError) WithTemplate(name string) *PipelineError {
	e.Template = name

	return e
}

// WithStage adds the pipeline stage.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage

	return e
}

// WithContext adds context information to the error.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// NewConfigError creates a descriptor validation error.
func NewConfigError(template, code, message string) *PipelineError {
	return &PipelineError{
		Type:     ErrorTypeConfig,
		Code:     code,
		Template: template,
		Stage:    "load",
		Message:  message,
	}
}

// NewRenderError creates a render stage error.
func NewRenderError(template, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:     ErrorTypeRender,
		Code:     code,
		Template: template,
		Stage:    "render",
		Message:  message,
		Cause:    cause,
	}
}

// NewIncompleteSubstitution reports sentinels that survived every rule.
func NewIncompleteSubstitution(template string, residual []string) *PipelineError {
	return &PipelineError{
		Type:     ErrorTypeSubstitution,
		Code:     ErrCodeResidualSentinel,
		Template: template,
		Stage:    "substitute",
		Message:  "sentinel markers left after substitution: " + strings.Join(residual, ", "),
		Context:  map[string]interface{}{"residual": residual},
	}
}

// NewIOError creates a file-system error.
func NewIOError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinel values for errors.Is checks.
var (
	ErrConfig                 = &PipelineError{Type: ErrorTypeConfig}
	ErrRender                 = &PipelineError{Type: ErrorTypeRender}
	ErrIncompleteSubstitution = &PipelineError{Type: ErrorTypeSubstitution}
	ErrIO                     = &PipelineError{Type: ErrorTypeIO}
)

// IsConfigError checks if an error is a descriptor validation error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsRenderError checks if an error came from the render stage.
func IsRenderError(err error) bool {
	return hasType(err, ErrorTypeRender)
}

// IsIOError checks if an error is file-system related.
func IsIOError(err error) bool {
	return hasType(err, ErrorTypeIO)
}

// GetErrorType returns the type of a PipelineError, or internal for anything else.
func GetErrorType(err error) ErrorType {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type
	}

	return ErrorTypeInternal
}

func hasType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}
