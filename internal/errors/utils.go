package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context, creating a PipelineError if the
// input is not already one. Template and stage are preserved from a wrapped
// PipelineError when the caller does not set them.
func Wrap(err error, errType ErrorType, code, message string) *PipelineError {
	if err == nil {
		return nil
	}

	var pe *PipelineError
	if errors.As(err, &pe) {
		return &PipelineError{
			Type:     errType,
			Code:     code,
			Template: pe.Template,
			Stage:    pe.Stage,
			Message:  message,
			Cause:    pe,
			Context:  pe.Context,
		}
	}

	return &PipelineError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *PipelineError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// FromPanic converts a recovered panic value into an internal error.
func FromPanic(template, stage string, recovered interface{}) *PipelineError {
	return &PipelineError{
		Type:     ErrorTypeInternal,
		Code:     ErrCodePanic,
		Template: template,
		Stage:    stage,
		Message:  fmt.Sprintf("panic: %v", recovered),
	}
}

// Join renders several errors as a single multi-line message. Nil entries are
// skipped and nil is returned when nothing is left.
func Join(errs ...error) error {
	var msgs []string
	var kept []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		kept = append(kept, err)
		msgs = append(msgs, "  - "+err.Error())
	}
	if len(kept) == 0 {
		return nil
	}
	if len(kept) == 1 {
		return kept[0]
	}

	return &joined{errs: kept, msg: fmt.Sprintf("%d errors:\n%s", len(kept), strings.Join(msgs, "\n"))}
}

type joined struct {
	errs []error
	msg  string
}

func (j *joined) Error() string   { return j.msg }
func (j *joined) Unwrap() []error { return j.errs }
