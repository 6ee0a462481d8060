package optimizer

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
)

// ErrorCode categorizes optimizer errors.
type ErrorCode string

const (
	// ErrCodeOutOfMemory indicates the variable arena was exhausted.
	ErrCodeOutOfMemory ErrorCode = "OUT_OF_MEMORY"

	// ErrCodeMalformed indicates an instruction shape the pass cannot handle
	// reached a point that assumes a known shape.
	ErrCodeMalformed ErrorCode = "MALFORMED"

	// ErrCodeValidation indicates the validation oracle rejected a
	// rewritten block.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates an unregistered pass name.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodePassFailed wraps any other error returned by a pass.
	ErrCodePassFailed ErrorCode = "PASS_FAILED"
)

// OptimizerError is returned by the driver and by passes.
type OptimizerError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Pass names the pass that failed, if known.
	Pass string

	// Check names the failed oracle check ("type", "flow", "declaration").
	Check string

	// Op is the offending "module.function" for malformed shapes.
	Op string

	// Message is a human-readable description.
	Message string

	cause error
}

// Error implements the error interface.
func (e *OptimizerError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Pass != "" && e.Check != "":
		msg += fmt.Sprintf(" (pass=%s, check=%s)", e.Pass, e.Check)
	case e.Pass != "" && e.Op != "":
		msg += fmt.Sprintf(" (pass=%s, op=%s)", e.Pass, e.Op)
	case e.Pass != "":
		msg += fmt.Sprintf(" (pass=%s)", e.Pass)
	case e.Op != "":
		msg += fmt.Sprintf(" (op=%s)", e.Op)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OptimizerError) Unwrap() error { return e.cause }

// NewMalformed reports an instruction shape that a rewrite cannot handle.
func NewMalformed(p *ir.Instruction, format string, args ...any) *OptimizerError {
	return &OptimizerError{
		Code:    ErrCodeMalformed,
		Op:      p.Name(),
		Message: fmt.Sprintf(format, args...),
		cause:   errors.AssertionFailedf("malformed %s", p.Name()),
	}
}

// NewNotFound reports an unregistered pass.
func NewNotFound(name string) *OptimizerError {
	return &OptimizerError{
		Code:    ErrCodeNotFound,
		Pass:    name,
		Message: fmt.Sprintf("optimizer pass %q not found", name),
	}
}

// NewValidationError tags an oracle failure with the pass that caused it.
func NewValidationError(pass, check string, err error) *OptimizerError {
	return &OptimizerError{
		Code:    ErrCodeValidation,
		Pass:    pass,
		Check:   check,
		Message: err.Error(),
		cause:   err,
	}
}

// wrapPassError classifies an error returned by a pass.
func wrapPassError(pass string, err error) error {
	var oe *OptimizerError
	if errors.As(err, &oe) {
		if oe.Pass == "" {
			oe.Pass = pass
		}
		return oe
	}
	code := ErrCodePassFailed
	if errors.Is(err, ir.ErrOutOfMemory) {
		code = ErrCodeOutOfMemory
	}
	return &OptimizerError{
		Code:    code,
		Pass:    pass,
		Message: err.Error(),
		cause:   err,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var oe *OptimizerError
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

// IsOutOfMemory reports whether err is an arena exhaustion.
func IsOutOfMemory(err error) bool {
	return hasCode(err, ErrCodeOutOfMemory) || errors.Is(err, ir.ErrOutOfMemory)
}

// IsMalformed reports whether err is a malformed-shape error.
func IsMalformed(err error) bool { return hasCode(err, ErrCodeMalformed) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsNotFound reports whether err is an unknown pass.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }
