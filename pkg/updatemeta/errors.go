package updatemeta

import (
	"fmt"
)

// SpecFormatError reports an update specification that does not conform to
// the two-level schema. It is fatal: nothing is applied from a malformed
// specification.
type SpecFormatError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *SpecFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed update specification (line %d): %s", e.Line, e.Message)
	}
	return fmt.Sprintf("malformed update specification: %s", e.Message)
}

// Is matches any SpecFormatError.
func (e *SpecFormatError) Is(target error) bool {
	_, ok := target.(*SpecFormatError)
	return ok
}

// EvaluationError reports a failure while evaluating a set-from-expression
// operation. It is recorded as a diagnostic; the target attribute is left
// unchanged and the run continues.
type EvaluationError struct {
	Expression string
	Err        error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating expression %q: %v", e.Expression, e.Err)
}

// Unwrap returns the underlying evaluation failure.
func (e *EvaluationError) Unwrap() error { return e.Err }

// Is matches any EvaluationError.
func (e *EvaluationError) Is(target error) bool {
	_, ok := target.(*EvaluationError)
	return ok
}
