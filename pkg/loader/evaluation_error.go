package loader

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
)

// EvaluationError is the error of a module whose body failed.
type EvaluationError struct {
	URL string
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", e.URL, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Backtrace returns the Starlark backtrace of the failure, if the body was
// Starlark code.
func (e *EvaluationError) Backtrace() string {
	var evalErr *starlark.EvalError
	if errors.As(e.Err, &evalErr) {
		return evalErr.Backtrace()
	}
	return ""
}
