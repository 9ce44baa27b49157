package resolver

import "fmt"

// LegacyResolutionAvailableError is returned in place of a
// ModuleNotFoundError when the legacy loader could have found the module.
// It wraps the original error.
type LegacyResolutionAvailableError struct {
	Specifier string
	Base      string
	// Found is the file the legacy loader resolved.
	Found string
	Err   error
}

func (e *LegacyResolutionAvailableError) Error() string {
	return fmt.Sprintf("%v; did you mean to require(%q)? (the legacy loader resolves it to %s)", e.Err, e.Specifier, e.Found)
}

func (e *LegacyResolutionAvailableError) Unwrap() error {
	return e.Err
}

func (e *LegacyResolutionAvailableError) Is(target error) bool {
	return target == ErrLegacyResolutionAvailable
}
