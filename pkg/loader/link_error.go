package loader

import "fmt"

// LinkError is the error of a module whose dependency could not be resolved
// or failed.
type LinkError struct {
	// URL is the module being linked.
	URL string
	// Specifier is the dependency request as written in the module.
	Specifier string
	Err       error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("linking %s: dependency %q: %v", e.URL, e.Specifier, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
