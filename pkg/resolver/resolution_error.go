package resolver

import "fmt"

// ResolutionError reports a specifier that cannot be resolved at all, for
// example a relative specifier without a base location.
type ResolutionError struct {
	Specifier string
	Reason    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Specifier, e.Reason)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}
