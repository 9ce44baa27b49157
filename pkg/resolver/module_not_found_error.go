package resolver

import "fmt"

// ModuleNotFoundError is returned when the search finds no file for a
// specifier.
type ModuleNotFoundError struct {
	Specifier string
	// Base is the location the search started from.
	Base string
}

func (e *ModuleNotFoundError) Error() string {
	if e.Base == "" {
		return fmt.Sprintf("cannot find module %q", e.Specifier)
	}
	return fmt.Sprintf("cannot find module %q imported from %s", e.Specifier, e.Base)
}

func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}
