package resolver

import (
	"fmt"

	"github.com/stackb/modload/pkg/format"
)

// UnknownLoaderError is returned when a resolve hook names a format that
// has no registered loading strategy.
type UnknownLoaderError struct {
	URL    string
	Format format.Format
}

func (e *UnknownLoaderError) Error() string {
	return fmt.Sprintf("no loader registered for format %s (%s)", e.Format, e.URL)
}

func (e *UnknownLoaderError) Is(target error) bool {
	return target == ErrUnknownLoader
}
