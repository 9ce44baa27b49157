package resolver

import "fmt"

// UnknownFormatError is returned when no format can be inferred for a
// location, or a dynamic result has no instantiation function.
type UnknownFormatError struct {
	URL    string
	Ext    string
	Reason string
}

func (e *UnknownFormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unknown module format for %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("unknown file extension %q for %s", e.Ext, e.URL)
}

func (e *UnknownFormatError) Is(target error) bool {
	return target == ErrUnknownFormat
}
