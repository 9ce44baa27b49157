package resolver

import "fmt"

// InvalidProtocolError is returned for a non-dynamic result whose scheme the
// loading strategies cannot read.
type InvalidProtocolError struct {
	URL    string
	Scheme string
}

func (e *InvalidProtocolError) Error() string {
	return fmt.Sprintf("only file and builtin URLs are supported by the default loaders; got protocol %q (%s)", e.Scheme+":", e.URL)
}

func (e *InvalidProtocolError) Is(target error) bool {
	return target == ErrInvalidProtocol
}
