package hostfs

import (
	"errors"
	"io/fs"
)

// IOError is returned when a read, stat or realpath operation fails.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether err is an IOError (or any error) caused by a
// missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
