// Package hostfs is the file-system capability consumed by the resolver and
// the loading strategies.
package hostfs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the set of file-system operations the loader needs.
type FS interface {
	// ReadFile returns the content of the named file.
	ReadFile(name string) ([]byte, error)
	// Stat returns file info for the named file, following symlinks.
	Stat(name string) (fs.FileInfo, error)
	// Realpath returns the absolute path of name with all symbolic links
	// resolved.
	Realpath(name string) (string, error)
}

// OS implements FS with the host operating system.
type OS struct{}

// ReadFile implements part of the FS interface.
func (OS) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, &IOError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

// Stat implements part of the FS interface.
func (OS) Stat(name string) (fs.FileInfo, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: name, Err: err}
	}
	return info, nil
}

// Realpath implements part of the FS interface.
func (OS) Realpath(name string) (string, error) {
	if _, err := os.Stat(name); err != nil {
		return "", &IOError{Op: "stat", Path: name, Err: err}
	}
	real, err := filepath.EvalSymlinks(name)
	if err != nil {
		return "", &IOError{Op: "realpath", Path: name, Err: err}
	}
	abs, err := filepath.Abs(real)
	if err != nil {
		return "", &IOError{Op: "realpath", Path: name, Err: err}
	}
	return abs, nil
}

// IsFile reports whether name exists and is not a directory.
func IsFile(fsys FS, name string) bool {
	info, err := fsys.Stat(name)
	return err == nil && !info.IsDir()
}

// IsDir reports whether name exists and is a directory.
func IsDir(fsys FS, name string) bool {
	info, err := fsys.Stat(name)
	return err == nil && info.IsDir()
}
