// Package testutil writes file trees for tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

// FileSpec describes a file to create.  When Symlink is set the file is a
// symbolic link pointing at Symlink (relative to the link's directory or
// absolute) and Content is ignored.  Paths ending in "/" create directories.
type FileSpec struct {
	Path     string
	Content  string
	Symlink  string
	NotExist bool
}

// MustPrepareTestFiles creates a temporary directory holding files.  The
// returned directory has its symbolic links resolved so that canonical
// locations compare equal to paths built from it.
func MustPrepareTestFiles(t *testing.T, files []FileSpec) (tmpDir string, filenames []string) {
	t.Helper()
	tmpDir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	filenames = MustWriteTestFiles(t, tmpDir, files)
	return tmpDir, filenames
}

// MustWriteTestFiles writes files under tmpDir and returns their absolute
// paths.
func MustWriteTestFiles(t *testing.T, tmpDir string, files []FileSpec) []string {
	t.Helper()
	var filenames []string
	for _, file := range files {
		abs := filepath.Join(tmpDir, filepath.FromSlash(file.Path))
		if strings.HasSuffix(file.Path, "/") {
			if err := os.MkdirAll(abs, os.ModePerm); err != nil {
				t.Fatal(err)
			}
			filenames = append(filenames, abs)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), os.ModePerm); err != nil {
			t.Fatal(err)
		}
		switch {
		case file.NotExist:
		case file.Symlink != "":
			if err := os.Symlink(filepath.FromSlash(file.Symlink), abs); err != nil {
				t.Fatal(err)
			}
		default:
			if err := os.WriteFile(abs, []byte(file.Content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		filenames = append(filenames, abs)
	}
	return filenames
}

// EqualError reports whether errors a and b are considered equal.
// They're equal if both are nil, or both are not nil and a.Error() == b.Error().
func EqualError(a, b error) bool {
	return a == nil && b == nil || a != nil && b != nil && a.Error() == b.Error()
}

// ExpectError asserts that the errors are equal.  Return value is true
// if the "want" argument is non-nil.
func ExpectError(t *testing.T, want, got error) bool {
	t.Helper()
	if !EqualError(want, got) {
		t.Fatal("errors: want:", want, "got:", got)
	}
	return want != nil
}

// Dump logs a readable rendering of v.
func Dump(t *testing.T, label string, v any) {
	t.Helper()
	t.Logf("%s:\n%s", label, spew.Sdump(v))
}

// ListFiles is a convenience debugging function to log the files under a given dir.
func ListFiles(t *testing.T, dir string) {
	t.Helper()
	t.Log("Listing files under:", dir)
	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		t.Log(path)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

// Logger returns a zerolog logger writing to the test log.
func Logger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
