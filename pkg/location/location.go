// Package location converts between module locations, file paths and
// referrer strings.  A location is an absolute *url.URL whose String() form is
// the module cache key.
package location

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	// FileScheme is the scheme of file-backed module locations.
	FileScheme = "file"
	// BuiltinScheme is the scheme of host-provided modules.  Builtin
	// locations never participate in symlink canonicalization.
	BuiltinScheme = "builtin"
)

// FromPath returns the file: URL for the given absolute filesystem path.
// Directory paths that end with a separator keep the trailing slash so that
// relative references resolve inside the directory.
func FromPath(p string) *url.URL {
	slash := filepath.ToSlash(p)
	clean := path.Clean(slash)
	if strings.HasSuffix(slash, "/") && clean != "/" {
		clean += "/"
	}
	return &url.URL{Scheme: FileScheme, Path: clean}
}

// ToPath returns the filesystem path of a file: URL.
func ToPath(u *url.URL) (string, error) {
	if u == nil {
		return "", fmt.Errorf("nil location")
	}
	if u.Scheme != FileScheme {
		return "", fmt.Errorf("location %s is not a file URL", u)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("file URL %s must not have a host", u)
	}
	return filepath.FromSlash(u.Path), nil
}

// Builtin returns the location of the named host module.
func Builtin(name string) *url.URL {
	return &url.URL{Scheme: BuiltinScheme, Opaque: name}
}

// BuiltinName returns the module name of a builtin: location.
func BuiltinName(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return strings.TrimPrefix(u.Path, "/")
}

// IsFile reports whether u is a file: location.
func IsFile(u *url.URL) bool {
	return u != nil && u.Scheme == FileScheme
}

// Dir returns the location of the directory containing u, with a trailing
// slash.
func Dir(u *url.URL) *url.URL {
	d := *u
	d.RawQuery = ""
	d.Fragment = ""
	d.RawPath = ""
	d.Path = path.Dir(u.Path)
	if !strings.HasSuffix(d.Path, "/") {
		d.Path += "/"
	}
	return &d
}

// Ext returns the extension of the location path, including the dot.
func Ext(u *url.URL) string {
	return path.Ext(u.Path)
}

// WithPath returns a copy of u with the path replaced and the query and
// fragment of u preserved.
func WithPath(u *url.URL, p string) *url.URL {
	c := *u
	c.Path = filepath.ToSlash(p)
	c.RawPath = ""
	return &c
}

// Clone returns a copy of u.
func Clone(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

// ParseReferrer normalizes a referrer string.  The empty string denotes an
// entry-point request and yields nil.  Absolute filesystem paths become file:
// URLs; anything else must parse as an absolute URL.
func ParseReferrer(referrer string) (*url.URL, error) {
	if referrer == "" {
		return nil, nil
	}
	if filepath.IsAbs(referrer) {
		return FromPath(referrer), nil
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return nil, fmt.Errorf("invalid referrer %q: %w", referrer, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("invalid referrer %q: not an absolute URL or path", referrer)
	}
	return u, nil
}

// IsRelativeOrAbsolutePath reports whether the specifier is a path
// ("/x", "./x", "../x", ".", "..") rather than a bare package name.
func IsRelativeOrAbsolutePath(specifier string) bool {
	switch {
	case specifier == "." || specifier == "..":
		return true
	case strings.HasPrefix(specifier, "/"):
		return true
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"):
		return true
	}
	return false
}

// ParseAbsolute returns the URL if the specifier is itself an absolute
// location with a scheme (e.g. "file:///a/b.star").  Single-letter schemes
// are rejected so that Windows drive letters are not taken as URLs.
func ParseAbsolute(specifier string) (*url.URL, bool) {
	u, err := url.Parse(specifier)
	if err != nil || !u.IsAbs() || len(u.Scheme) < 2 {
		return nil, false
	}
	return u, true
}
