// Package resolver maps module specifiers to canonical locations and
// formats.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stackb/modload/pkg/canonical"
	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/hostfs"
	"github.com/stackb/modload/pkg/location"
)

// DefaultPackageDir is searched for bare specifiers.
const DefaultPackageDir = "star_modules"

// DefaultExtensions are tried, in order, after the exact file name.
var DefaultExtensions = []string{".star", ".json", ".wasm"}

// Options configure a Resolver.
type Options struct {
	FS hostfs.FS
	// Base is the directory location entry-point requests resolve against.
	// Relative and bare specifiers fail without it.
	Base *url.URL
	// PreserveSymlinks disables canonicalization of non-entry modules.
	PreserveSymlinks bool
	// PreserveSymlinksMain disables canonicalization of entry points.
	PreserveSymlinksMain bool
	// EntryMode is the format of entry points whose format cannot be
	// inferred: format.Legacy (the default) or format.Standard.
	EntryMode    format.Format
	PackageDir   string
	ManifestName string
	Extensions   []string
	Overrides    FormatOverrides
	Builtins     BuiltinRegistry
	Legacy       LegacyLoader
	// Canonicalizer resolves symlinks.  A private one is created when nil.
	Canonicalizer *canonical.Canonicalizer
	Logger        zerolog.Logger
}

// Resolver implements the default resolution algorithm.
type Resolver struct {
	fs                   hostfs.FS
	base                 *url.URL
	preserveSymlinks     bool
	preserveSymlinksMain bool
	entryMode            format.Format
	packageDir           string
	extensions           []string
	overrides            FormatOverrides
	builtins             BuiltinRegistry
	legacy               LegacyLoader
	canon                *canonical.Canonicalizer
	manifests            *manifestCache
	logger               zerolog.Logger
}

// New creates a Resolver.
func New(opts Options) (*Resolver, error) {
	if opts.FS == nil {
		opts.FS = hostfs.OS{}
	}
	if opts.EntryMode == format.Unknown {
		opts.EntryMode = format.Legacy
	}
	if opts.EntryMode != format.Legacy && opts.EntryMode != format.Standard {
		return nil, fmt.Errorf("entry mode must be standard or legacy, got %s", opts.EntryMode)
	}
	if opts.PackageDir == "" {
		opts.PackageDir = DefaultPackageDir
	}
	if opts.ManifestName == "" {
		opts.ManifestName = DefaultManifestName
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	if err := opts.Overrides.Validate(); err != nil {
		return nil, err
	}
	if opts.Canonicalizer == nil {
		opts.Canonicalizer = canonical.New(opts.FS, opts.Logger)
	}
	return &Resolver{
		fs:                   opts.FS,
		base:                 opts.Base,
		preserveSymlinks:     opts.PreserveSymlinks,
		preserveSymlinksMain: opts.PreserveSymlinksMain,
		entryMode:            opts.EntryMode,
		packageDir:           opts.PackageDir,
		extensions:           opts.Extensions,
		overrides:            opts.Overrides,
		builtins:             opts.Builtins,
		legacy:               opts.Legacy,
		canon:                opts.Canonicalizer,
		manifests:            newManifestCache(opts.FS, opts.ManifestName),
		logger:               opts.Logger,
	}, nil
}

// Base returns the location entry points resolve against.
func (r *Resolver) Base() *url.URL {
	return r.base
}

// Resolve implements ResolveFunc with the default algorithm.
func (r *Resolver) Resolve(ctx context.Context, specifier string, referrer *url.URL) (Resolved, error) {
	if r.builtins != nil {
		if name, _, ok := r.builtins.Lookup(specifier); ok {
			return Resolved{URL: location.Builtin(name), Format: format.Builtin}, nil
		}
	}

	isEntry := referrer == nil
	base := referrer
	if base == nil {
		base = r.base
	}

	u, err := r.search(specifier, base)
	if err != nil {
		return Resolved{}, r.legacyFallback(specifier, base, err)
	}

	preserve := r.preserveSymlinks
	if isEntry {
		preserve = r.preserveSymlinksMain
	}
	if !preserve {
		if u, err = r.canon.Canonicalize(ctx, u); err != nil {
			return Resolved{}, err
		}
	}

	f, err := r.Format(u, isEntry)
	if err != nil {
		return Resolved{}, err
	}

	r.logger.Debug().
		Str("specifier", specifier).
		Str("url", u.String()).
		Stringer("format", f).
		Bool("entry", isEntry).
		Msg("resolved")
	return Resolved{URL: u, Format: f}, nil
}

func (r *Resolver) search(specifier string, base *url.URL) (*url.URL, error) {
	if u, ok := location.ParseAbsolute(specifier); ok {
		if !location.IsFile(u) {
			return u, nil
		}
		filename, err := location.ToPath(u)
		if err != nil {
			return nil, &ResolutionError{Specifier: specifier, Reason: err.Error()}
		}
		if !hostfs.IsFile(r.fs, filename) {
			return nil, notFound(specifier, base)
		}
		return u, nil
	}

	p, suffix, err := splitSuffix(specifier)
	if err != nil {
		return nil, &ResolutionError{Specifier: specifier, Reason: err.Error()}
	}

	if filepath.IsAbs(p) {
		if found, ok := r.tryPath(p); ok {
			return withSuffix(location.FromPath(found), suffix), nil
		}
		return nil, notFound(specifier, base)
	}

	if base == nil {
		return nil, &ResolutionError{Specifier: specifier, Reason: "no referrer and no base location"}
	}
	baseDir, err := baseDirOf(base)
	if err != nil {
		return nil, &ResolutionError{Specifier: specifier, Reason: err.Error()}
	}

	if location.IsRelativeOrAbsolutePath(p) {
		if found, ok := r.tryPath(filepath.Join(baseDir, filepath.FromSlash(p))); ok {
			return withSuffix(location.FromPath(found), suffix), nil
		}
		return nil, notFound(specifier, base)
	}

	if found, ok := r.searchPackages(p, baseDir); ok {
		return withSuffix(location.FromPath(found), suffix), nil
	}
	return nil, notFound(specifier, base)
}

// splitSuffix separates the path of a specifier from its query and
// fragment.  suffix is nil when there are neither.
func splitSuffix(specifier string) (string, *url.URL, error) {
	i := strings.IndexAny(specifier, "?#")
	if i < 0 {
		return specifier, nil, nil
	}
	suffix, err := url.Parse(specifier[i:])
	if err != nil {
		return "", nil, err
	}
	return specifier[:i], suffix, nil
}

func withSuffix(u, suffix *url.URL) *url.URL {
	if suffix == nil {
		return u
	}
	u.RawQuery = suffix.RawQuery
	u.Fragment = suffix.Fragment
	u.RawFragment = suffix.RawFragment
	return u
}

// tryPath tries p as a file, then as a directory.
func (r *Resolver) tryPath(p string) (string, bool) {
	if found, ok := r.tryFile(p); ok {
		return found, true
	}
	return r.tryDir(p)
}

func (r *Resolver) tryFile(p string) (string, bool) {
	if hostfs.IsFile(r.fs, p) {
		return p, true
	}
	for _, ext := range r.extensions {
		if hostfs.IsFile(r.fs, p+ext) {
			return p + ext, true
		}
	}
	return "", false
}

func (r *Resolver) tryDir(dir string) (string, bool) {
	if !hostfs.IsDir(r.fs, dir) {
		return "", false
	}
	if m := r.manifests.get(dir); m != nil && m.Main != "" {
		main := filepath.Join(dir, filepath.FromSlash(m.Main))
		if found, ok := r.tryFile(main); ok {
			return found, true
		}
		if found, ok := r.tryFile(filepath.Join(main, "index")); ok {
			return found, true
		}
	}
	return r.tryFile(filepath.Join(dir, "index"))
}

// searchPackages walks up from dir looking for <dir>/<PackageDir>/<specifier>.
// A hit must stay inside the directory of the specifier's first segment.
func (r *Resolver) searchPackages(specifier, dir string) (string, bool) {
	first := strings.SplitN(specifier, "/", 2)[0]
	for {
		if filepath.Base(dir) != r.packageDir {
			pkgs := filepath.Join(dir, r.packageDir)
			root := filepath.Join(pkgs, first)
			candidate := filepath.Join(pkgs, filepath.FromSlash(specifier))
			if within(candidate, root) {
				if found, ok := r.tryPath(candidate); ok && within(found, root) {
					return found, true
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func within(p, root string) bool {
	return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
}

// legacyFallback asks the legacy loader whether it would have found the
// module.  It never turns a failure into a success, and a failed lookup
// never hides the original error.
func (r *Resolver) legacyFallback(specifier string, base *url.URL, err error) error {
	nf, ok := err.(*ModuleNotFoundError)
	if !ok || r.legacy == nil || base == nil || !location.IsFile(base) {
		return err
	}
	fromDir, derr := baseDirOf(base)
	if derr != nil {
		return err
	}
	found, perr := r.legacy.ResolveFilename(specifier, fromDir)
	if perr != nil {
		r.logger.Debug().Str("specifier", specifier).Err(perr).Msg("legacy lookup failed")
		return err
	}
	return &LegacyResolutionAvailableError{
		Specifier: specifier,
		Base:      nf.Base,
		Found:     found,
		Err:       nf,
	}
}

// baseDirOf returns the directory of a file location.  Locations whose path
// ends in a slash are directories themselves.
func baseDirOf(base *url.URL) (string, error) {
	dir, err := location.ToPath(location.Dir(base))
	if err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}

func notFound(specifier string, base *url.URL) *ModuleNotFoundError {
	err := &ModuleNotFoundError{Specifier: specifier}
	if base != nil {
		err.Base = base.String()
	}
	return err
}
