package resolver

import (
	"context"
	"net/url"

	"go.starlark.net/starlark"

	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/module"
)

// Resolved is the outcome of resolving a specifier.
type Resolved struct {
	// URL is the canonical location of the target module.
	URL *url.URL
	// Format selects the loading strategy.
	Format format.Format
	// Instantiate is set by resolve hooks that return a Dynamic result and
	// carry their own instantiation function.
	Instantiate InstantiateFunc
}

// InstantiateFunc creates a dynamic module for u.
type InstantiateFunc func(ctx context.Context, u *url.URL) (*module.Dynamic, error)

// ResolveFunc is the resolution algorithm.  A nil referrer denotes an
// entry-point request.
type ResolveFunc func(ctx context.Context, specifier string, referrer *url.URL) (Resolved, error)

// ResolveHook replaces the resolution algorithm.  next is the algorithm the
// hook replaces; hooks may call it to delegate.
type ResolveHook func(ctx context.Context, specifier string, referrer *url.URL, next ResolveFunc) (Resolved, error)

// LegacyLoader is the synchronous loader for legacy scripts.  The resolver
// only consults ResolveFilename, to diagnose failed resolutions.
type LegacyLoader interface {
	// ResolveFilename returns the file require(specifier) issued from fromDir
	// would load.
	ResolveFilename(specifier, fromDir string) (string, error)
	// Load returns the value of the legacy script (or data document) at
	// filename.
	Load(ctx context.Context, filename string) (starlark.Value, error)
	// LoadAddon returns the module value of the addon at filename.
	LoadAddon(ctx context.Context, filename string) (starlark.Value, error)
}

// BuiltinRegistry answers whether a specifier names a host module.
type BuiltinRegistry interface {
	// Lookup returns the module name for the specifier, hiding internal
	// modules.
	Lookup(specifier string) (string, starlark.Value, bool)
}
