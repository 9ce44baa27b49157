package loader

import (
	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"

	"github.com/stackb/modload/pkg/builtin"
	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/hostfs"
	"github.com/stackb/modload/pkg/resolver"
)

// Options configure a Loader.  The zero value is usable: it reads the host
// file system and resolves entry points against the working directory.
type Options struct {
	FS hostfs.FS
	// Base is the directory entry points resolve against.  Defaults to the
	// working directory.
	Base string
	// PreserveSymlinks keeps symlinked paths of non-entry modules as
	// written instead of resolving them.
	PreserveSymlinks bool
	// PreserveSymlinksMain does the same for entry points.
	PreserveSymlinksMain bool
	// EntryMode is format.Legacy (default) or format.Standard.
	EntryMode format.Format
	// PackageDir is searched for bare specifiers; default "star_modules".
	PackageDir string
	// ManifestName is the package manifest file; default "package.yaml".
	ManifestName string
	// Extensions are tried after the exact name; default .star, .json,
	// .wasm.
	Extensions      []string
	FormatOverrides resolver.FormatOverrides
	// Builtins defaults to json, math, time and struct.
	Builtins *builtin.Registry
	// Legacy defaults to the loader of package legacy.
	Legacy resolver.LegacyLoader
	// LegacyPaths are extra search directories of the default legacy loader.
	LegacyPaths []string
	// DisableAddons turns off the WebAssembly runtime.
	DisableAddons   bool
	ResolveHook     resolver.ResolveHook
	InstantiateHook resolver.InstantiateFunc
	// HooksModule is the specifier of a standard module, resolved as an
	// entry point, whose resolve and dynamic_instantiate functions become
	// hooks.  Its resolve hook runs before ResolveHook.
	HooksModule string
	// Predeclared names are visible to every standard and legacy module.
	Predeclared starlark.StringDict
	Logger      zerolog.Logger
	// Progress receives job state updates.
	Progress mobyprogress.Output
}
