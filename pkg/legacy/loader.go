// Package legacy is the synchronous loader for legacy scripts: Starlark files
// that pull in their dependencies with require() and produce a single value.
// It also loads data documents and WebAssembly addons on their behalf.
package legacy

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/stackb/modload/pkg/addon"
	"github.com/stackb/modload/pkg/data"
	"github.com/stackb/modload/pkg/hostfs"
	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/starlarkmod"
)

// ExportsName is the global a legacy script assigns to choose its value.
// Scripts that do not assign it export a module of their public globals.
const ExportsName = "exports"

// DefaultExtensions are tried, in order, after the exact file name.
var DefaultExtensions = []string{".star", ".sky", ".json", ".wasm"}

// Options configure a Loader.
type Options struct {
	FS hostfs.FS
	// Extensions are appended to a specifier during search.
	Extensions []string
	// PackageDir is the directory searched for bare specifiers while
	// walking up from the requiring directory.
	PackageDir string
	// Paths are searched for bare specifiers after the walk up.
	Paths []string
	// Interpreter provides predeclared names and print() handling.
	Interpreter *starlarkmod.Interpreter
	// Addons loads .wasm files.  Addons are unavailable when nil.
	Addons *addon.Runtime
	Logger zerolog.Logger
}

// Loader loads legacy scripts with its own search and its own cache.
type Loader struct {
	fs         hostfs.FS
	extensions []string
	packageDir string
	paths      []string
	interp     *starlarkmod.Interpreter
	addons     *addon.Runtime
	logger     zerolog.Logger

	// mu serializes loads; a require chain runs on a single goroutine
	// holding it.
	mu    sync.Mutex
	cache map[string]starlark.Value
}

// New creates a Loader.
func New(opts Options) *Loader {
	if opts.FS == nil {
		opts.FS = hostfs.OS{}
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	if opts.PackageDir == "" {
		opts.PackageDir = "star_modules"
	}
	if opts.Interpreter == nil {
		opts.Interpreter = starlarkmod.NewInterpreter(nil, opts.Logger)
	}
	return &Loader{
		fs:         opts.FS,
		extensions: opts.Extensions,
		packageDir: opts.PackageDir,
		paths:      opts.Paths,
		interp:     opts.Interpreter,
		addons:     opts.Addons,
		logger:     opts.Logger,
		cache:      make(map[string]starlark.Value),
	}
}

// ResolveFilename finds the file a require(specifier) issued from fromDir
// would load.
func (l *Loader) ResolveFilename(specifier, fromDir string) (string, error) {
	if specifier == "" {
		return "", fmt.Errorf("cannot find module %q", specifier)
	}
	if location.IsRelativeOrAbsolutePath(specifier) {
		p := specifier
		if !filepath.IsAbs(p) {
			p = filepath.Join(fromDir, specifier)
		}
		if found, ok := l.tryFileOrDir(p); ok {
			return found, nil
		}
		return "", fmt.Errorf("cannot find module %q from %s", specifier, fromDir)
	}

	for dir := filepath.Clean(fromDir); ; dir = filepath.Dir(dir) {
		if filepath.Base(dir) != l.packageDir {
			if found, ok := l.tryFileOrDir(filepath.Join(dir, l.packageDir, specifier)); ok {
				return found, nil
			}
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}
	for _, dir := range l.paths {
		if found, ok := l.tryFileOrDir(filepath.Join(dir, specifier)); ok {
			return found, nil
		}
	}
	return "", fmt.Errorf("cannot find module %q from %s", specifier, fromDir)
}

func (l *Loader) tryFileOrDir(p string) (string, bool) {
	if found, ok := l.tryFile(p); ok {
		return found, true
	}
	if hostfs.IsDir(l.fs, p) {
		return l.tryFile(filepath.Join(p, "index"))
	}
	return "", false
}

func (l *Loader) tryFile(p string) (string, bool) {
	if hostfs.IsFile(l.fs, p) {
		return p, true
	}
	for _, ext := range l.extensions {
		if hostfs.IsFile(l.fs, p+ext) {
			return p + ext, true
		}
	}
	return "", false
}

// Load returns the value of the file at filename, loading it on first use.
// Failed loads are not cached.
func (l *Loader) Load(ctx context.Context, filename string) (starlark.Value, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, filename, nil)
}

// LoadAddon returns the module value of the WebAssembly addon at filename.
func (l *Loader) LoadAddon(ctx context.Context, filename string) (starlark.Value, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadAddon(ctx, filename)
}

// Cached reports whether filename has been loaded successfully.
func (l *Loader) Cached(filename string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cache[filename]
	return ok
}

func (l *Loader) load(ctx context.Context, filename string, stack requireStack) (starlark.Value, error) {
	if v, ok := l.cache[filename]; ok {
		return v, nil
	}
	if stack.contains(filename) {
		return nil, fmt.Errorf("require cycle: %s", stack.push(filename))
	}

	var v starlark.Value
	var err error
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".wasm" {
		v, err = l.loadAddon(ctx, filename)
	} else if decode, ok := data.DecoderFor(ext); ok {
		v, err = l.loadData(filename, decode)
	} else {
		v, err = l.exec(ctx, filename, stack.push(filename))
	}
	if err != nil {
		return nil, err
	}
	v.Freeze()
	l.cache[filename] = v

	from, _ := stack.peek()
	l.logger.Debug().Str("file", filename).Str("from", from).Msg("legacy load")
	return v, nil
}

func (l *Loader) loadData(filename string, decode data.Decoder) (starlark.Value, error) {
	src, err := l.fs.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return decode(filename, src)
}

func (l *Loader) loadAddon(ctx context.Context, filename string) (starlark.Value, error) {
	if l.addons == nil {
		return nil, fmt.Errorf("cannot load addon %s: addon support is disabled", filename)
	}
	wasm, err := l.fs.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return l.addons.Load(ctx, filename, wasm)
}

func (l *Loader) exec(ctx context.Context, filename string, stack requireStack) (starlark.Value, error) {
	src, err := l.fs.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(filename)

	require := starlark.NewBuiltin("require", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var specifier string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &specifier); err != nil {
			return nil, err
		}
		resolved, err := l.ResolveFilename(specifier, dir)
		if err != nil {
			return nil, err
		}
		return l.load(ctx, resolved, stack)
	})

	predeclared := l.interp.With(starlark.StringDict{
		"require":  require,
		"__file__": starlark.String(filename),
		"__dir__":  starlark.String(dir),
	})
	thread := predeclared.NewThread(ctx, filename, nil)
	globals, err := starlark.ExecFileOptions(starlarkmod.FileOptions, thread, filename, starlarkmod.StripShebang(src), predeclared.Predeclared())
	if err != nil {
		return nil, err
	}

	if v, ok := globals[ExportsName]; ok {
		return v, nil
	}
	members := make(starlark.StringDict, len(globals))
	for name, v := range globals {
		if !strings.HasPrefix(name, "_") {
			members[name] = v
		}
	}
	return &starlarkstruct.Module{Name: path.Base(filepath.ToSlash(filename)), Members: members}, nil
}
