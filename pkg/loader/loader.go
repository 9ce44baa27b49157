// Package loader resolves, instantiates, links and evaluates modules, each
// at most once per Loader.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"

	"github.com/stackb/modload/pkg/addon"
	"github.com/stackb/modload/pkg/builtin"
	"github.com/stackb/modload/pkg/canonical"
	"github.com/stackb/modload/pkg/data"
	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/hostfs"
	"github.com/stackb/modload/pkg/legacy"
	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/module"
	"github.com/stackb/modload/pkg/progress"
	"github.com/stackb/modload/pkg/resolver"
	"github.com/stackb/modload/pkg/starlarkmod"
)

// ErrHooksFrozen is returned by the hook setters once the loader has
// resolved its first module.
var ErrHooksFrozen = errors.New("hooks must be registered before the loader is first used")

// Loader is the entry point of module loading.
type Loader struct {
	logger   zerolog.Logger
	canon    *canonical.Canonicalizer
	resolver *resolver.Resolver
	memo     *resolver.MemoResolver
	registry *format.Registry
	builtins *builtin.Registry
	legacy   resolver.LegacyLoader
	addons   *addon.Runtime
	modules  *ModuleMap
	waits    *waitGraph
	progress mobyprogress.Output
	finished atomic.Int64

	// bootstrap loaded the hooks module, if any.
	bootstrap *Loader

	hookMu            sync.RWMutex
	used              bool
	moduleResolveHook resolver.ResolveHook
	resolveHook       resolver.ResolveHook
	instantiateHook   resolver.InstantiateFunc
}

// New creates a Loader.
func New(opts Options) (*Loader, error) {
	if opts.FS == nil {
		opts.FS = hostfs.OS{}
	}
	if opts.Base == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.Base = wd
		}
	}
	var base *url.URL
	if opts.Base != "" {
		abs, err := filepath.Abs(opts.Base)
		if err != nil {
			return nil, fmt.Errorf("base %s: %w", opts.Base, err)
		}
		base = location.FromPath(abs + string(filepath.Separator))
	}
	if opts.Builtins == nil {
		opts.Builtins = builtin.NewDefaultRegistry()
	}
	if opts.Progress == nil {
		opts.Progress = progress.Discard
	}

	l := &Loader{
		logger:          opts.Logger,
		builtins:        opts.Builtins,
		modules:         NewModuleMap(),
		waits:           newWaitGraph(),
		progress:        opts.Progress,
		resolveHook:     opts.ResolveHook,
		instantiateHook: opts.InstantiateHook,
	}

	if opts.HooksModule != "" {
		boot, resolveHook, instantiateHook, err := loadHooksModule(opts)
		if err != nil {
			return nil, err
		}
		l.bootstrap = boot
		l.moduleResolveHook = resolveHook
		if instantiateHook != nil {
			if l.instantiateHook != nil {
				boot.Close(context.Background())
				return nil, fmt.Errorf("loader module %s and options both set an instantiate hook", opts.HooksModule)
			}
			l.instantiateHook = instantiateHook
		}
	}

	if !opts.DisableAddons {
		rt, err := addon.NewRuntime(context.Background(), opts.Logger)
		if err != nil {
			l.Close(context.Background())
			return nil, err
		}
		l.addons = rt
	}

	interp := starlarkmod.NewInterpreter(opts.Predeclared, opts.Logger)
	interp.SetImporter(l.Import)
	if opts.Legacy == nil {
		opts.Legacy = legacy.New(legacy.Options{
			FS:          opts.FS,
			PackageDir:  opts.PackageDir,
			Paths:       opts.LegacyPaths,
			Interpreter: interp,
			Addons:      l.addons,
			Logger:      opts.Logger,
		})
	}
	l.legacy = opts.Legacy

	l.canon = canonical.New(opts.FS, opts.Logger)
	r, err := resolver.New(resolver.Options{
		FS:                   opts.FS,
		Base:                 base,
		PreserveSymlinks:     opts.PreserveSymlinks,
		PreserveSymlinksMain: opts.PreserveSymlinksMain,
		EntryMode:            opts.EntryMode,
		PackageDir:           opts.PackageDir,
		ManifestName:         opts.ManifestName,
		Extensions:           opts.Extensions,
		Overrides:            opts.FormatOverrides,
		Builtins:             opts.Builtins,
		Legacy:               opts.Legacy,
		Canonicalizer:        l.canon,
		Logger:               opts.Logger,
	})
	if err != nil {
		l.Close(context.Background())
		return nil, err
	}
	l.resolver = r
	l.memo = resolver.NewMemoResolver(r.Resolve)

	l.registry = format.NewRegistry()
	for f, s := range map[format.Format]format.Strategy{
		format.Standard: starlarkmod.NewCompiler(opts.FS, interp).Strategy,
		format.Data:     data.NewLoader(opts.FS, opts.Logger).Strategy,
		format.Legacy:   l.legacyStrategy,
		format.Addon:    l.addonStrategy,
		format.Builtin:  opts.Builtins.Strategy,
	} {
		if err := l.registry.Register(f, s); err != nil {
			l.Close(context.Background())
			return nil, err
		}
	}
	return l, nil
}

// SetResolveHook registers the resolve hook.  It may be called once, before
// the first resolution.  The resolve hook of a hooks module runs before it.
func (l *Loader) SetResolveHook(hook resolver.ResolveHook) error {
	if hook == nil {
		return fmt.Errorf("nil resolve hook")
	}
	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	if l.used {
		return ErrHooksFrozen
	}
	if l.resolveHook != nil {
		return fmt.Errorf("resolve hook already registered")
	}
	l.resolveHook = hook
	return nil
}

// SetInstantiateHook registers the instantiate hook for dynamic modules.  It
// may be called once, before the first resolution.
func (l *Loader) SetInstantiateHook(hook resolver.InstantiateFunc) error {
	if hook == nil {
		return fmt.Errorf("nil instantiate hook")
	}
	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	if l.used {
		return ErrHooksFrozen
	}
	if l.instantiateHook != nil {
		return fmt.Errorf("instantiate hook already registered")
	}
	l.instantiateHook = hook
	return nil
}

func (l *Loader) hooks() (resolver.ResolveHook, resolver.InstantiateFunc) {
	l.hookMu.RLock()
	if l.used {
		defer l.hookMu.RUnlock()
		return l.resolveHook, l.instantiateHook
	}
	l.hookMu.RUnlock()

	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	if !l.used {
		l.used = true
		if l.moduleResolveHook != nil {
			l.resolveHook = resolver.Chain(l.moduleResolveHook, l.resolveHook)
		}
	}
	return l.resolveHook, l.instantiateHook
}

// Resolve resolves specifier as requested by referrer.  referrer is the
// canonical location of the requesting module, an absolute file path, or
// "" for an entry point.
func (l *Loader) Resolve(ctx context.Context, specifier, referrer string) (resolver.Resolved, error) {
	ref, err := location.ParseReferrer(referrer)
	if err != nil {
		return resolver.Resolved{}, &resolver.ResolutionError{Specifier: specifier, Reason: err.Error()}
	}
	resolveHook, instantiateHook := l.hooks()

	res, err := resolver.Bind(resolveHook, l.memo.Resolve)(ctx, specifier, ref)
	if err != nil {
		return resolver.Resolved{}, err
	}
	if err := validate(specifier, res, l.registry, instantiateHook != nil); err != nil {
		return resolver.Resolved{}, err
	}
	return res, nil
}

func validate(specifier string, res resolver.Resolved, registry *format.Registry, hasInstantiateHook bool) error {
	if res.URL == nil {
		return &resolver.ResolutionError{Specifier: specifier, Reason: "resolved without a location"}
	}
	if res.Format == format.Dynamic {
		if res.Instantiate == nil && !hasInstantiateHook {
			return &resolver.UnknownFormatError{URL: res.URL.String(), Reason: "dynamic module without an instantiate hook"}
		}
		return nil
	}
	if !registry.Has(res.Format) {
		return &resolver.UnknownLoaderError{URL: res.URL.String(), Format: res.Format}
	}
	scheme := location.FileScheme
	if res.Format == format.Builtin {
		scheme = location.BuiltinScheme
	}
	if res.URL.Scheme != scheme {
		return &resolver.InvalidProtocolError{URL: res.URL.String(), Scheme: res.URL.Scheme}
	}
	return nil
}

// ModuleJob returns the job of the module specifier resolves to, creating
// it on first request.  Resolution failures create nothing.
func (l *Loader) ModuleJob(ctx context.Context, specifier, referrer string) (*ModuleJob, error) {
	res, err := l.Resolve(ctx, specifier, referrer)
	if err != nil {
		return nil, err
	}
	key := res.URL.String()
	if job, ok := l.modules.Get(key); ok {
		return job, nil
	}
	job, loaded := l.modules.GetOrSet(key, newModuleJob(l, res.URL, res.Format, l.strategyFor(res)))
	if !loaded {
		l.reportState(job, Pending)
	}
	return job, nil
}

// Import loads the module specifier resolves to and returns its namespace.
func (l *Loader) Import(ctx context.Context, specifier, referrer string) (*module.Namespace, error) {
	job, err := l.ModuleJob(ctx, specifier, referrer)
	if err != nil {
		return nil, err
	}
	rec, err := job.Run(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Namespace(), nil
}

// Jobs returns the jobs created so far, sorted by location.
func (l *Loader) Jobs() []*ModuleJob {
	return l.modules.Jobs()
}

// Builtins returns the builtin module registry.
func (l *Loader) Builtins() *builtin.Registry {
	return l.builtins
}

// Close releases the addon runtime and the loader of the hooks module.
func (l *Loader) Close(ctx context.Context) error {
	var errs []error
	if l.addons != nil {
		errs = append(errs, l.addons.Close(ctx))
	}
	if l.bootstrap != nil {
		errs = append(errs, l.bootstrap.Close(ctx))
	}
	return errors.Join(errs...)
}

func (l *Loader) strategyFor(res resolver.Resolved) format.Strategy {
	if res.Format != format.Dynamic {
		s, _ := l.registry.StrategyFor(res.Format)
		return s
	}
	instantiate := res.Instantiate
	if instantiate == nil {
		_, instantiate = l.hooks()
	}
	return func(ctx context.Context, u *url.URL) (module.Record, error) {
		d, err := instantiate(ctx, u)
		if err != nil {
			return nil, err
		}
		return module.FromDynamic(u, d)
	}
}

func (l *Loader) endSession(s *session) {
	s.mu.Lock()
	owned := s.owned
	s.owned = nil
	s.mu.Unlock()
	for _, j := range owned {
		j.release(s)
	}
}
