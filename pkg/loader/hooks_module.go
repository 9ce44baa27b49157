package loader

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/module"
	"github.com/stackb/modload/pkg/resolver"
	"github.com/stackb/modload/pkg/starlarkmod"
)

// Exported names of a hooks module.
const (
	hookResolve     = "resolve"
	hookInstantiate = "dynamic_instantiate"
)

// hooksModule adapts the functions of a loaded hooks module to Go hooks.
type hooksModule struct {
	url    string
	interp *starlarkmod.Interpreter
	logger zerolog.Logger
}

// loadHooksModule imports opts.HooksModule through a bootstrap loader that
// has the same options but no hooks.  The bootstrap loader must stay open
// while the hooks are in use.
func loadHooksModule(opts Options) (*Loader, resolver.ResolveHook, resolver.InstantiateFunc, error) {
	bootOpts := opts
	bootOpts.HooksModule = ""
	bootOpts.ResolveHook = nil
	bootOpts.InstantiateHook = nil
	bootOpts.Progress = nil
	boot, err := New(bootOpts)
	if err != nil {
		return nil, nil, nil, err
	}

	ns, err := boot.Import(context.Background(), opts.HooksModule, "")
	if err != nil {
		boot.Close(context.Background())
		return nil, nil, nil, fmt.Errorf("loader module %s: %w", opts.HooksModule, err)
	}

	h := &hooksModule{
		url:    ns.URL(),
		interp: starlarkmod.NewInterpreter(nil, opts.Logger),
		logger: opts.Logger.With().Str("loader", ns.URL()).Logger(),
	}
	resolveFn, err := h.callable(ns, hookResolve)
	if err != nil {
		boot.Close(context.Background())
		return nil, nil, nil, err
	}
	instantiateFn, err := h.callable(ns, hookInstantiate)
	if err != nil {
		boot.Close(context.Background())
		return nil, nil, nil, err
	}

	var resolveHook resolver.ResolveHook
	if resolveFn != nil {
		resolveHook = h.resolveHook(resolveFn)
	}
	var instantiate resolver.InstantiateFunc
	if instantiateFn != nil {
		instantiate = h.instantiateHook(instantiateFn)
	}
	h.logger.Debug().
		Bool(hookResolve, resolveHook != nil).
		Bool(hookInstantiate, instantiate != nil).
		Msg("loader module loaded")
	return boot, resolveHook, instantiate, nil
}

// callable returns the exported function name, or nil when it is not
// exported.
func (h *hooksModule) callable(ns *module.Namespace, name string) (starlark.Callable, error) {
	v, ok := ns.Get(name)
	if !ok || v == starlark.None {
		return nil, nil
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("loader module %s: %s is a %s, not a function", h.url, name, v.Type())
	}
	return fn, nil
}

// resolveHook calls fn(specifier, referrer, default_resolve).  fn returns a
// struct or dict with url and format fields; default_resolve(specifier,
// referrer) returns such a struct for the next resolution function.
func (h *hooksModule) resolveHook(fn starlark.Callable) resolver.ResolveHook {
	return func(ctx context.Context, specifier string, referrer *url.URL, next resolver.ResolveFunc) (resolver.Resolved, error) {
		// results of default_resolve passed back unchanged keep their
		// instantiate function
		delegated := make(map[*starlarkstruct.Struct]resolver.Resolved)
		defaultResolve := starlark.NewBuiltin("default_resolve", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var spec string
			var ref starlark.Value = starlark.None
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "specifier", &spec, "referrer?", &ref); err != nil {
				return nil, err
			}
			refURL, err := referrerFromValue(ref)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			res, err := next(module.Context(thread), spec, refURL)
			if err != nil {
				return nil, err
			}
			v := starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
				"url":    starlark.String(res.URL.String()),
				"format": starlark.String(res.Format.String()),
			})
			delegated[v] = res
			return v, nil
		})

		var ref starlark.Value = starlark.None
		if referrer != nil {
			ref = starlark.String(referrer.String())
		}
		thread := h.interp.NewThread(ctx, h.url, nil)
		v, err := starlark.Call(thread, fn, starlark.Tuple{starlark.String(specifier), ref, defaultResolve}, nil)
		if err != nil {
			return resolver.Resolved{}, err
		}
		if s, ok := v.(*starlarkstruct.Struct); ok {
			if res, ok := delegated[s]; ok {
				return res, nil
			}
		}
		res, err := resolvedFromValue(v)
		if err != nil {
			return resolver.Resolved{}, &resolver.ResolutionError{Specifier: specifier, Reason: fmt.Sprintf("%s %s: %v", hookResolve, h.url, err)}
		}
		return res, nil
	}
}

// instantiateHook calls fn(url).  fn returns a struct or dict with an
// exports list and an execute function; execute() is called when the
// module is evaluated and returns a dict or struct of export values.
func (h *hooksModule) instantiateHook(fn starlark.Callable) resolver.InstantiateFunc {
	return func(ctx context.Context, u *url.URL) (*module.Dynamic, error) {
		thread := h.interp.NewThread(ctx, h.url, nil)
		v, err := starlark.Call(thread, fn, starlark.Tuple{starlark.String(u.String())}, nil)
		if err != nil {
			return nil, err
		}

		exportsValue, err := field(v, "exports")
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", hookInstantiate, h.url, err)
		}
		exports, err := stringList(exportsValue)
		if err != nil {
			return nil, fmt.Errorf("%s %s: exports: %w", hookInstantiate, h.url, err)
		}
		executeValue, err := field(v, "execute")
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", hookInstantiate, h.url, err)
		}
		execute, ok := executeValue.(starlark.Callable)
		if !ok {
			return nil, fmt.Errorf("%s %s: execute is a %s, not a function", hookInstantiate, h.url, executeValue.Type())
		}

		return &module.Dynamic{
			Exports: exports,
			Execute: func(ctx context.Context, slots map[string]*module.Binding) error {
				thread := h.interp.NewThread(ctx, h.url, nil)
				out, err := starlark.Call(thread, execute, nil, nil)
				if err != nil {
					return err
				}
				values, err := stringDict(out)
				if err != nil {
					return fmt.Errorf("execute of %s: %w", u, err)
				}
				for name, v := range values {
					slot, ok := slots[name]
					if !ok {
						return fmt.Errorf("execute of %s: %q is not exported", u, name)
					}
					slot.Set(v)
				}
				return nil
			},
		}, nil
	}
}

func referrerFromValue(v starlark.Value) (*url.URL, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return location.ParseReferrer(string(v))
	default:
		return nil, fmt.Errorf("referrer must be a string or None, got %s", v.Type())
	}
}

func resolvedFromValue(v starlark.Value) (resolver.Resolved, error) {
	urlValue, err := field(v, "url")
	if err != nil {
		return resolver.Resolved{}, err
	}
	rawURL, ok := starlark.AsString(urlValue)
	if !ok {
		return resolver.Resolved{}, fmt.Errorf("url is a %s, not a string", urlValue.Type())
	}
	formatValue, err := field(v, "format")
	if err != nil {
		return resolver.Resolved{}, err
	}
	name, ok := starlark.AsString(formatValue)
	if !ok {
		return resolver.Resolved{}, fmt.Errorf("format is a %s, not a string", formatValue.Type())
	}
	f, err := format.Parse(name)
	if err != nil {
		return resolver.Resolved{}, err
	}

	var u *url.URL
	if filepath.IsAbs(rawURL) {
		u = location.FromPath(rawURL)
	} else if u, err = url.Parse(rawURL); err != nil {
		return resolver.Resolved{}, err
	} else if !u.IsAbs() {
		return resolver.Resolved{}, fmt.Errorf("url %q is not absolute", rawURL)
	}
	return resolver.Resolved{URL: u, Format: f}, nil
}

// field reads name from a struct or a dict keyed by strings.
func field(v starlark.Value, name string) (starlark.Value, error) {
	switch v := v.(type) {
	case *starlark.Dict:
		got, found, err := v.Get(starlark.String(name))
		if err != nil {
			return nil, err
		}
		if found {
			return got, nil
		}
	case starlark.HasAttrs:
		got, err := v.Attr(name)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
	default:
		return nil, fmt.Errorf("want a struct or dict, got %s", v.Type())
	}
	return nil, fmt.Errorf("missing %s", name)
}

func stringList(v starlark.Value) ([]string, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("want a list of strings, got %s", v.Type())
	}
	var list []string
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("want a list of strings, got a %s element", item.Type())
		}
		list = append(list, s)
	}
	return list, nil
}

func stringDict(v starlark.Value) (starlark.StringDict, error) {
	switch v := v.(type) {
	case *starlark.Dict:
		dict := make(starlark.StringDict, v.Len())
		for _, item := range v.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("export names must be strings, got %s", item[0].Type())
			}
			dict[key] = item[1]
		}
		return dict, nil
	case starlark.HasAttrs:
		names := v.AttrNames()
		dict := make(starlark.StringDict, len(names))
		for _, name := range names {
			got, err := v.Attr(name)
			if err != nil {
				return nil, err
			}
			dict[name] = got
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("want a struct or dict of export values, got %s", v.Type())
	}
}
