package loader_test

import (
	"bytes"
	"context"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"golang.org/x/sync/errgroup"

	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/loader"
	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/module"
	"github.com/stackb/modload/pkg/progress"
	"github.com/stackb/modload/pkg/resolver"
	"github.com/stackb/modload/pkg/testutil"
)

// addWasm exports add(i32, i32) -> i32.
var addWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

// counter is a predeclared builtin that counts its calls.
type counter struct {
	n atomic.Int32
}

func (c *counter) builtin() *starlark.Builtin {
	return starlark.NewBuiltin("tick", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return starlark.MakeInt(int(c.n.Add(1))), nil
	})
}

func newLoader(t *testing.T, dir string, opts loader.Options) *loader.Loader {
	t.Helper()
	opts.Base = dir
	opts.Logger = testutil.Logger(t)
	l, err := loader.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close(context.Background()) })
	return l
}

func mustGet(t *testing.T, ns *module.Namespace, name string) starlark.Value {
	t.Helper()
	v, ok := ns.Get(name)
	require.True(t, ok, "%s is not set in %s", name, ns)
	return v
}

func TestImportStandard(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: "#!/usr/bin/env modload\nload(\"./lib.star\", \"greet\")\nmsg = greet(\"world\")\n_private = 1\n"},
		{Path: "lib.star", Content: "def greet(name):\n    return \"hello \" + name\n"},
	})
	l := newLoader(t, dir, loader.Options{})

	ns, err := l.Import(context.Background(), "./main.star", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.String("hello world"), mustGet(t, ns, "msg"))
	assert.False(t, ns.Has("_private"))

	var got []string
	for _, job := range l.Jobs() {
		got = append(got, filepath.Base(job.URL().Path)+" "+job.State().String())
	}
	if diff := cmp.Diff([]string{"lib.star done", "main.star done"}, got); diff != "" {
		t.Errorf("jobs (-want +got):\n%s", diff)
	}
}

func TestResolveIsRepeatable(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star"},
		{Path: "lib/index.star"},
	})
	l := newLoader(t, dir, loader.Options{})
	referrer := location.FromPath(filepath.Join(dir, "main.star")).String()

	first, err := l.Resolve(context.Background(), "./lib", referrer)
	require.NoError(t, err)
	second, err := l.Resolve(context.Background(), "./lib", referrer)
	require.NoError(t, err)

	assert.Equal(t, first.URL.String(), second.URL.String())
	assert.Equal(t, first.Format, second.Format)
	assert.Equal(t, location.FromPath(filepath.Join(dir, "lib", "index.star")).String(), first.URL.String())
	assert.Equal(t, format.Standard, first.Format)
}

func TestConcurrentImportEvaluatesOnce(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "once.star", Content: "load(\"./dep.star\", \"d\")\nn = tick()\nv = d\n"},
		{Path: "dep.star", Content: "d = tick()\n"},
	})
	var c counter
	l := newLoader(t, dir, loader.Options{
		Predeclared: starlark.StringDict{"tick": c.builtin()},
	})

	const n = 16
	namespaces := make([]*module.Namespace, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			ns, err := l.Import(ctx, "./once.star", "")
			namespaces[i] = ns
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, ns := range namespaces[1:] {
		assert.Same(t, namespaces[0], ns)
	}
	assert.Equal(t, int32(2), c.n.Load())
	assert.Equal(t, starlark.MakeInt(1), mustGet(t, namespaces[0], "v"))
}

func TestCycle(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "a.star", Content: "load(\"./b.star\", \"b\")\na = \"A\"\nseen = b\n"},
		{Path: "b.star", Content: "load(\"./a.star\", \"a\")\nb = \"B\"\nsaw = a\n"},
	})
	l := newLoader(t, dir, loader.Options{})

	a, err := l.Import(context.Background(), "./a.star", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.String("B"), mustGet(t, a, "seen"))

	b, err := l.Import(context.Background(), "./b.star", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.None, mustGet(t, b, "saw"))
	assert.Equal(t, starlark.String("B"), mustGet(t, b, "b"))

	for _, job := range l.Jobs() {
		assert.Equal(t, loader.Done, job.State(), job.URL().String())
	}
}

func TestQueryIsPartOfTheCacheKey(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "a.star", Content: "load(\"./x.star?v=1#f\", first = \"n\")\nload(\"./x.star\", second = \"n\")\n"},
		{Path: "x.star", Content: "n = tick()\n"},
	})
	var c counter
	l := newLoader(t, dir, loader.Options{
		Predeclared: starlark.StringDict{"tick": c.builtin()},
	})
	ctx := context.Background()

	referrer := location.FromPath(filepath.Join(dir, "a.star")).String()
	res, err := l.Resolve(ctx, "./x.star?v=1#f", referrer)
	require.NoError(t, err)
	assert.Equal(t, location.FromPath(filepath.Join(dir, "x.star")).String()+"?v=1#f", res.URL.String())

	ns, err := l.Import(ctx, "./a.star", "")
	require.NoError(t, err)
	assert.NotEqual(t, mustGet(t, ns, "first"), mustGet(t, ns, "second"))
	assert.Equal(t, int32(2), c.n.Load())
	assert.Len(t, l.Jobs(), 3)
}

func TestDataModules(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: `
load("./x.json", j = "default")
load("./x.yaml", y = "default")
load("./x.toml", t = "default")
load("./x.cue", c = "default")
out = [j["name"], y["name"], t["name"], c["name"]]
`},
		{Path: "x.json", Content: `{"name": "json"}`},
		{Path: "x.yaml", Content: "name: yaml\n"},
		{Path: "x.toml", Content: "name = \"toml\"\n"},
		{Path: "x.cue", Content: "name: \"cue\"\n"},
	})
	l := newLoader(t, dir, loader.Options{})

	ns, err := l.Import(context.Background(), "./main.star", "")
	require.NoError(t, err)
	assert.Equal(t, `["json", "yaml", "toml", "cue"]`, mustGet(t, ns, "out").String())

	data, err := l.Import(context.Background(), "./x.json", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, data.Names())
}

func TestBuiltinIgnoresReferrer(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: "load(\"json\", \"encode\")\nout = encode({\"a\": 1})\n"},
	})
	l := newLoader(t, dir, loader.Options{})
	ctx := context.Background()

	fromEntry, err := l.Resolve(ctx, "json", "")
	require.NoError(t, err)
	fromFile, err := l.Resolve(ctx, "json", filepath.Join(dir, "main.star"))
	require.NoError(t, err)
	assert.Equal(t, "builtin:json", fromEntry.URL.String())
	assert.Equal(t, fromEntry.URL.String(), fromFile.URL.String())
	assert.Equal(t, format.Builtin, fromFile.Format)

	ns, err := l.Import(ctx, "./main.star", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.String(`{"a":1}`), mustGet(t, ns, "out"))
}

func TestSymlinks(t *testing.T) {
	files := []testutil.FileSpec{
		{Path: "real.star", Content: "x = tick()\n"},
		{Path: "link.star", Symlink: "real.star"},
	}
	for name, tc := range map[string]struct {
		opts     loader.Options
		wantSame bool
		wantRuns int32
	}{
		"canonicalized": {
			wantSame: true,
			wantRuns: 1,
		},
		"preserved": {
			opts:     loader.Options{PreserveSymlinks: true, PreserveSymlinksMain: true},
			wantRuns: 2,
		},
	} {
		t.Run(name, func(t *testing.T) {
			dir, _ := testutil.MustPrepareTestFiles(t, files)
			var c counter
			tc.opts.Predeclared = starlark.StringDict{"tick": c.builtin()}
			l := newLoader(t, dir, tc.opts)

			real, err := l.Import(context.Background(), "./real.star", "")
			require.NoError(t, err)
			link, err := l.Import(context.Background(), "./link.star", "")
			require.NoError(t, err)

			assert.Equal(t, tc.wantSame, real == link)
			assert.Equal(t, tc.wantRuns, c.n.Load())
		})
	}
}

func TestUnknownExtension(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: "load(\"./weird.txt\", \"x\")\n"},
		{Path: "weird.txt", Content: "exports = 7\n"},
	})
	l := newLoader(t, dir, loader.Options{})

	_, err := l.Import(context.Background(), "./main.star", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrUnknownFormat)
	var linkErr *loader.LinkError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, "./weird.txt", linkErr.Specifier)

	ns, err := l.Import(context.Background(), "./weird.txt", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(7), mustGet(t, ns, module.DefaultExport))
}

func TestLegacyRequire(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "script.sky", Content: "util = require(\"./util\")\nexports = util.double(21)\n"},
		{Path: "util.sky", Content: "def double(n):\n    return n * 2\n"},
	})
	l := newLoader(t, dir, loader.Options{})

	res, err := l.Resolve(context.Background(), "./script.sky", "")
	require.NoError(t, err)
	assert.Equal(t, format.Legacy, res.Format)

	ns, err := l.Import(context.Background(), "./script.sky", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(42), mustGet(t, ns, module.DefaultExport))
}

func TestAddon(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: "load(\"./add.wasm\", add = \"default\")\nx = add.add(2, 40)\n"},
		{Path: "add.wasm", Content: string(addWasm)},
	})

	t.Run("enabled", func(t *testing.T) {
		l := newLoader(t, dir, loader.Options{})
		ns, err := l.Import(context.Background(), "./main.star", "")
		require.NoError(t, err)
		assert.Equal(t, starlark.MakeInt(42), mustGet(t, ns, "x"))

		addon, err := l.Import(context.Background(), "./add.wasm", "")
		require.NoError(t, err)
		_, ok := mustGet(t, addon, module.DefaultExport).(*starlarkstruct.Module)
		assert.True(t, ok)
	})

	t.Run("disabled", func(t *testing.T) {
		l := newLoader(t, dir, loader.Options{DisableAddons: true})
		_, err := l.Import(context.Background(), "./main.star", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "addon support is disabled")
	})
}

func TestDynamicModule(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: "load(\"virtual:thing\", v = \"default\")\nout = v + 1\n"},
	})
	l := newLoader(t, dir, loader.Options{})

	require.NoError(t, l.SetResolveHook(func(ctx context.Context, specifier string, referrer *url.URL, next resolver.ResolveFunc) (resolver.Resolved, error) {
		if specifier == "virtual:thing" {
			u, err := url.Parse(specifier)
			if err != nil {
				return resolver.Resolved{}, err
			}
			return resolver.Resolved{URL: u, Format: format.Dynamic}, nil
		}
		return next(ctx, specifier, referrer)
	}))
	var instantiated atomic.Int32
	require.NoError(t, l.SetInstantiateHook(func(ctx context.Context, u *url.URL) (*module.Dynamic, error) {
		instantiated.Add(1)
		return &module.Dynamic{
			Exports: []string{module.DefaultExport},
			Execute: func(ctx context.Context, slots map[string]*module.Binding) error {
				slots[module.DefaultExport].Set(starlark.MakeInt(41))
				return nil
			},
		}, nil
	}))

	ns, err := l.Import(context.Background(), "./main.star", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(42), mustGet(t, ns, "out"))

	thing, err := l.Import(context.Background(), "virtual:thing", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(41), mustGet(t, thing, module.DefaultExport))
	assert.Equal(t, int32(1), instantiated.Load())
}

func TestDynamicModuleImportsDuringExecute(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "lib.star", Content: "value = 5\n"},
	})
	l := newLoader(t, dir, loader.Options{})

	require.NoError(t, l.SetResolveHook(func(ctx context.Context, specifier string, referrer *url.URL, next resolver.ResolveFunc) (resolver.Resolved, error) {
		if specifier == "virtual:wrapper" {
			return resolver.Resolved{
				URL:    &url.URL{Scheme: "virtual", Opaque: "wrapper"},
				Format: format.Dynamic,
				Instantiate: func(ctx context.Context, u *url.URL) (*module.Dynamic, error) {
					return &module.Dynamic{
						Exports: []string{"wrapped"},
						Execute: func(ctx context.Context, slots map[string]*module.Binding) error {
							lib, err := l.Import(ctx, "./lib.star", "")
							if err != nil {
								return err
							}
							v, _ := lib.Get("value")
							slots["wrapped"].Set(starlark.Tuple{v})
							return nil
						},
					}, nil
				},
			}, nil
		}
		return next(ctx, specifier, referrer)
	}))

	ns, err := l.Import(context.Background(), "virtual:wrapper", "")
	require.NoError(t, err)
	assert.Equal(t, "(5,)", mustGet(t, ns, "wrapped").String())
}

const hooksSource = `
def resolve(specifier, referrer, default_resolve):
    if specifier == "alias":
        return default_resolve("./real.star", referrer)
    if specifier.startswith("virtual:"):
        return {"url": specifier, "format": "dynamic"}
    return default_resolve(specifier, referrer)

def dynamic_instantiate(url):
    def execute():
        return {"name": url, "n": 3}
    return {"exports": ["name", "n"], "execute": execute}
`

func TestHooksModule(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "hooks.star", Content: hooksSource},
		{Path: "main.star", Content: "load(\"alias\", \"r\")\nload(\"virtual:thing\", \"name\", \"n\")\nout = (r, name, n)\n"},
		{Path: "real.star", Content: "r = \"real\"\n"},
	})
	var delegated []string
	l := newLoader(t, dir, loader.Options{
		HooksModule: "./hooks.star",
		ResolveHook: func(ctx context.Context, specifier string, referrer *url.URL, next resolver.ResolveFunc) (resolver.Resolved, error) {
			delegated = append(delegated, specifier)
			return next(ctx, specifier, referrer)
		},
	})

	ns, err := l.Import(context.Background(), "./main.star", "")
	require.NoError(t, err)
	assert.Equal(t, `("real", "virtual:thing", 3)`, mustGet(t, ns, "out").String())

	if diff := cmp.Diff([]string{"./main.star", "./real.star"}, delegated); diff != "" {
		t.Errorf("specifiers passed on to the options hook (-want +got):\n%s", diff)
	}
	var got []string
	for _, job := range l.Jobs() {
		got = append(got, job.URL().String())
	}
	want := []string{
		location.FromPath(filepath.Join(dir, "main.star")).String(),
		location.FromPath(filepath.Join(dir, "real.star")).String(),
		"virtual:thing",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("jobs (-want +got):\n%s", diff)
	}

	err = l.SetInstantiateHook(func(context.Context, *url.URL) (*module.Dynamic, error) { return nil, nil })
	assert.ErrorIs(t, err, loader.ErrHooksFrozen)
}

func TestHooksModuleErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		hooks     string
		opts      loader.Options
		wantNew   string
		wantErr   error
		wantInErr string
	}{
		"missing module": {
			hooks:   "",
			wantNew: "loader module ./hooks.star: cannot find module",
		},
		"resolve is not a function": {
			hooks:   "resolve = 1\n",
			wantNew: "resolve is a int, not a function",
		},
		"instantiate hook set twice": {
			hooks: "def dynamic_instantiate(url):\n    return None\n",
			opts: loader.Options{
				InstantiateHook: func(context.Context, *url.URL) (*module.Dynamic, error) { return nil, nil },
			},
			wantNew: "and options both set an instantiate hook",
		},
		"resolve result without format": {
			hooks:     "def resolve(specifier, referrer, default_resolve):\n    return {\"url\": \"/x.star\"}\n",
			wantErr:   resolver.ErrResolution,
			wantInErr: "missing format",
		},
		"resolve result with relative url": {
			hooks:     "def resolve(specifier, referrer, default_resolve):\n    return {\"url\": \"x.star\", \"format\": \"standard\"}\n",
			wantErr:   resolver.ErrResolution,
			wantInErr: `url "x.star" is not absolute`,
		},
		"resolve fails": {
			hooks:     "def resolve(specifier, referrer, default_resolve):\n    fail(\"no resolving today\")\n",
			wantInErr: "no resolving today",
		},
		"instantiate without execute": {
			hooks:     "def resolve(specifier, referrer, default_resolve):\n    return {\"url\": \"virtual:x\", \"format\": \"dynamic\"}\n\ndef dynamic_instantiate(url):\n    return {\"exports\": []}\n",
			wantInErr: "missing execute",
		},
		"execute sets a name that is not exported": {
			hooks:     "def resolve(specifier, referrer, default_resolve):\n    return {\"url\": \"virtual:x\", \"format\": \"dynamic\"}\n\ndef dynamic_instantiate(url):\n    return {\"exports\": [\"a\"], \"execute\": lambda: {\"b\": 1}}\n",
			wantInErr: `"b" is not exported`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			files := []testutil.FileSpec{{Path: "main.star"}}
			if tc.hooks != "" {
				files = append(files, testutil.FileSpec{Path: "hooks.star", Content: tc.hooks})
			}
			dir, _ := testutil.MustPrepareTestFiles(t, files)

			opts := tc.opts
			opts.Base = dir
			opts.HooksModule = "./hooks.star"
			opts.Logger = testutil.Logger(t)
			l, err := loader.New(opts)
			if tc.wantNew != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantNew)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { l.Close(context.Background()) })

			_, err = l.Import(context.Background(), "./main.star", "")
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			assert.Contains(t, err.Error(), tc.wantInErr)
		})
	}
}

func TestImportModule(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: "lib = import_module(\"./lib/index.star\")\nv = lib.value\nself = __url__\n"},
		{Path: "lib/index.star", Content: "load(\"./dep.star\", \"d\")\nvalue = d + 1\nback = import_module(\"../main.star\")\n"},
		{Path: "lib/dep.star", Content: "d = 4\n"},
		{Path: "broken.star", Content: "import_module(\"./nope.star\")\n"},
	})
	l := newLoader(t, dir, loader.Options{})
	ctx := context.Background()
	mainURL := location.FromPath(filepath.Join(dir, "main.star")).String()

	ns, err := l.Import(ctx, "./main.star", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(5), mustGet(t, ns, "v"))
	assert.Equal(t, starlark.String(mainURL), mustGet(t, ns, "self"))

	lib, ok := mustGet(t, ns, "lib").(*module.Namespace)
	require.True(t, ok)
	assert.Equal(t, location.FromPath(filepath.Join(dir, "lib", "index.star")).String(), lib.URL())
	back, ok := mustGet(t, lib, "back").(*module.Namespace)
	require.True(t, ok)
	assert.Same(t, ns, back)

	for _, job := range l.Jobs() {
		assert.Equal(t, loader.Done, job.State(), job.URL().String())
	}

	_, err = l.Import(ctx, "./broken.star", "")
	var evalErr *loader.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, err.Error(), `import_module("./nope.star"): cannot find module "./nope.star"`)
}

func TestHookSetters(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star"},
	})
	l := newLoader(t, dir, loader.Options{})
	passthrough := func(ctx context.Context, specifier string, referrer *url.URL, next resolver.ResolveFunc) (resolver.Resolved, error) {
		return next(ctx, specifier, referrer)
	}

	require.Error(t, l.SetResolveHook(nil))
	require.NoError(t, l.SetResolveHook(passthrough))
	require.EqualError(t, l.SetResolveHook(passthrough), "resolve hook already registered")

	_, err := l.Import(context.Background(), "./main.star", "")
	require.NoError(t, err)

	err = l.SetInstantiateHook(func(context.Context, *url.URL) (*module.Dynamic, error) { return nil, nil })
	assert.ErrorIs(t, err, loader.ErrHooksFrozen)
}

func TestResolvedValidation(t *testing.T) {
	for name, tc := range map[string]struct {
		resolved resolver.Resolved
		wantErr  error
	}{
		"no url": {
			resolved: resolver.Resolved{Format: format.Standard},
			wantErr:  resolver.ErrResolution,
		},
		"unknown format": {
			resolved: resolver.Resolved{URL: &url.URL{Scheme: "file", Path: "/x.star"}},
			wantErr:  resolver.ErrUnknownLoader,
		},
		"network scheme": {
			resolved: resolver.Resolved{URL: &url.URL{Scheme: "https", Host: "example.com", Path: "/x.star"}, Format: format.Standard},
			wantErr:  resolver.ErrInvalidProtocol,
		},
		"builtin format on a file": {
			resolved: resolver.Resolved{URL: &url.URL{Scheme: "file", Path: "/x.star"}, Format: format.Builtin},
			wantErr:  resolver.ErrInvalidProtocol,
		},
		"dynamic without hook": {
			resolved: resolver.Resolved{URL: &url.URL{Scheme: "virtual", Opaque: "x"}, Format: format.Dynamic},
			wantErr:  resolver.ErrUnknownFormat,
		},
	} {
		t.Run(name, func(t *testing.T) {
			dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{{Path: "main.star"}})
			l := newLoader(t, dir, loader.Options{
				ResolveHook: func(context.Context, string, *url.URL, resolver.ResolveFunc) (resolver.Resolved, error) {
					return tc.resolved, nil
				},
			})
			_, err := l.Import(context.Background(), "anything", "")
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, l.Jobs())
		})
	}
}

func TestFailuresAreReplayed(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "missing_dep.star", Content: "load(\"./nope.star\", \"x\")\n"},
		{Path: "bad.star", Content: "tick()\nfail(\"boom\")\n"},
		{Path: "uses_bad.star", Content: "load(\"./bad.star\", \"y\")\n"},
	})
	var c counter
	l := newLoader(t, dir, loader.Options{
		Predeclared: starlark.StringDict{"tick": c.builtin()},
	})
	ctx := context.Background()

	t.Run("link", func(t *testing.T) {
		_, first := l.Import(ctx, "./missing_dep.star", "")
		require.Error(t, first)
		var linkErr *loader.LinkError
		require.ErrorAs(t, first, &linkErr)
		assert.Equal(t, "./nope.star", linkErr.Specifier)
		assert.ErrorIs(t, first, resolver.ErrModuleNotFound)

		_, second := l.Import(ctx, "./missing_dep.star", "")
		assert.Same(t, first, second)

		job, err := l.ModuleJob(ctx, "./missing_dep.star", "")
		require.NoError(t, err)
		assert.Equal(t, loader.Failed, job.State())
		select {
		case <-job.Done():
		default:
			t.Error("failed job is not done")
		}
	})

	t.Run("evaluation", func(t *testing.T) {
		_, first := l.Import(ctx, "./bad.star", "")
		var evalErr *loader.EvaluationError
		require.ErrorAs(t, first, &evalErr)
		assert.Contains(t, first.Error(), "boom")

		_, second := l.Import(ctx, "./uses_bad.star", "")
		require.Error(t, second)
		assert.ErrorIs(t, second, first)
		assert.Equal(t, int32(1), c.n.Load())
	})
}

func TestAdoptedJobEvaluatesItsDependencies(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "p.star", Content: "load(\"./d1.star\", \"a\")\nload(\"./d2.star\", \"b\")\n"},
		{Path: "d1.star", Content: "a = 1\nfail(\"d1 broke\")\n"},
		{Path: "d2.star", Content: "load(\"./e.star\", \"x\")\nb = x\n"},
		{Path: "e.star", Content: "x = 42\n"},
	})
	l := newLoader(t, dir, loader.Options{})
	ctx := context.Background()

	_, err := l.Import(ctx, "./p.star", "")
	var evalErr *loader.EvaluationError
	require.ErrorAs(t, err, &evalErr)

	d2, err := l.Import(ctx, "./d2.star", "")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(42), mustGet(t, d2, "b"))

	got := make(map[string]string)
	for _, job := range l.Jobs() {
		got[filepath.Base(job.URL().Path)] = job.State().String()
	}
	want := map[string]string{
		"p.star":  "failed",
		"d1.star": "failed",
		"d2.star": "done",
		"e.star":  "done",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("job states (-want +got):\n%s", diff)
	}
}

func TestProgress(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, []testutil.FileSpec{
		{Path: "main.star", Content: "x = 1\n"},
	})
	var buf bytes.Buffer
	l := newLoader(t, dir, loader.Options{Progress: progress.NewProgressOutput(&buf)})

	_, err := l.Import(context.Background(), "./main.star", "")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "done (1/1 modules)")
}

func TestImportInvalidReferrer(t *testing.T) {
	l := newLoader(t, t.TempDir(), loader.Options{})
	_, err := l.Import(context.Background(), "./x.star", "relative/referrer.star")
	assert.ErrorIs(t, err, resolver.ErrResolution)
}

func TestNewRejectsEntryMode(t *testing.T) {
	_, err := loader.New(loader.Options{EntryMode: format.Data, DisableAddons: true})
	require.EqualError(t, err, "entry mode must be standard or legacy, got data")
}
