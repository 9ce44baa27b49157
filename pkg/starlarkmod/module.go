// Package starlarkmod implements the standard module format: Starlark files
// whose load() statements are their statically declared dependencies.
package starlarkmod

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"github.com/stackb/modload/pkg/hostfs"
	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/module"
)

// Module is a compiled standard module.
type Module struct {
	url      *url.URL
	interp   *Interpreter
	prog     *starlark.Program
	requests []string
	bindings map[string]*module.Binding
	ns       *module.Namespace

	once sync.Once
	err  error
}

var _ module.Record = (*Module)(nil)

// Compiler turns standard module sources into records.
type Compiler struct {
	fs     hostfs.FS
	interp *Interpreter
}

// NewCompiler creates a compiler reading sources through fsys.
func NewCompiler(fsys hostfs.FS, interp *Interpreter) *Compiler {
	return &Compiler{fs: fsys, interp: interp}
}

// Strategy reads and compiles the module at u.  It satisfies
// format.Strategy.
func (c *Compiler) Strategy(ctx context.Context, u *url.URL) (module.Record, error) {
	filename, err := location.ToPath(u)
	if err != nil {
		return nil, err
	}
	src, err := c.fs.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return c.Compile(u, src)
}

// Compile compiles src as the module located at u.
func (c *Compiler) Compile(u *url.URL, src []byte) (*Module, error) {
	filename := u.String()
	if p, err := location.ToPath(u); err == nil {
		filename = p
	}
	isPredeclared := func(name string) bool {
		return name == URLName || name == ImportName || c.interp.IsPredeclared(name)
	}
	f, prog, err := starlark.SourceProgramOptions(FileOptions, filename, StripShebang(src), isPredeclared)
	if err != nil {
		return nil, err
	}

	var requests []string
	seen := make(map[string]bool)
	for i := 0; i < prog.NumLoads(); i++ {
		req, _ := prog.Load(i)
		if !seen[req] {
			seen[req] = true
			requests = append(requests, req)
		}
	}

	var exports []string
	if m, ok := f.Module.(*resolve.Module); ok {
		for _, g := range m.Globals {
			if name := g.First.Name; !strings.HasPrefix(name, "_") {
				exports = append(exports, name)
			}
		}
	}

	bindings := module.NewBindings(exports)
	return &Module{
		url:      u,
		interp:   c.interp,
		prog:     prog,
		requests: requests,
		bindings: bindings,
		ns:       module.NewNamespace(u.String(), bindings),
	}, nil
}

// URL implements part of the module.Record interface.
func (m *Module) URL() *url.URL { return m.url }

// Requests implements part of the module.Record interface.
func (m *Module) Requests() []string { return m.requests }

// Namespace implements part of the module.Record interface.
func (m *Module) Namespace() *module.Namespace { return m.ns }

// Evaluate runs the module body once.  load() statements read the linked
// namespaces from imports; names of a module that is still being evaluated
// (a cycle) load as None.
func (m *Module) Evaluate(ctx context.Context, imports module.Imports) error {
	m.once.Do(func() {
		m.err = m.evaluate(ctx, imports)
	})
	return m.err
}

func (m *Module) evaluate(ctx context.Context, imports module.Imports) error {
	thread := m.interp.NewThread(ctx, m.url.String(), func(_ *starlark.Thread, req string) (starlark.StringDict, error) {
		ns, ok := imports[req]
		if !ok {
			return nil, fmt.Errorf("module %q was not linked", req)
		}
		return ns.StringDict(), nil
	})

	globals, err := m.prog.Init(thread, m.predeclared())
	// bindings assigned before a failure stay visible to importers
	for name, b := range m.bindings {
		if v, ok := globals[name]; ok {
			v.Freeze()
			b.Set(v)
		}
	}
	return err
}

func (m *Module) predeclared() starlark.StringDict {
	shared := m.interp.Predeclared()
	predeclared := make(starlark.StringDict, len(shared)+2)
	for k, v := range shared {
		predeclared[k] = v
	}
	predeclared[URLName] = starlark.String(m.url.String())
	predeclared[ImportName] = starlark.NewBuiltin(ImportName, m.importModule)
	return predeclared
}

// importModule implements import_module(specifier).  The module at specifier
// is loaded with this module as referrer, in the link session of the
// evaluation that calls it.
func (m *Module) importModule(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var specifier string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &specifier); err != nil {
		return nil, err
	}
	if m.interp.importer == nil {
		return nil, fmt.Errorf("%s: dynamic import is not available", b.Name())
	}
	ns, err := m.interp.importer(module.Context(thread), specifier, m.url.String())
	if err != nil {
		return nil, fmt.Errorf("%s(%q): %w", b.Name(), specifier, err)
	}
	return ns, nil
}
