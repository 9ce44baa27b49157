package module

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.starlark.net/starlark"
)

// ExecuteFunc populates the binding slots of a synthetic module.
type ExecuteFunc func(ctx context.Context, slots map[string]*Binding) error

// Dynamic is the result of a custom instantiation hook: the names the module
// exports and the function that later assigns them.
type Dynamic struct {
	Exports []string
	Execute ExecuteFunc
}

// Validate checks that the export list is usable.
func (d *Dynamic) Validate() error {
	if d == nil {
		return fmt.Errorf("instantiate hook returned nil")
	}
	if d.Execute == nil {
		return fmt.Errorf("instantiate hook returned nil execute function")
	}
	seen := make(map[string]bool, len(d.Exports))
	for _, name := range d.Exports {
		if name == "" {
			return fmt.Errorf("instantiate hook returned an empty export name")
		}
		if seen[name] {
			return fmt.Errorf("instantiate hook returned duplicate export %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Synthetic is a Record without dependency requests whose bindings are
// assigned by an ExecuteFunc.  Data, legacy, addon and builtin modules as
// well as dynamic modules are synthetic.
type Synthetic struct {
	url      *url.URL
	bindings map[string]*Binding
	ns       *Namespace
	execute  ExecuteFunc

	once sync.Once
	err  error
}

// NewSynthetic creates a synthetic record exporting names.
func NewSynthetic(u *url.URL, names []string, execute ExecuteFunc) *Synthetic {
	bindings := NewBindings(names)
	return &Synthetic{
		url:      u,
		bindings: bindings,
		ns:       NewNamespace(u.String(), bindings),
		execute:  execute,
	}
}

// NewDefault creates a synthetic record whose only export is "default",
// computed by fn at evaluation time.
func NewDefault(u *url.URL, fn func(ctx context.Context) (starlark.Value, error)) *Synthetic {
	return NewSynthetic(u, []string{DefaultExport}, func(ctx context.Context, slots map[string]*Binding) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		slots[DefaultExport].Set(v)
		return nil
	})
}

// FromDynamic adapts the result of an instantiation hook into a Record.
func FromDynamic(u *url.URL, d *Dynamic) (*Synthetic, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return NewSynthetic(u, d.Exports, d.Execute), nil
}

// URL implements part of the Record interface.
func (s *Synthetic) URL() *url.URL { return s.url }

// Requests implements part of the Record interface.
func (s *Synthetic) Requests() []string { return nil }

// Namespace implements part of the Record interface.
func (s *Synthetic) Namespace() *Namespace { return s.ns }

// Evaluate implements part of the Record interface.  The execute function
// runs once; later calls return its result.
func (s *Synthetic) Evaluate(ctx context.Context, _ Imports) error {
	s.once.Do(func() {
		s.err = s.execute(ctx, s.bindings)
	})
	return s.err
}
