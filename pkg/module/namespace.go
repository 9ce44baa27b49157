package module

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// DefaultExport is the binding name under which single-value modules (data,
// legacy, addon) expose their value.
const DefaultExport = "default"

// Namespace is the read-only view of a module's exported bindings.  A module
// has exactly one Namespace for its lifetime, so importers can compare
// namespaces by identity.
//
// Namespace is also a starlark.HasAttrs so it can be handed to Starlark code.
type Namespace struct {
	url      string
	names    []string
	bindings map[string]*Binding
}

var _ starlark.HasAttrs = (*Namespace)(nil)

// NewNamespace creates a namespace over the given bindings.
func NewNamespace(url string, bindings map[string]*Binding) *Namespace {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Namespace{url: url, names: names, bindings: bindings}
}

// URL returns the canonical location of the module.
func (ns *Namespace) URL() string { return ns.url }

// Names returns the exported names in sorted order.
func (ns *Namespace) Names() []string {
	names := make([]string, len(ns.names))
	copy(names, ns.names)
	return names
}

// Has reports whether name is exported, set or not.
func (ns *Namespace) Has(name string) bool {
	_, ok := ns.bindings[name]
	return ok
}

// Get returns the current value of name.  It reports false when name is not
// exported or has not been assigned yet (a partially evaluated module seen
// through a dependency cycle).
func (ns *Namespace) Get(name string) (starlark.Value, bool) {
	b, ok := ns.bindings[name]
	if !ok {
		return nil, false
	}
	return b.Get()
}

// Default returns the default export.
func (ns *Namespace) Default() (starlark.Value, bool) {
	return ns.Get(DefaultExport)
}

// StringDict returns a snapshot of the namespace.  Exported names that are
// not yet assigned map to None.
func (ns *Namespace) StringDict() starlark.StringDict {
	dict := make(starlark.StringDict, len(ns.names))
	for _, name := range ns.names {
		if v, ok := ns.bindings[name].Get(); ok {
			dict[name] = v
		} else {
			dict[name] = starlark.None
		}
	}
	return dict
}

// String implements starlark.Value.
func (ns *Namespace) String() string {
	var b strings.Builder
	b.WriteString("<namespace ")
	b.WriteString(ns.url)
	b.WriteString(" {")
	for i, name := range ns.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
	}
	b.WriteString("}>")
	return b.String()
}

// Type implements starlark.Value.
func (ns *Namespace) Type() string { return "namespace" }

// Freeze implements starlark.Value.  Namespaces are read-only already.
func (ns *Namespace) Freeze() {}

// Truth implements starlark.Value.
func (ns *Namespace) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (ns *Namespace) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: namespace")
}

// Attr implements starlark.HasAttrs.
func (ns *Namespace) Attr(name string) (starlark.Value, error) {
	if !ns.Has(name) {
		return nil, nil
	}
	if v, ok := ns.Get(name); ok {
		return v, nil
	}
	return starlark.None, nil
}

// AttrNames implements starlark.HasAttrs.
func (ns *Namespace) AttrNames() []string {
	return ns.Names()
}
