// Package builtin holds the host-provided modules addressable by bare name
// (e.g. load("json", "encode")) or as builtin:<name>.
package builtin

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/dghubble/trie"
	"go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/module"
)

// InternalPrefix marks modules that are registered but not addressable by
// user specifiers.
const InternalPrefix = "internal/"

// Registry implements a builtin module table using a trie keyed by
// slash-separated module names.
type Registry struct {
	mu      sync.RWMutex
	modules *trie.PathTrie
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: trie.NewPathTrieWithConfig(&trie.PathTrieConfig{
			Segmenter: nameSegmenter,
		}),
	}
}

// NewDefaultRegistry creates a registry holding the json, math, time and
// struct modules.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for name, v := range map[string]starlark.Value{
		"json": json.Module,
		"math": starlarkmath.Module,
		"time": starlarktime.Module,
		"struct": &starlarkstruct.Module{
			Name: "struct",
			Members: starlark.StringDict{
				"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
				"module": starlark.NewBuiltin("module", starlarkstruct.MakeModule),
			},
		},
	} {
		if err := r.Register(name, v); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a module.  Names are unique.
func (r *Registry) Register(name string, value starlark.Value) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("invalid builtin module name %q", name)
	}
	if value == nil {
		return fmt.Errorf("builtin module %q: nil value", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.modules.Get(name) != nil {
		return fmt.Errorf("builtin module %q already registered", name)
	}
	value.Freeze()
	r.modules.Put(name, value)
	return nil
}

// Lookup returns the module a user specifier names.  The specifier is a
// bare module name, optionally prefixed with "builtin:".  Internal modules
// are never returned.
func (r *Registry) Lookup(specifier string) (string, starlark.Value, bool) {
	name := strings.TrimPrefix(specifier, location.BuiltinScheme+":")
	if name == "" || strings.HasPrefix(name, InternalPrefix) {
		return "", nil, false
	}
	v, ok := r.get(name)
	return name, v, ok
}

// Has reports whether the specifier names a user-visible builtin.
func (r *Registry) Has(specifier string) bool {
	_, _, ok := r.Lookup(specifier)
	return ok
}

// Names returns the user-visible module names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	r.modules.Walk(func(key string, value interface{}) error {
		if !strings.HasPrefix(key, InternalPrefix) {
			names = append(names, key)
		}
		return nil
	})
	sort.Strings(names)
	return names
}

func (r *Registry) get(name string) (starlark.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v := r.modules.Get(name)
	if v == nil {
		return nil, false
	}
	return v.(starlark.Value), true
}

// Strategy instantiates the builtin module at u (builtin:<name>).  Internal
// modules are reachable here because the location was already validated by
// the resolver.  It satisfies format.Strategy.
func (r *Registry) Strategy(ctx context.Context, u *url.URL) (module.Record, error) {
	name := location.BuiltinName(u)
	value, ok := r.get(name)
	if !ok {
		return nil, fmt.Errorf("no builtin module %q", name)
	}
	members := Members(value)
	names := make([]string, 0, len(members)+1)
	for k := range members {
		if k != module.DefaultExport {
			names = append(names, k)
		}
	}
	names = append(names, module.DefaultExport)
	return module.NewSynthetic(u, names, func(ctx context.Context, slots map[string]*module.Binding) error {
		for k, v := range members {
			slots[k].Set(v)
		}
		slots[module.DefaultExport].Set(value)
		return nil
	}), nil
}

// Members returns the attributes of a module value.
func Members(value starlark.Value) starlark.StringDict {
	switch t := value.(type) {
	case *starlarkstruct.Module:
		return t.Members
	case starlark.HasAttrs:
		members := make(starlark.StringDict)
		for _, name := range t.AttrNames() {
			if v, err := t.Attr(name); err == nil && v != nil {
				members[name] = v
			}
		}
		return members
	}
	return nil
}

// nameSegmenter segments module names by slash separators.  For example,
// "a/b/c" -> ("a", 2), ("/b", 4), ("/c", -1) in successive calls.
func nameSegmenter(path string, start int) (segment string, next int) {
	if len(path) == 0 || start < 0 || start > len(path)-1 {
		return "", -1
	}
	end := strings.IndexRune(path[start+1:], '/')
	if end == -1 {
		return path[start:], -1
	}
	return path[start : start+end+1], start + end + 1
}
