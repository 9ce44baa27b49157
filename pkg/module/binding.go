package module

import (
	"sync"

	"go.starlark.net/starlark"
)

// Binding is a mutable cell holding the current value of one exported name.
// Importers observe bindings through a Namespace and never write them.
type Binding struct {
	name string

	mu    sync.RWMutex
	value starlark.Value
}

// NewBinding creates an unset binding.
func NewBinding(name string) *Binding {
	return &Binding{name: name}
}

// Name returns the exported name.
func (b *Binding) Name() string { return b.name }

// Set stores v as the current value.
func (b *Binding) Set(v starlark.Value) {
	b.mu.Lock()
	b.value = v
	b.mu.Unlock()
}

// Get returns the current value and whether the binding has been set.
func (b *Binding) Get() (starlark.Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value, b.value != nil
}

// NewBindings creates one unset binding per name.
func NewBindings(names []string) map[string]*Binding {
	bindings := make(map[string]*Binding, len(names))
	for _, name := range names {
		bindings[name] = NewBinding(name)
	}
	return bindings
}
