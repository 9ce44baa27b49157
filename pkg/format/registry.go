package format

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/stackb/modload/pkg/module"
)

// Strategy turns a canonical location into an instantiated module record.
// It may block on I/O.
type Strategy func(ctx context.Context, u *url.URL) (module.Record, error)

// Registry maps formats to loading strategies.  Dynamic is never a registry
// entry: dynamic modules are instantiated by a hook owned by the loader.
type Registry struct {
	mu         sync.RWMutex
	strategies map[Format]Strategy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[Format]Strategy),
	}
}

// Register installs the strategy for f, replacing any previous one.
func (r *Registry) Register(f Format, s Strategy) error {
	if f == Unknown || f == Dynamic {
		return fmt.Errorf("format %v cannot have a registered strategy", f)
	}
	if s == nil {
		return fmt.Errorf("nil strategy for format %v", f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[f] = s
	return nil
}

// StrategyFor returns the strategy registered for f.
func (r *Registry) StrategyFor(f Format) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[f]
	return s, ok
}

// Has reports whether a strategy is registered for f.
func (r *Registry) Has(f Format) bool {
	_, ok := r.StrategyFor(f)
	return ok
}

// Formats returns the registered formats in order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]Format, 0, len(r.strategies))
	for f := range r.strategies {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
