package resolver

import (
	"context"
	"net/url"
	"sync"
)

// MemoResolver memoizes successful resolutions by (referrer, specifier).
// Failures are never cached.
type MemoResolver struct {
	next ResolveFunc

	mu       sync.RWMutex
	resolved map[memoKey]Resolved
}

type memoKey struct {
	referrer  string
	specifier string
}

// NewMemoResolver wraps next.
func NewMemoResolver(next ResolveFunc) *MemoResolver {
	return &MemoResolver{
		next:     next,
		resolved: make(map[memoKey]Resolved),
	}
}

// Resolve implements ResolveFunc.
func (r *MemoResolver) Resolve(ctx context.Context, specifier string, referrer *url.URL) (Resolved, error) {
	key := memoKey{specifier: specifier}
	if referrer != nil {
		key.referrer = referrer.String()
	}

	r.mu.RLock()
	res, ok := r.resolved[key]
	r.mu.RUnlock()
	if ok {
		return res, nil
	}

	res, err := r.next(ctx, specifier, referrer)
	if err != nil {
		return Resolved{}, err
	}

	r.mu.Lock()
	if prev, ok := r.resolved[key]; ok {
		res = prev
	} else {
		r.resolved[key] = res
	}
	r.mu.Unlock()
	return res, nil
}

// Len returns the number of memoized resolutions.
func (r *MemoResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resolved)
}
