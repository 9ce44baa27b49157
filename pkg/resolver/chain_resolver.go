package resolver

import (
	"context"
	"net/url"
)

// Chain composes resolve hooks into one.  The first hook runs first; its
// next function invokes the second hook, and so on, with the last hook's
// next being the next function given to the composed hook.
func Chain(hooks ...ResolveHook) ResolveHook {
	var chain []ResolveHook
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return func(ctx context.Context, specifier string, referrer *url.URL, next ResolveFunc) (Resolved, error) {
		return chainFrom(chain, next)(ctx, specifier, referrer)
	}
}

func chainFrom(chain []ResolveHook, last ResolveFunc) ResolveFunc {
	if len(chain) == 0 {
		return last
	}
	return func(ctx context.Context, specifier string, referrer *url.URL) (Resolved, error) {
		return chain[0](ctx, specifier, referrer, chainFrom(chain[1:], last))
	}
}

// Bind returns the resolution function that runs hook with next as its
// fallback.  A nil hook yields next.
func Bind(hook ResolveHook, next ResolveFunc) ResolveFunc {
	if hook == nil {
		return next
	}
	return func(ctx context.Context, specifier string, referrer *url.URL) (Resolved, error) {
		return hook(ctx, specifier, referrer, next)
	}
}
