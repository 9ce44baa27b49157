package module

import (
	"context"

	"go.starlark.net/starlark"
)

const contextLocal = "modload.context"

// WithContext attaches ctx to a Starlark thread so builtins invoked on it
// can reach the caller's context.
func WithContext(thread *starlark.Thread, ctx context.Context) {
	thread.SetLocal(contextLocal, ctx)
}

// Context returns the context attached with WithContext, or
// context.Background.
func Context(thread *starlark.Thread) context.Context {
	if thread != nil {
		if ctx, ok := thread.Local(contextLocal).(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}
