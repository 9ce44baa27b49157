package loader

import (
	"context"
	"net/url"

	"go.starlark.net/starlark"

	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/module"
)

// legacyStrategy defers to the legacy loader.  The script runs when the
// record is evaluated and its value becomes the default export.
func (l *Loader) legacyStrategy(ctx context.Context, u *url.URL) (module.Record, error) {
	filename, err := location.ToPath(u)
	if err != nil {
		return nil, err
	}
	return module.NewDefault(u, func(ctx context.Context) (starlark.Value, error) {
		return l.legacy.Load(ctx, filename)
	}), nil
}

func (l *Loader) addonStrategy(ctx context.Context, u *url.URL) (module.Record, error) {
	filename, err := location.ToPath(u)
	if err != nil {
		return nil, err
	}
	return module.NewDefault(u, func(ctx context.Context) (starlark.Value, error) {
		return l.legacy.LoadAddon(ctx, filename)
	}), nil
}
