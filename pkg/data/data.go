// Package data implements the data module format: JSON, YAML, TOML and CUE
// documents exposed as a single frozen "default" value.
package data

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"

	"github.com/stackb/modload/pkg/hostfs"
	"github.com/stackb/modload/pkg/location"
	"github.com/stackb/modload/pkg/module"
)

// Loader creates data module records.
type Loader struct {
	fs     hostfs.FS
	logger zerolog.Logger
}

// NewLoader creates a Loader reading documents through fsys.
func NewLoader(fsys hostfs.FS, logger zerolog.Logger) *Loader {
	return &Loader{fs: fsys, logger: logger}
}

// Strategy reads the document at u; it is decoded when the record is
// evaluated.  It satisfies format.Strategy.
func (l *Loader) Strategy(ctx context.Context, u *url.URL) (module.Record, error) {
	filename, err := location.ToPath(u)
	if err != nil {
		return nil, err
	}
	decode, ok := DecoderFor(location.Ext(u))
	if !ok {
		return nil, fmt.Errorf("no data decoder for %s", u)
	}
	src, err := l.fs.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return module.NewDefault(u, func(ctx context.Context) (starlark.Value, error) {
		v, err := decode(filename, src)
		if err != nil {
			return nil, err
		}
		v.Freeze()
		l.logger.Debug().Str("url", u.String()).Str("type", v.Type()).Msg("decoded data module")
		return v, nil
	}), nil
}
