// Package canonical resolves file locations to their symlink-free form.
package canonical

import (
	"context"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/stackb/modload/pkg/hostfs"
	"github.com/stackb/modload/pkg/location"
)

// Canonicalizer memoizes realpath lookups.  Entries are never invalidated:
// a module location is loaded at most once per loader, so the cache lives
// exactly as long as its owner.
type Canonicalizer struct {
	fs     hostfs.FS
	logger zerolog.Logger

	mu    sync.RWMutex
	known map[string]string
	group singleflight.Group
}

// New creates a Canonicalizer over the given file system.
func New(fsys hostfs.FS, logger zerolog.Logger) *Canonicalizer {
	return &Canonicalizer{
		fs:     fsys,
		logger: logger,
		known:  make(map[string]string),
	}
}

// Canonicalize returns u with its path replaced by the real path.  Locations
// that are not file-backed are returned unchanged.  The query and fragment of
// u are carried over to the result.
func (c *Canonicalizer) Canonicalize(ctx context.Context, u *url.URL) (*url.URL, error) {
	if !location.IsFile(u) {
		return u, nil
	}
	p, err := location.ToPath(u)
	if err != nil {
		return nil, err
	}
	real, err := c.Realpath(p)
	if err != nil {
		return nil, err
	}
	if real == p {
		return u, nil
	}
	return location.WithPath(u, real), nil
}

// Realpath returns the memoized real path of p.
func (c *Canonicalizer) Realpath(p string) (string, error) {
	c.mu.RLock()
	real, ok := c.known[p]
	c.mu.RUnlock()
	if ok {
		return real, nil
	}

	v, err, _ := c.group.Do(p, func() (interface{}, error) {
		c.mu.RLock()
		real, ok := c.known[p]
		c.mu.RUnlock()
		if ok {
			return real, nil
		}
		real, err := c.fs.Realpath(p)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.known[p] = real
		c.mu.Unlock()
		c.logger.Debug().Str("path", p).Str("real", real).Msg("realpath")
		return real, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len returns the number of cached entries.
func (c *Canonicalizer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.known)
}
