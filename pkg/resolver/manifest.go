package resolver

import (
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/stackb/modload/pkg/hostfs"
)

// DefaultManifestName is the package manifest file name.
const DefaultManifestName = "package.yaml"

// Manifest is the content of a package manifest.  JSON manifests parse as
// YAML.
type Manifest struct {
	// Main is the entry file of the package, relative to the manifest.
	Main string `yaml:"main"`
	// Mode is "standard" or "legacy" and selects the format of ambiguous
	// .sky files in the package.
	Mode string `yaml:"mode"`
}

// manifestCache reads manifests once per path.  Unreadable or malformed
// manifests are cached as absent.
type manifestCache struct {
	fs   hostfs.FS
	name string

	mu        sync.Mutex
	manifests map[string]*Manifest
}

func newManifestCache(fsys hostfs.FS, name string) *manifestCache {
	return &manifestCache{
		fs:        fsys,
		name:      name,
		manifests: make(map[string]*Manifest),
	}
}

// get returns the manifest in dir, or nil.
func (c *manifestCache) get(dir string) *Manifest {
	filename := filepath.Join(dir, c.name)

	c.mu.Lock()
	m, ok := c.manifests[filename]
	c.mu.Unlock()
	if ok {
		return m
	}

	m = c.read(filename)

	c.mu.Lock()
	if prev, ok := c.manifests[filename]; ok {
		m = prev
	} else {
		c.manifests[filename] = m
	}
	c.mu.Unlock()
	return m
}

func (c *manifestCache) read(filename string) *Manifest {
	if !hostfs.IsFile(c.fs, filename) {
		return nil
	}
	data, err := c.fs.ReadFile(filename)
	if err != nil {
		return nil
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil
	}
	return &m
}

// nearest returns the manifest of the closest directory at or above dir.
func (c *manifestCache) nearest(dir string) *Manifest {
	for {
		if m := c.get(dir); m != nil {
			return m
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
