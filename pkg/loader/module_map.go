package loader

import (
	"fmt"
	"sort"
	"sync"
)

// ModuleMap holds one ModuleJob per canonical location.  Entries are never
// removed.
type ModuleMap struct {
	mu   sync.RWMutex
	jobs map[string]*ModuleJob
}

// NewModuleMap creates an empty map.
func NewModuleMap() *ModuleMap {
	return &ModuleMap{jobs: make(map[string]*ModuleJob)}
}

// Get returns the job for key.
func (m *ModuleMap) Get(key string) (*ModuleJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[key]
	return job, ok
}

// Set stores job under key.  A key can not be rebound to a different job.
func (m *ModuleMap) Set(key string, job *ModuleJob) error {
	if job == nil {
		return fmt.Errorf("module map: nil job for %s", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.jobs[key]; ok && prev != job {
		return fmt.Errorf("module map: %s is already bound to another job", key)
	}
	m.jobs[key] = job
	return nil
}

// GetOrSet returns the job stored under key, storing job first if there is
// none.  loaded reports whether the job was already present.
func (m *ModuleMap) GetOrSet(key string, job *ModuleJob) (actual *ModuleJob, loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.jobs[key]; ok {
		return prev, true
	}
	m.jobs[key] = job
	return job, false
}

// Len returns the number of jobs.
func (m *ModuleMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Keys returns the keys in sorted order.
func (m *ModuleMap) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Jobs returns the jobs sorted by key.
func (m *ModuleMap) Jobs() []*ModuleJob {
	keys := m.Keys()
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ModuleJob, len(keys))
	for i, k := range keys {
		jobs[i] = m.jobs[k]
	}
	return jobs
}
