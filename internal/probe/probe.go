// Package probe detects optional external executables on the search path.
package probe

import (
	"os/exec"
	"sync"
)

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(name string) (string, error)

// Cache looks each executable name up once and remembers the answer for the
// lifetime of the process. A name set resolves to its first available name
// in the order the caller gives.
type Cache struct {
	look LookPathFunc

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once sync.Once
	path string
	ok   bool
}

// Result describes a probed name set.
type Result struct {
	Names     []string `json:"names"`
	Available bool     `json:"available"`
	Path      string   `json:"path,omitempty"`
}

var defaultCache = NewCache(exec.LookPath)

// Default returns the process-wide cache.
func Default() *Cache {
	return defaultCache
}

// NewCache creates a cache backed by look.
func NewCache(look LookPathFunc) *Cache {
	return &Cache{
		look:    look,
		entries: make(map[string]*entry),
	}
}

// Available reports whether any of names resolves on the search path.
func (c *Cache) Available(names ...string) bool {
	return c.Probe(names...).Available
}

// Probe returns the cached result for names, looking up each name on
// first use.
func (c *Cache) Probe(names ...string) Result {
	res := Result{Names: names}
	for _, name := range names {
		if name == "" {
			continue
		}
		if path, ok := c.lookup(name); ok {
			res.Available = true
			res.Path = path
			break
		}
	}
	return res
}

// Resolve returns the first of names that resolves, or "" when none does.
func (c *Cache) Resolve(names ...string) string {
	return c.Probe(names...).Path
}

func (c *Cache) lookup(name string) (string, bool) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		e = &entry{}
		c.entries[name] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		if path, err := c.look(name); err == nil {
			e.path, e.ok = path, true
		}
	})
	return e.path, e.ok
}
