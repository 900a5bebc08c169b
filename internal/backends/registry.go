// Package backends holds the adapter registry and helpers shared by the
// adapters in its subpackages.
package backends

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spherical/pdf-inspector/internal/domain"
)

// order is the presentation order of the fixed backend set.
var order = map[domain.Backend]int{
	domain.BackendMuPDF:     0,
	domain.BackendPlumber:   1,
	domain.BackendPoppler:   2,
	domain.BackendCamelot:   3,
	domain.BackendTabula:    4,
	domain.BackendOCRTables: 5,
	domain.BackendOCRLayout: 6,
}

// Registry maps backend names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Backend]domain.Adapter
}

// NewRegistry creates a registry holding adapters.
func NewRegistry(adapters ...domain.Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Backend]domain.Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a domain.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter for name.
func (r *Registry) Get(name domain.Backend) (domain.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, domain.ValidationError(fmt.Sprintf("unknown backend %q (available: %s)", name, strings.Join(r.namesLocked(), ", ")), nil)
	}
	return a, nil
}

// List returns every adapter in presentation order.
func (r *Registry) List() []domain.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return rank(out[i].Name()) < rank(out[j].Name()) })
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}

func rank(b domain.Backend) int {
	if i, ok := order[b]; ok {
		return i
	}
	return len(order)
}

// Supports reports whether a offers mode.
func Supports(a domain.Adapter, mode domain.Mode) bool {
	for _, m := range a.Modes() {
		if m == mode {
			return true
		}
	}
	return false
}

// CheckMode rejects a mode the adapter does not offer.
func CheckMode(a domain.Adapter, mode domain.Mode) error {
	if Supports(a, mode) {
		return nil
	}
	modes := make([]string, len(a.Modes()))
	for i, m := range a.Modes() {
		modes[i] = string(m)
	}
	return domain.ValidationError(fmt.Sprintf("backend %s does not support mode %q (supported: %s)",
		a.Name(), mode, strings.Join(modes, ", ")), nil)
}
