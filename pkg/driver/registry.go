package driver

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps backend type identifiers to driver factories. Lookup is
// case-insensitive and multiple aliases may resolve to the same factory.
// Registries are constructed explicitly rather than held in a package-level
// default so tests can instantiate isolated instances.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory // canonical type -> factory
	aliases   map[string]string  // lowercased identifier -> canonical type
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

// Register adds a factory under its canonical type plus any aliases. The
// canonical type itself is always resolvable. Later registrations overwrite
// earlier ones for the same identifier.
func (r *Registry) Register(canonical string, factory Factory, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical = strings.ToLower(canonical)
	r.factories[canonical] = factory
	r.aliases[canonical] = canonical
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = canonical
	}
}

// Resolve returns the canonical type and factory for a backend identifier.
// It is a pure lookup with no side effects: an unknown identifier fails with
// a *NotSupportedError listing every known identifier.
func (r *Registry) Resolve(backendType string) (string, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.aliases[strings.ToLower(strings.TrimSpace(backendType))]
	if !ok {
		return "", nil, &NotSupportedError{Type: backendType, Known: r.knownLocked()}
	}
	return canonical, r.factories[canonical], nil
}

// Types returns every identifier the registry recognizes, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.knownLocked()
}

func (r *Registry) knownLocked() []string {
	known := make([]string, 0, len(r.aliases))
	for a := range r.aliases {
		known = append(known, a)
	}
	sort.Strings(known)
	return known
}
