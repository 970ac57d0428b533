package search

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

// Registry resolves backend names to backends. The map is fixed at
// construction, so lookups need no locking and a request can never observe
// a half-swapped backend.
type Registry struct {
	backends    map[string]Backend
	defaultName string
}

// NewRegistry creates a registry. defaultName may be empty when callers are
// required to name a backend explicitly.
func NewRegistry(defaultName string, backends map[string]Backend) *Registry {
	copied := make(map[string]Backend, len(backends))
	for name, b := range backends {
		copied[name] = b
	}
	return &Registry{backends: copied, defaultName: defaultName}
}

// Get resolves a backend by name. An empty name resolves to the default.
func (r *Registry) Get(name string) (Backend, error) {
	if name == "" {
		name = r.defaultName
	}
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrUnknownBackend)
	}
	return b, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
