package adapter

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the adapters supplied at startup, keyed by platform id.
// Iteration order is sorted by id so every consumer sees platforms in the
// same deterministic order.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]PlatformAdapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]PlatformAdapter)}
}

// Register adds an adapter under its platform id. Registering an empty or
// duplicate id is an error.
func (r *Registry) Register(a PlatformAdapter) error {
	if a == nil {
		return fmt.Errorf("adapter must not be nil")
	}
	id := a.PlatformID()
	if id == "" {
		return fmt.Errorf("adapter platform id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("platform %s already registered", id)
	}
	r.adapters[id] = a
	return nil
}

// Get returns the adapter for a platform id.
func (r *Registry) Get(id string) (PlatformAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns all registered platform ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the registered adapters ordered by platform id.
func (r *Registry) All() []PlatformAdapter {
	ids := r.IDs()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PlatformAdapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.adapters[id])
	}
	return out
}
