package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the strategies the scanner can be configured with
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy registry
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Lookup retrieves a strategy by name or returns an error naming the
// registered alternatives.
func (r *Registry) Lookup(name string) (Strategy, error) {
	if s, ok := r.Get(name); ok {
		return s, nil
	}
	return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, r.Names())
}

// Names returns the registered strategy names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
