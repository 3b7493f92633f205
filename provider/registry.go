package provider

import (
	"sort"
	"sync"
	"sync/atomic"
)

// snapshot is the immutable registry state published to readers.
type snapshot struct {
	providers   map[string]Provider
	defaultName string
}

// Registry maps names to shared backend implementations with one optional
// default. Lookups load an atomic snapshot and never block; writers copy the
// map, mutate the copy and swap it in under a mutex that only serializes
// other writers.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&snapshot{providers: map[string]Provider{}})
	return r
}

// Register installs a provider under the given name, overwriting any
// previous entry with that name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swapLocked(func(s *snapshot) {
		s.providers[name] = p
	})
}

// SetDefault marks a registered name as the default. It reports false when
// the name is not registered, leaving the previous default in place.
func (r *Registry) SetDefault(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.current.Load().providers[name]; !ok {
		return false
	}
	r.swapLocked(func(s *snapshot) {
		s.defaultName = name
	})
	return true
}

// Get returns the provider registered under name. Absence is reported via
// the bool, never as an error.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.current.Load().providers[name]
	return p, ok
}

// GetDefault returns the provider most recently marked default.
func (r *Registry) GetDefault() (Provider, bool) {
	s := r.current.Load()
	if s.defaultName == "" {
		return nil, false
	}
	p, ok := s.providers[s.defaultName]
	return p, ok
}

// DefaultName returns the currently configured default name, empty when
// unset.
func (r *Registry) DefaultName() string {
	return r.current.Load().defaultName
}

// Names returns the sorted names of all registered providers.
func (r *Registry) Names() []string {
	s := r.current.Load()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// swapLocked publishes a mutated copy of the current snapshot. Caller holds
// r.mu.
func (r *Registry) swapLocked(mutate func(*snapshot)) {
	old := r.current.Load()
	next := &snapshot{providers: make(map[string]Provider, len(old.providers)+1), defaultName: old.defaultName}
	for name, p := range old.providers {
		next.providers[name] = p
	}
	mutate(next)
	r.current.Store(next)
}
