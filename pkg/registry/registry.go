package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// Registry is a process-wide table of live modules keyed by name.
// Unlike a plain map it refuses to overwrite an occupied name.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*domain.Module
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*domain.Module),
	}
}

// Register adds a module under its name.
// It returns domain.ErrModuleExists if the name is taken.
func (r *Registry) Register(mod *domain.Module) error {
	if mod == nil || mod.Name == "" {
		return fmt.Errorf("register: module has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[mod.Name]; ok {
		return fmt.Errorf("register %q: %w", mod.Name, domain.ErrModuleExists)
	}
	r.modules[mod.Name] = mod
	return nil
}

// Lookup returns the module registered under name.
func (r *Registry) Lookup(name string) (*domain.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.modules[name]
	return mod, ok
}

// Remove drops name. Missing names are ignored.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
