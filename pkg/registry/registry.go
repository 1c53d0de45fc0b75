package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/flowra/pkg/domain"
)

// Registry resolves named guard and action references.
// It implements ports.Resolver and is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	guards  map[string]domain.Checker
	actions map[string]domain.Executor
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards:  make(map[string]domain.Checker),
		actions: make(map[string]domain.Executor),
	}
}

// RegisterGuard adds a guard under name, replacing any previous one.
func (r *Registry) RegisterGuard(name string, c domain.Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[name] = c
}

// RegisterPredicate adds a boolean guard under name.
func (r *Registry) RegisterPredicate(name string, fn func(domain.TransitionContext) bool) {
	r.RegisterGuard(name, domain.Predicate(func(_ context.Context, tc *domain.TransitionContext) bool {
		return fn(*tc)
	}).Checker)
}

// RegisterAction adds an action under name, replacing any previous one.
func (r *Registry) RegisterAction(name string, e domain.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = e
}

// ResolveGuard looks a guard up by name.
func (r *Registry) ResolveGuard(name string) (domain.Checker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.guards[name]
	if !ok {
		return nil, fmt.Errorf("guard not found: %s", name)
	}
	return c, nil
}

// ResolveAction looks an action up by name.
func (r *Registry) ResolveAction(name string) (domain.Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("action not found: %s", name)
	}
	return e, nil
}

// Guards lists registered guard names.
func (r *Registry) Guards() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.guards)
}

// Actions lists registered action names.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.actions)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
