package definition

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/flowra/pkg/domain"
)

// Workflow is a workflow type together with its schema-producing function.
type Workflow interface {
	Type() string
	Schema() (*domain.Schema, error)
}

type schemaFunc struct {
	typ string
	fn  func() (*domain.Schema, error)
}

func (s schemaFunc) Type() string                    { return s.typ }
func (s schemaFunc) Schema() (*domain.Schema, error) { return s.fn() }

// New adapts a function to Workflow.
func New(typ string, fn func() (*domain.Schema, error)) Workflow {
	return schemaFunc{typ: typ, fn: fn}
}

// Registry maps workflow types to their Workflow.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
}

// NewRegistry creates a registry holding ws.
// It panics on duplicate types, which are programming errors.
func NewRegistry(ws ...Workflow) *Registry {
	r := &Registry{workflows: make(map[string]Workflow)}
	for _, w := range ws {
		if err := r.Register(w); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a workflow type. Types must be unique.
func (r *Registry) Register(w Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w.Type() == "" {
		return &domain.DefinitionError{Reason: "workflow type is empty"}
	}
	if _, ok := r.workflows[w.Type()]; ok {
		return &domain.DefinitionError{Workflow: w.Type(), Reason: "workflow type registered twice"}
	}
	r.workflows[w.Type()] = w
	return nil
}

// Lookup returns the workflow registered under typ.
func (r *Registry) Lookup(typ string) (Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[typ]
	return w, ok
}

// Types lists the registered types in order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.workflows))
	for t := range r.workflows {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func (r *Registry) mustLookup(typ string) (Workflow, error) {
	w, ok := r.Lookup(typ)
	if !ok {
		return nil, &domain.DefinitionError{Workflow: typ, Reason: fmt.Sprintf("workflow type %q is not registered", typ)}
	}
	return w, nil
}
