// Package entity provides plain identities implementing ports.Entity, for
// hosts whose records live outside the engine's reach and for the CLI and
// transport adapters.
package entity

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// Ref is an entity known only by its identity.
type Ref struct {
	ID        string
	Type      string
	Workflows []string
	// Missing marks a reference to a record that does not exist.
	Missing bool
}

func (r Ref) Exists() bool                  { return !r.Missing && r.ID != "" }
func (r Ref) Identity() (string, string)   { return r.ID, r.Type }
func (r Ref) RegisteredWorkflows() []string { return slices.Clone(r.Workflows) }

// Catalog maps owner types to the workflows registered for them and
// resolves identities into Refs. It implements ports.EntityResolver.
type Catalog struct {
	mu     sync.RWMutex
	types  map[string][]string
	exists func(ctx context.Context, ownerType, ownerID string) (bool, error)
}

type Option func(*Catalog)

// WithExistence plugs a lookup deciding whether an identity is durable.
// Without it every non-empty id exists.
func WithExistence(fn func(ctx context.Context, ownerType, ownerID string) (bool, error)) Option {
	return func(c *Catalog) {
		c.exists = fn
	}
}

// NewCatalog creates a catalog from owner type -> workflow types.
func NewCatalog(types map[string][]string, opts ...Option) *Catalog {
	c := &Catalog{types: make(map[string][]string, len(types))}
	for t, ws := range types {
		c.types[t] = slices.Clone(ws)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds workflows to an owner type.
func (c *Catalog) Register(ownerType string, workflows ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range workflows {
		if !slices.Contains(c.types[ownerType], w) {
			c.types[ownerType] = append(c.types[ownerType], w)
		}
	}
}

// Workflows lists the workflows registered for an owner type.
func (c *Catalog) Workflows(ownerType string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.types[ownerType])
}

// Resolve returns a Ref for the identity. Unknown owner types are an error.
func (c *Catalog) Resolve(ctx context.Context, ownerType, ownerID string) (ports.Entity, error) {
	c.mu.RLock()
	workflows, ok := c.types[ownerType]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown owner type %q: %w", ownerType, domain.ErrEntityNotFound)
	}

	ref := Ref{ID: ownerID, Type: ownerType, Workflows: slices.Clone(workflows)}
	if c.exists != nil {
		found, err := c.exists(ctx, ownerType, ownerID)
		if err != nil {
			return nil, err
		}
		ref.Missing = !found
	}
	return ref, nil
}
