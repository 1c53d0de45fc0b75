package ports

import "context"

// Entity is the owning record a workflow instance is attached to.
type Entity interface {
	// Exists reports whether the entity has a durable identity.
	Exists() bool
	// Identity returns the entity's id and type tag.
	Identity() (id string, typeTag string)
	// RegisteredWorkflows lists the workflow types the entity's type declares.
	RegisteredWorkflows() []string
}

// EntityResolver looks entities up by identity. Transport adapters use it
// to turn request parameters into an Entity.
type EntityResolver interface {
	Resolve(ctx context.Context, ownerType, ownerID string) (Entity, error)
}
