package ports

import (
	"context"

	"github.com/aretw0/flowra/pkg/domain"
)

// StatusStore persists the current Status of each (entity, workflow) pair
// and the append-only History of applied transitions.
type StatusStore interface {
	// FindStatus returns the current Status.
	// Returns domain.ErrStatusNotFound if none exists yet.
	FindStatus(ctx context.Context, key domain.InstanceKey) (*domain.Record, error)

	// History returns every entry for the instance, oldest first.
	History(ctx context.Context, key domain.InstanceKey) ([]*domain.Record, error)

	// FindByState lists the owners whose current Status in workflow is state.
	FindByState(ctx context.Context, workflow string, state domain.StateID) ([]domain.Owner, error)

	// Atomic runs fn inside one unit of work. Either every write issued
	// through tx is persisted or none is.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx StatusTx) error) error
}

// StatusTx is the write side of a StatusStore unit of work.
type StatusTx interface {
	// UpsertStatus creates or replaces the Status for rec.Key().
	// expected is the state the caller validated against; an empty value
	// means no Status may exist yet. A mismatch fails the unit of work
	// with domain.ErrStaleStatus.
	UpsertStatus(ctx context.Context, rec *domain.Record, expected domain.StateID) error

	// AppendHistory appends an entry to the instance's history.
	AppendHistory(ctx context.Context, rec *domain.Record) error
}
