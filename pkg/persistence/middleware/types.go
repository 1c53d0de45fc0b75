// Package middleware decorates a ports.StatusStore. Decorators only touch
// the free-form parts of a record (comments and metadata); states, keys and
// identities pass through untouched so conditional upserts keep working.
package middleware

import (
	"context"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// Middleware allows wrapping a StatusStore to add behavior.
type Middleware func(ports.StatusStore) ports.StatusStore

// Chain applies mws so that the first one is the outermost.
func Chain(store ports.StatusStore, mws ...Middleware) ports.StatusStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// rewriter transforms records on their way in and out of a store.
type rewriter struct {
	next    ports.StatusStore
	onWrite func(*domain.Record) error
	onRead  func(*domain.Record) error
}

func (r *rewriter) FindStatus(ctx context.Context, key domain.InstanceKey) (*domain.Record, error) {
	rec, err := r.next.FindStatus(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := r.read(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *rewriter) History(ctx context.Context, key domain.InstanceKey) ([]*domain.Record, error) {
	recs, err := r.next.History(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if err := r.read(rec); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (r *rewriter) FindByState(ctx context.Context, workflow string, state domain.StateID) ([]domain.Owner, error) {
	return r.next.FindByState(ctx, workflow, state)
}

func (r *rewriter) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.StatusTx) error) error {
	return r.next.Atomic(ctx, func(ctx context.Context, tx ports.StatusTx) error {
		return fn(ctx, &rewriterTx{next: tx, onWrite: r.onWrite})
	})
}

func (r *rewriter) read(rec *domain.Record) error {
	if r.onRead == nil {
		return nil
	}
	return r.onRead(rec)
}

type rewriterTx struct {
	next    ports.StatusTx
	onWrite func(*domain.Record) error
}

func (t *rewriterTx) UpsertStatus(ctx context.Context, rec *domain.Record, expected domain.StateID) error {
	out, err := t.write(rec)
	if err != nil {
		return err
	}
	return t.next.UpsertStatus(ctx, out, expected)
}

func (t *rewriterTx) AppendHistory(ctx context.Context, rec *domain.Record) error {
	out, err := t.write(rec)
	if err != nil {
		return err
	}
	return t.next.AppendHistory(ctx, out)
}

// write works on a deep copy; the caller keeps its record.
func (t *rewriterTx) write(rec *domain.Record) (*domain.Record, error) {
	out := rec.Clone()
	out.Metadata = deepCopyMap(rec.Metadata)
	if t.onWrite == nil {
		return out, nil
	}
	if err := t.onWrite(out); err != nil {
		return nil, err
	}
	return out, nil
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}
