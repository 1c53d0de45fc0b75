package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// Store implements ports.StatusStore in memory.
// Safe for concurrent use. Writes staged inside Atomic are applied under
// a single lock at commit, after their expectations are checked.
type Store struct {
	mu       sync.RWMutex
	statuses map[domain.InstanceKey]*domain.Record
	history  map[domain.InstanceKey][]*domain.Record
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		statuses: make(map[domain.InstanceKey]*domain.Record),
		history:  make(map[domain.InstanceKey][]*domain.Record),
	}
}

// FindStatus returns a copy of the current Status.
func (s *Store) FindStatus(ctx context.Context, key domain.InstanceKey) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.statuses[key]
	if !ok {
		return nil, domain.ErrStatusNotFound
	}
	return rec.Clone(), nil
}

// History returns copies of the instance's entries, oldest first.
func (s *Store) History(ctx context.Context, key domain.InstanceKey) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[key]
	out := make([]*domain.Record, len(entries))
	for i, rec := range entries {
		out[i] = rec.Clone()
	}
	return out, nil
}

// FindByState lists owners currently in state, ordered by type then id.
func (s *Store) FindByState(ctx context.Context, workflow string, state domain.StateID) ([]domain.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owners []domain.Owner
	for key, rec := range s.statuses {
		if key.Workflow == workflow && rec.To == state {
			owners = append(owners, key.Owner)
		}
	}
	slices.SortFunc(owners, func(a, b domain.Owner) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
	})
	return owners, nil
}

// Atomic stages the writes issued by fn and applies them together.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.StatusTx) error) error {
	tx := &stagedTx{}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, up := range tx.upserts {
		current, ok := s.statuses[up.rec.Key()]
		switch {
		case up.expected == "" && ok:
			return domain.ErrStaleStatus
		case up.expected != "" && (!ok || current.To != up.expected):
			return domain.ErrStaleStatus
		}
	}
	for _, up := range tx.upserts {
		s.statuses[up.rec.Key()] = up.rec
	}
	for _, rec := range tx.appends {
		key := rec.Key()
		s.history[key] = append(s.history[key], rec)
	}
	return nil
}

type stagedUpsert struct {
	rec      *domain.Record
	expected domain.StateID
}

type stagedTx struct {
	upserts []stagedUpsert
	appends []*domain.Record
}

func (t *stagedTx) UpsertStatus(ctx context.Context, rec *domain.Record, expected domain.StateID) error {
	t.upserts = append(t.upserts, stagedUpsert{rec: rec.Clone(), expected: expected})
	return nil
}

func (t *stagedTx) AppendHistory(ctx context.Context, rec *domain.Record) error {
	t.appends = append(t.appends, rec.Clone())
	return nil
}
