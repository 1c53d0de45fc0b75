package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "flowra:"

// Store implements ports.StatusStore using Redis.
//
// Each Status is a JSON string, History is a list and every (workflow, state)
// pair keeps a set of "type|id" members for FindByState. Atomic commits with
// WATCH/MULTI so a concurrent writer on the same Status loses with
// domain.ErrStaleStatus.
type Store struct {
	client backend.UniversalClient
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix. Defaults to "flowra:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) statusKey(key domain.InstanceKey) string {
	return fmt.Sprintf("%sstatus:%s:%s:%s", s.prefix, key.Workflow, key.Owner.Type, key.Owner.ID)
}

func (s *Store) historyKey(key domain.InstanceKey) string {
	return fmt.Sprintf("%shistory:%s:%s:%s", s.prefix, key.Workflow, key.Owner.Type, key.Owner.ID)
}

func (s *Store) indexKey(workflow string, state domain.StateID) string {
	return fmt.Sprintf("%sstate:%s:%s", s.prefix, workflow, state)
}

func member(o domain.Owner) string {
	return o.Type + "|" + o.ID
}

// FindStatus loads the current Status.
func (s *Store) FindStatus(ctx context.Context, key domain.InstanceKey) (*domain.Record, error) {
	return readStatus(ctx, s.client, s.statusKey(key))
}

type getter interface {
	Get(ctx context.Context, key string) *backend.StringCmd
}

func readStatus(ctx context.Context, c getter, key string) (*domain.Record, error) {
	val, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrStatusNotFound
		}
		return nil, fmt.Errorf("failed to load status from redis: %w", err)
	}
	var rec domain.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &rec, nil
}

// History returns every entry, oldest first.
func (s *Store) History(ctx context.Context, key domain.InstanceKey) ([]*domain.Record, error) {
	vals, err := s.client.LRange(ctx, s.historyKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history from redis: %w", err)
	}
	out := make([]*domain.Record, 0, len(vals))
	for _, v := range vals {
		var rec domain.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// FindByState reads the state index, ordered by type then id.
func (s *Store) FindByState(ctx context.Context, workflow string, state domain.StateID) ([]domain.Owner, error) {
	members, err := s.client.SMembers(ctx, s.indexKey(workflow, state)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read state index: %w", err)
	}
	owners := make([]domain.Owner, 0, len(members))
	for _, m := range members {
		typ, id, ok := strings.Cut(m, "|")
		if !ok {
			continue
		}
		owners = append(owners, domain.Owner{ID: id, Type: typ})
	}
	slices.SortFunc(owners, func(a, b domain.Owner) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
	})
	return owners, nil
}

// Atomic stages the writes of fn and commits them in one MULTI/EXEC.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.StatusTx) error) error {
	staged := &stagedTx{}
	if err := fn(ctx, staged); err != nil {
		return err
	}

	watched := make([]string, 0, len(staged.upserts))
	for _, up := range staged.upserts {
		watched = append(watched, s.statusKey(up.rec.Key()))
	}

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		previous := make([]*domain.Record, len(staged.upserts))
		for i, up := range staged.upserts {
			current, err := readStatus(ctx, tx, s.statusKey(up.rec.Key()))
			switch {
			case errors.Is(err, domain.ErrStatusNotFound):
				if up.expected != "" {
					return domain.ErrStaleStatus
				}
			case err != nil:
				return err
			case up.expected == "" || current.To != up.expected:
				return domain.ErrStaleStatus
			default:
				previous[i] = current
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			for i, up := range staged.upserts {
				key := up.rec.Key()
				pipe.Set(ctx, s.statusKey(key), up.data, 0)
				if prev := previous[i]; prev != nil {
					pipe.SRem(ctx, s.indexKey(key.Workflow, prev.To), member(key.Owner))
				}
				pipe.SAdd(ctx, s.indexKey(key.Workflow, up.rec.To), member(key.Owner))
			}
			for _, app := range staged.appends {
				pipe.RPush(ctx, s.historyKey(app.rec.Key()), app.data)
			}
			return nil
		})
		return err
	}, watched...)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, backend.TxFailedErr), errors.Is(err, domain.ErrStaleStatus):
		return domain.ErrStaleStatus
	default:
		return fmt.Errorf("failed to commit to redis: %w", err)
	}
}

type stagedWrite struct {
	rec      *domain.Record
	data     []byte
	expected domain.StateID
}

type stagedTx struct {
	upserts []stagedWrite
	appends []stagedWrite
}

func (t *stagedTx) UpsertStatus(ctx context.Context, rec *domain.Record, expected domain.StateID) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	t.upserts = append(t.upserts, stagedWrite{rec: rec.Clone(), data: data, expected: expected})
	return nil
}

func (t *stagedTx) AppendHistory(ctx context.Context, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	t.appends = append(t.appends, stagedWrite{rec: rec.Clone(), data: data})
	return nil
}
