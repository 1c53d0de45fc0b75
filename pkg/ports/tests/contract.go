package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStatusStoreContract verifies that an adapter complies with ports.StatusStore.
// newStore must return an empty store for every call.
func RunStatusStoreContract(t *testing.T, newStore func(t *testing.T) ports.StatusStore) {
	t.Helper()
	ctx := context.Background()
	owner := domain.Owner{ID: "42", Type: "order"}
	key := domain.InstanceKey{Owner: owner, Workflow: "onboarding"}

	record := func(transition string, from, to domain.StateID) *domain.Record {
		return &domain.Record{
			ID:         transition + "-" + string(to),
			OwnerID:    owner.ID,
			OwnerType:  owner.Type,
			Workflow:   key.Workflow,
			Transition: transition,
			From:       from,
			To:         to,
			Kind:       domain.KindTransition,
			AppliedBy:  "tester",
			Comments:   []string{"contract"},
			CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	write := func(store ports.StatusStore, rec *domain.Record, expected domain.StateID) error {
		return store.Atomic(ctx, func(ctx context.Context, tx ports.StatusTx) error {
			if err := tx.UpsertStatus(ctx, rec, expected); err != nil {
				return err
			}
			return tx.AppendHistory(ctx, rec)
		})
	}

	t.Run("FindStatus_NotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindStatus(ctx, key)
		assert.ErrorIs(t, err, domain.ErrStatusNotFound)

		history, err := store.History(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("Atomic_WritesStatusAndHistory", func(t *testing.T) {
		store := newStore(t)
		rec := record("filling_owner_data", "init", "owner_info_entered")
		require.NoError(t, write(store, rec, ""))

		status, err := store.FindStatus(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("owner_info_entered"), status.To)
		assert.True(t, status.SameTransition(rec))

		history, err := store.History(ctx, key)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].SameTransition(status))
	})

	t.Run("Upsert_KeepsSingleStatus", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, write(store, record("a", "s0", "s1"), ""))
		require.NoError(t, write(store, record("b", "s1", "s2"), "s1"))
		require.NoError(t, write(store, record("c", "s2", "s3"), "s2"))

		status, err := store.FindStatus(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("s3"), status.To)

		history, err := store.History(ctx, key)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{history[0].Transition, history[1].Transition, history[2].Transition})
	})

	t.Run("Upsert_StaleExpectation", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, write(store, record("a", "s0", "s1"), ""))

		err := write(store, record("a", "s0", "s1"), "")
		assert.ErrorIs(t, err, domain.ErrStaleStatus, "creating over an existing status")

		err = write(store, record("b", "s5", "s6"), "s5")
		assert.ErrorIs(t, err, domain.ErrStaleStatus, "wrong expected state")

		history, err := store.History(ctx, key)
		require.NoError(t, err)
		assert.Len(t, history, 1, "losing writes must not append history")
	})

	t.Run("Atomic_RollsBackOnError", func(t *testing.T) {
		store := newStore(t)
		boom := errors.New("boom")
		err := store.Atomic(ctx, func(ctx context.Context, tx ports.StatusTx) error {
			rec := record("a", "s0", "s1")
			if err := tx.UpsertStatus(ctx, rec, ""); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, rec); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = store.FindStatus(ctx, key)
		assert.ErrorIs(t, err, domain.ErrStatusNotFound)
		history, err := store.History(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("Isolation", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, write(store, record("a", "s0", "s1"), ""))

		other := domain.InstanceKey{Owner: owner, Workflow: "billing"}
		_, err := store.FindStatus(ctx, other)
		assert.ErrorIs(t, err, domain.ErrStatusNotFound)

		otherOwner := domain.InstanceKey{Owner: domain.Owner{ID: "43", Type: "order"}, Workflow: key.Workflow}
		_, err = store.FindStatus(ctx, otherOwner)
		assert.ErrorIs(t, err, domain.ErrStatusNotFound)
	})

	t.Run("FindByState", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, write(store, record("a", "s0", "s1"), ""))

		second := record("a", "s0", "s1")
		second.OwnerID = "43"
		require.NoError(t, write(store, second, ""))
		require.NoError(t, write(store, func() *domain.Record {
			r := record("b", "s1", "s2")
			r.OwnerID = "43"
			return r
		}(), "s1"))

		owners, err := store.FindByState(ctx, key.Workflow, "s1")
		require.NoError(t, err)
		assert.Equal(t, []domain.Owner{owner}, owners)

		owners, err = store.FindByState(ctx, key.Workflow, "s2")
		require.NoError(t, err)
		assert.Equal(t, []domain.Owner{{ID: "43", Type: "order"}}, owners)
	})

	t.Run("ParentRef_RoundTrip", func(t *testing.T) {
		store := newStore(t)
		rec := record("begin", "pending", "collecting")
		rec.Parent = &domain.ParentRef{Workflow: "onboarding", State: "verifying", Subflow: "kyc", StartTransition: "begin"}
		rec.Metadata = map[string]any{"channel": "web"}
		require.NoError(t, write(store, rec, ""))

		status, err := store.FindStatus(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, status.Parent)
		assert.Equal(t, *rec.Parent, *status.Parent)
		assert.Equal(t, "web", status.Metadata["channel"])
	})

	t.Run("ConcurrentCreate_SingleWinner", func(t *testing.T) {
		store := newStore(t)
		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- write(store, record("a", "s0", "s1"), "")
			}()
		}
		wg.Wait()
		close(errs)

		var ok, stale int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrStaleStatus):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, writers-1, stale)

		history, err := store.History(ctx, key)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}
