package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

var testKey = domain.InstanceKey{Owner: domain.Owner{ID: "42", Type: "customer"}, Workflow: "onboarding"}

func newRecord(to domain.StateID) *domain.Record {
	return &domain.Record{
		ID:         "rec-" + string(to),
		OwnerID:    testKey.Owner.ID,
		OwnerType:  testKey.Owner.Type,
		Workflow:   testKey.Workflow,
		Transition: "to_" + string(to),
		From:       "init",
		To:         to,
		Kind:       domain.KindTransition,
	}
}

func save(t *testing.T, store ports.StatusStore, rec *domain.Record, expected domain.StateID) {
	t.Helper()
	err := store.Atomic(context.Background(), func(ctx context.Context, tx ports.StatusTx) error {
		if err := tx.UpsertStatus(ctx, rec, expected); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, rec)
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}
