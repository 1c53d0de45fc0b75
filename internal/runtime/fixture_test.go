package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowra/internal/runtime"
	"github.com/aretw0/flowra/pkg/adapters/memory"
	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/entity"
	"github.com/aretw0/flowra/pkg/registry"
)

type fixture struct {
	engine   *runtime.Engine
	store    *memory.Store
	registry *registry.Registry
	cache    *definition.Cache
}

// onboarding: init -> owner_info_entered -> verifying (kyc subflow) -> verified | declined
// kyc:        pending -> collecting -> passed | failed, failed -> collecting
func onboarding(mutate func(*domain.Schema)) definition.Workflow {
	return definition.New("onboarding", func() (*domain.Schema, error) {
		s := &domain.Schema{
			States: domain.NewStateSet("init", "owner_info_entered", "verifying", "verified", "declined"),
			Transitions: []*domain.Transition{
				domain.NewTransition("filling_owner_data", "init", "owner_info_entered"),
				domain.NewTransition("verify", "owner_info_entered", "verifying"),
				domain.NewTransition("approve", "verifying", "verified"),
				domain.NewTransition("decline", "verifying", "declined"),
				domain.NewTransition("escalate", "verifying", "declined"),
				domain.NewTransition("retry", "declined", "verifying"),
			},
			Subflows: []domain.Subflow{{
				Key:      "kyc",
				State:    "verifying",
				Workflow: "kyc",
				Start:    "begin",
				Exits:    map[domain.StateID]string{"passed": "approve", "failed": "decline"},
			}},
		}
		if mutate != nil {
			mutate(s)
		}
		return s, nil
	})
}

func kyc() definition.Workflow {
	return definition.New("kyc", func() (*domain.Schema, error) {
		return &domain.Schema{
			States: domain.NewStateSet("pending", "collecting", "passed", "failed"),
			Transitions: []*domain.Transition{
				domain.NewTransition("begin", "pending", "collecting"),
				domain.NewTransition("pass", "collecting", "passed"),
				domain.NewTransition("fail", "collecting", "failed"),
			},
		}, nil
	})
}

func newFixture(t *testing.T, mutate func(*domain.Schema), opts ...runtime.Option) *fixture {
	t.Helper()
	reg := registry.NewRegistry()
	cache := definition.NewCache(definition.NewRegistry(onboarding(mutate), kyc()))
	store := memory.NewStore()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	opts = append([]runtime.Option{
		runtime.WithResolver(reg),
		runtime.WithClock(func() time.Time { return clock }),
	}, opts...)
	return &fixture{
		engine:   runtime.NewEngine(cache, store, opts...),
		store:    store,
		registry: reg,
		cache:    cache,
	}
}

func customer(id string) entity.Ref {
	return entity.Ref{ID: id, Type: "customer", Workflows: []string{"onboarding"}}
}

func (f *fixture) history(t *testing.T, id, workflow string) []*domain.Record {
	t.Helper()
	h, err := f.store.History(context.Background(), domain.InstanceKey{
		Owner:    domain.Owner{ID: id, Type: "customer"},
		Workflow: workflow,
	})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return h
}
