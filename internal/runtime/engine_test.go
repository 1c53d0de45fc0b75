package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/flowra/internal/runtime"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/entity"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Apply_FromStateGate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inst := f.engine.For(customer("1"), "onboarding")

	state, err := inst.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("init"), state)

	res, err := inst.Apply(ctx, "filling_owner_data", runtime.WithAppliedBy("alice"), runtime.WithComment("first"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("owner_info_entered"), res.Status.To)
	assert.Equal(t, domain.StateID("init"), res.Status.From)
	assert.Equal(t, "alice", res.Status.AppliedBy)
	assert.NoError(t, res.Err())

	_, err = inst.Apply(ctx, "filling_owner_data")
	var notApplicable *domain.TransitionNotApplicableError
	require.ErrorAs(t, err, &notApplicable)
	assert.Equal(t, domain.StateID("owner_info_entered"), notApplicable.Current)
	assert.Equal(t, domain.StateID("init"), notApplicable.Required)
	assert.Equal(t, "filling_owner_data", notApplicable.Transition)

	history := f.history(t, "1", "onboarding")
	require.Len(t, history, 1, "a rejected transition writes nothing")
	assert.True(t, history[0].SameTransition(res.Status))
	assert.Equal(t, []string{"first"}, history[0].Comments)
}

func TestEngine_Apply_ValidationOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		entity   ports.Entity
		workflow string
		key      string
		want     error
	}{
		{"missing entity wins", entity.Ref{ID: "1", Type: "customer", Missing: true}, "ghost", "ghost", domain.ErrEntityNotFound},
		{"unregistered workflow before unknown key", entity.Ref{ID: "1", Type: "customer", Workflows: []string{"billing"}}, "onboarding", "ghost", domain.ErrWorkflowNotRegistered},
		{"unknown key", customer("1"), "onboarding", "ghost", domain.ErrTransitionNotRegistered},
		{"nil entity", nil, "onboarding", "verify", domain.ErrEntityNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.For(tc.entity, tc.workflow).Apply(ctx, tc.key)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEngine_Apply_FirstTransitionTakesItsOwnSource(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.engine.For(customer("1"), "onboarding").Apply(context.Background(), "verify")
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("owner_info_entered"), res.Applied.From)
}

func TestEngine_Guards(t *testing.T) {
	ctx := context.Background()
	var calls []string
	guard := func(name string, d domain.Decision) domain.Guard {
		return domain.GuardFunc(func(context.Context, *domain.TransitionContext) (domain.Decision, error) {
			calls = append(calls, name)
			return d, nil
		})
	}

	t.Run("ShortCircuit", func(t *testing.T) {
		calls = nil
		f := newFixture(t, func(s *domain.Schema) {
			s.Transitions[0].Guards = []domain.Guard{
				guard("first", domain.Allow()),
				guard("second", domain.Deny("owner data incomplete", "incomplete")),
				guard("third", domain.Allow()),
			}
		})
		_, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "filling_owner_data")

		var denied *domain.GuardDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, "incomplete", denied.Decision.Code)
		assert.Equal(t, "owner data incomplete", denied.Decision.Message)
		assert.Equal(t, []string{"first", "second"}, calls)
		assert.Empty(t, f.history(t, "1", "onboarding"))
	})

	t.Run("FaultsBecomeExceptionDenials", func(t *testing.T) {
		faulty := map[string]domain.Guard{
			"error": domain.GuardFunc(func(context.Context, *domain.TransitionContext) (domain.Decision, error) {
				return domain.Decision{}, errors.New("lookup failed")
			}),
			"panic": domain.Predicate(func(context.Context, *domain.TransitionContext) bool {
				panic("nil map")
			}),
			"unresolved": domain.GuardRef("ghost"),
		}
		for name, g := range faulty {
			t.Run(name, func(t *testing.T) {
				f := newFixture(t, func(s *domain.Schema) { s.Transitions[0].Guards = []domain.Guard{g} })
				_, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "filling_owner_data")

				var denied *domain.GuardDeniedError
				require.ErrorAs(t, err, &denied)
				assert.Equal(t, runtime.CodeException, denied.Decision.Code)
			})
		}
	})

	t.Run("NamedGuardSeesContext", func(t *testing.T) {
		f := newFixture(t, func(s *domain.Schema) {
			s.Transitions[0].Guards = []domain.Guard{domain.GuardRef("is_staff")}
		})
		f.registry.RegisterPredicate("is_staff", func(tc domain.TransitionContext) bool {
			return tc.AppliedBy == "staff" && tc.Current == "init"
		})
		inst := f.engine.For(customer("1"), "onboarding")

		_, err := inst.Apply(ctx, "filling_owner_data", runtime.WithAppliedBy("guest"))
		assert.ErrorIs(t, err, domain.ErrGuardDenied)
		_, err = inst.Apply(ctx, "filling_owner_data", runtime.WithAppliedBy("staff"))
		assert.NoError(t, err)
	})
}

type recordingDeferrer struct {
	mu      sync.Mutex
	actions []string
}

func (d *recordingDeferrer) Enqueue(_ context.Context, a domain.Action, _ *domain.TransitionContext) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, a.Label())
	return nil
}

func TestEngine_Actions(t *testing.T) {
	ctx := context.Background()

	t.Run("RunAfterCommitAndStopAtFirstFault", func(t *testing.T) {
		var seen []domain.StateID
		var f *fixture
		observe := domain.ActionFunc(func(ctx context.Context, tc *domain.TransitionContext) error {
			current, _ := f.engine.For(customer("1"), "onboarding").CurrentState(ctx)
			seen = append(seen, current, tc.Status.To)
			return nil
		})
		fail := domain.ActionFunc(func(context.Context, *domain.TransitionContext) error {
			return errors.New("mail server down")
		})
		never := domain.ActionFunc(func(context.Context, *domain.TransitionContext) error {
			t.Error("actions after a fault must not run")
			return nil
		})
		f = newFixture(t, func(s *domain.Schema) {
			s.Transitions[0].Actions = []domain.Action{observe, fail, never}
		})

		res, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "filling_owner_data")
		require.NoError(t, err, "action faults do not fail the transition")
		assert.Equal(t, domain.StateID("owner_info_entered"), res.Status.To)
		assert.Equal(t, []domain.StateID{"owner_info_entered", "owner_info_entered"}, seen)

		var aerr *domain.ActionExecutionError
		require.ErrorAs(t, res.ActionErr, &aerr)
		assert.Equal(t, 1, aerr.Index)
		assert.ErrorIs(t, res.Err(), domain.ErrActionExecution)
	})

	t.Run("PanicIsReported", func(t *testing.T) {
		f := newFixture(t, func(s *domain.Schema) {
			s.Transitions[0].Actions = []domain.Action{domain.ActionFunc(func(context.Context, *domain.TransitionContext) error {
				panic("boom")
			})}
		})
		res, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "filling_owner_data")
		require.NoError(t, err)
		assert.ErrorIs(t, res.ActionErr, domain.ErrActionExecution)
	})

	t.Run("DeferredGoToDeferrer", func(t *testing.T) {
		deferrer := &recordingDeferrer{}
		inline := 0
		f := newFixture(t, func(s *domain.Schema) {
			s.Transitions[0].Actions = []domain.Action{
				domain.Defer(domain.ActionRef("send_welcome")),
				domain.ActionRef("count"),
			}
		}, runtime.WithDeferrer(deferrer))
		f.registry.RegisterAction("send_welcome", domain.ExecutorFunc(func(context.Context, *domain.TransitionContext) error {
			t.Error("deferred action ran inline")
			return nil
		}))
		f.registry.RegisterAction("count", domain.ExecutorFunc(func(context.Context, *domain.TransitionContext) error {
			inline++
			return nil
		}))

		res, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "filling_owner_data")
		require.NoError(t, err)
		assert.NoError(t, res.ActionErr)
		assert.Equal(t, []string{"send_welcome"}, deferrer.actions)
		assert.Equal(t, 1, inline)
	})

	t.Run("DeferredWithoutDeferrer", func(t *testing.T) {
		f := newFixture(t, func(s *domain.Schema) {
			s.Transitions[0].Actions = []domain.Action{domain.Defer(domain.ActionFunc(func(context.Context, *domain.TransitionContext) error {
				return nil
			}))}
		})
		res, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "filling_owner_data")
		require.NoError(t, err)
		assert.ErrorIs(t, res.ActionErr, runtime.ErrNoDeferrer)
	})
}

func TestEngine_JumpTo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inst := f.engine.For(customer("1"), "onboarding")

	_, err := inst.JumpTo(ctx, "verified", "", "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidJump, "jump cannot be the first transition")

	_, err = inst.Apply(ctx, "filling_owner_data")
	require.NoError(t, err)

	_, err = inst.JumpTo(ctx, "ghost", "", "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidJump)

	res, err := inst.JumpTo(ctx, "declined", "", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("declined"), res.Status.To)
	assert.Equal(t, domain.KindJump, res.Status.Kind)
	assert.Equal(t, domain.DefaultJumpKey, res.Status.Transition)

	history := f.history(t, "1", "onboarding")
	require.Len(t, history, 2)
	assert.Equal(t, domain.KindTransition, history[0].Kind)
	assert.Equal(t, domain.KindJump, history[1].Kind)
	assert.Equal(t, "admin", history[1].AppliedBy)
	assert.Equal(t, domain.StateID("owner_info_entered"), history[1].From)

	_, err = inst.JumpTo(ctx, "init", "rollback", "admin")
	require.NoError(t, err)
	status, err := inst.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rollback", status.Transition)
}

func TestEngine_ConcurrentApply_SingleWinner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "filling_owner_data")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrTransitionNotApplicable)
	}
	assert.Equal(t, 1, won)
	assert.Len(t, f.history(t, "1", "onboarding"), 1)
}

type brokenStore struct {
	ports.StatusStore
}

func (brokenStore) FindStatus(context.Context, domain.InstanceKey) (*domain.Record, error) {
	return nil, domain.ErrStatusNotFound
}

func (brokenStore) Atomic(context.Context, func(context.Context, ports.StatusTx) error) error {
	return errors.New("connection refused")
}

func TestEngine_PersistenceFault(t *testing.T) {
	f := newFixture(t, nil)
	engine := runtime.NewEngine(f.cache, brokenStore{})

	_, err := engine.For(customer("1"), "onboarding").Apply(context.Background(), "filling_owner_data")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.EqualError(t, pe.Err, "connection refused")
}

func TestEngine_Hooks(t *testing.T) {
	var applied, jumped, denied, failed int
	hooks := domain.LifecycleHooks{
		OnTransitionApplied: func(_ context.Context, e *domain.TransitionEvent) { applied++ },
		OnJump:              func(_ context.Context, e *domain.TransitionEvent) { jumped++ },
		OnGuardDenied:       func(_ context.Context, e *domain.GuardEvent) { denied++ },
		OnActionFailed:      func(_ context.Context, e *domain.ActionEvent) { failed++ },
	}
	f := newFixture(t, func(s *domain.Schema) {
		s.Transitions[0].Actions = []domain.Action{domain.ActionRef("ghost")}
		s.Transitions[1].Guards = []domain.Guard{domain.Predicate(func(context.Context, *domain.TransitionContext) bool { return false })}
	}, runtime.WithHooks(hooks))
	ctx := context.Background()
	inst := f.engine.For(customer("1"), "onboarding")

	_, err := inst.Apply(ctx, "filling_owner_data")
	require.NoError(t, err)
	_, err = inst.Apply(ctx, "verify")
	require.Error(t, err)
	_, err = inst.JumpTo(ctx, "init", "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, jumped)
	assert.Equal(t, 1, denied)
	assert.Equal(t, 1, failed)
}

func TestEngine_Queries(t *testing.T) {
	f := newFixture(t, func(s *domain.Schema) {
		s.States.States = append(s.States.States, "closed")
		s.Groups = []domain.StateGroup{domain.Group("closed", "verified", "declined")}
	})
	ctx := context.Background()
	inst := f.engine.For(customer("1"), "onboarding")

	_, err := inst.Status(ctx)
	assert.ErrorIs(t, err, domain.ErrStatusNotFound)

	_, err = inst.Apply(ctx, "filling_owner_data")
	require.NoError(t, err)
	_, err = inst.JumpTo(ctx, "declined", "", "admin")
	require.NoError(t, err)

	in, err := inst.IsIn(ctx, "closed")
	require.NoError(t, err)
	assert.True(t, in)

	available, err := inst.Available(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "retry", available[0].Key)

	transitions, err := inst.Transitions(ctx)
	require.NoError(t, err)
	assert.Len(t, transitions, 6)

	states, err := inst.States(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("init"), states.Initial)

	groups, err := inst.StateGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.StateID{"verified", "declined"}, groups["closed"])

	history, err := inst.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	owners, err := f.engine.OwnersIn(ctx, "onboarding", "declined")
	require.NoError(t, err)
	assert.Equal(t, []domain.Owner{{ID: "1", Type: "customer"}}, owners)

	_, err = f.engine.OwnersIn(ctx, "onboarding", "ghost")
	assert.ErrorIs(t, err, domain.ErrDefinition)
}
