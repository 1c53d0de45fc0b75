package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowra/internal/runtime"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transitionsOf(records []*domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Transition
	}
	return out
}

func TestSubflow_RoundTrip(t *testing.T) {
	var started, exited []*domain.SubflowEvent
	f := newFixture(t, nil, runtime.WithHooks(domain.LifecycleHooks{
		OnSubflowStarted: func(_ context.Context, e *domain.SubflowEvent) { started = append(started, e) },
		OnSubflowExited:  func(_ context.Context, e *domain.SubflowEvent) { exited = append(exited, e) },
	}))
	ctx := context.Background()
	outer := f.engine.For(customer("1"), "onboarding")
	inner := f.engine.For(customer("1"), "kyc")

	_, err := outer.Apply(ctx, "filling_owner_data")
	require.NoError(t, err)
	res, err := outer.Apply(ctx, "verify", runtime.WithAppliedBy("alice"))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, domain.StateID("verifying"), res.Status.To)

	child, err := inner.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("collecting"), child.To)
	assert.Equal(t, "alice", child.AppliedBy)
	require.NotNil(t, child.Parent)
	assert.Equal(t, domain.ParentRef{
		Workflow:        "onboarding",
		State:           "verifying",
		Subflow:         "kyc",
		StartTransition: "begin",
		StatusID:        res.Applied.ID,
	}, *child.Parent)
	require.Len(t, started, 1)
	assert.Equal(t, "begin", started[0].Transition)

	for _, key := range []string{"approve", "decline", "escalate"} {
		_, err = outer.Apply(ctx, key)
		var blocked *domain.SubflowBlockedError
		require.ErrorAs(t, err, &blocked, key)
		assert.Equal(t, domain.StateID("collecting"), blocked.Inner)
	}

	res, err = inner.Apply(ctx, "pass", runtime.WithAppliedBy("bob"))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, domain.StateID("passed"), res.Status.To)
	assert.NotNil(t, res.Status.Parent, "parent reference is carried forward")

	state, err := outer.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("verified"), state)
	require.Len(t, exited, 1)
	assert.Equal(t, "approve", exited[0].Transition)

	assert.Equal(t, []string{"filling_owner_data", "verify", "approve"}, transitionsOf(f.history(t, "1", "onboarding")))
	assert.Equal(t, []string{"begin", "pass"}, transitionsOf(f.history(t, "1", "kyc")))
	assert.Equal(t, "bob", f.history(t, "1", "onboarding")[2].AppliedBy)
}

func TestSubflow_ExitOnlyAllowsMappedTransition(t *testing.T) {
	f := newFixture(t, func(s *domain.Schema) {
		// Hold the outer workflow at the bound state when the inner run fails.
		s.Transitions[3].Guards = []domain.Guard{domain.GuardRef("manual_review")}
	})
	allow := false
	f.registry.RegisterPredicate("manual_review", func(domain.TransitionContext) bool { return allow })
	ctx := context.Background()
	outer := f.engine.For(customer("1"), "onboarding")
	inner := f.engine.For(customer("1"), "kyc")

	_, err := outer.Apply(ctx, "filling_owner_data")
	require.NoError(t, err)
	_, err = outer.Apply(ctx, "verify")
	require.NoError(t, err)

	res, err := inner.Apply(ctx, "fail")
	require.NoError(t, err, "the inner transition itself is committed")
	assert.ErrorIs(t, res.SubflowErr, domain.ErrGuardDenied)

	state, err := outer.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("verifying"), state)

	for _, key := range []string{"approve", "escalate"} {
		_, err = outer.Apply(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSubflowBlocked, key)
	}

	allow = true
	res, err = outer.Apply(ctx, "decline")
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("declined"), res.Status.To)
}

func TestSubflow_ReentryRestartsInnerRun(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	outer := f.engine.For(customer("1"), "onboarding")
	inner := f.engine.For(customer("1"), "kyc")

	_, err := outer.Apply(ctx, "verify")
	require.NoError(t, err)
	_, err = inner.Apply(ctx, "fail")
	require.NoError(t, err)

	state, err := outer.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StateID("declined"), state)

	res, err := outer.Apply(ctx, "retry")
	require.NoError(t, err)
	require.NoError(t, res.Err())

	child, err := inner.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("collecting"), child.To)
	assert.Equal(t, res.Applied.ID, child.Parent.StatusID)

	history := f.history(t, "1", "kyc")
	assert.Equal(t, []string{"begin", "fail", runtime.RestartJumpKey, "begin"}, transitionsOf(history))
	assert.Equal(t, domain.KindJump, history[2].Kind)

	_, err = outer.Apply(ctx, "approve")
	assert.ErrorIs(t, err, domain.ErrSubflowBlocked, "the new run is open")
}

func TestSubflow_StartLandingOnExitResumesImmediately(t *testing.T) {
	f := newFixture(t, func(s *domain.Schema) { s.Subflows[0].Start = "pass" })
	ctx := context.Background()

	res, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "verify")
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, domain.StateID("verifying"), res.Applied.To)
	assert.Equal(t, domain.StateID("verified"), res.Status.To)
}

func TestSubflow_InvalidBindingIsDefinitionError(t *testing.T) {
	f := newFixture(t, func(s *domain.Schema) {
		s.Subflows[0].Exits = map[domain.StateID]string{"passed": "filling_owner_data"}
	})
	ctx := context.Background()

	res, err := f.engine.For(customer("1"), "onboarding").Apply(ctx, "verify")
	require.NoError(t, err)
	assert.ErrorIs(t, res.SubflowErr, domain.ErrDefinition)

	_, err = f.engine.For(customer("1"), "onboarding").Apply(ctx, "approve")
	assert.ErrorIs(t, err, domain.ErrDefinition)
}

func TestSubflow_SelfLoopIsBounded(t *testing.T) {
	f := newFixture(t, func(s *domain.Schema) {
		s.Transitions = append(s.Transitions, domain.NewTransition("again", "verifying", "verifying"))
		s.Subflows[0].Start = "pass"
		s.Subflows[0].Exits = map[domain.StateID]string{"passed": "again"}
	}, runtime.WithMaxSubflowDepth(4))

	res, err := f.engine.For(customer("1"), "onboarding").Apply(context.Background(), "verify")
	require.NoError(t, err)
	assert.ErrorIs(t, res.SubflowErr, domain.ErrDefinition)
}
