package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("")
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg), "duplicate registration")

	m.Hooks().OnTransitionApplied(context.Background(), &domain.TransitionEvent{Workflow: "w", Transition: "t", Kind: domain.KindTransition})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["flowra_transitions_total"])
	assert.True(t, names["flowra_transition_duration_seconds"])
}

func TestMetrics_Hooks(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics("test")
	hooks := m.Hooks()
	owner := domain.Owner{Type: "users", ID: "1"}

	hooks.OnTransitionApplied(ctx, &domain.TransitionEvent{Owner: owner, Workflow: "onboarding", Transition: "submit", Kind: domain.KindTransition, Duration: 10 * time.Millisecond})
	hooks.OnTransitionApplied(ctx, &domain.TransitionEvent{Owner: owner, Workflow: "onboarding", Transition: "submit", Kind: domain.KindTransition})
	hooks.OnJump(ctx, &domain.TransitionEvent{Owner: owner, Workflow: "onboarding", Transition: "reset", Kind: domain.KindJump})
	hooks.OnGuardDenied(ctx, &domain.GuardEvent{Owner: owner, Workflow: "onboarding", Transition: "approve", Guard: "is_admin"})
	hooks.OnActionFailed(ctx, &domain.ActionEvent{Owner: owner, Workflow: "onboarding", Transition: "submit", Action: "notify", Err: errors.New("smtp")})
	hooks.OnSubflowStarted(ctx, &domain.SubflowEvent{Owner: owner, Workflow: "onboarding", Inner: "kyc"})
	hooks.OnSubflowExited(ctx, &domain.SubflowEvent{Owner: owner, Workflow: "onboarding", Inner: "kyc", State: "verified"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("onboarding", "submit", "transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("onboarding", "reset", "jump")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDenials.WithLabelValues("onboarding", "approve", "is_admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionFailures.WithLabelValues("onboarding", "submit", "notify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubflowsStarted.WithLabelValues("onboarding", "kyc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubflowsExited.WithLabelValues("onboarding", "kyc", "verified")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Duration))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := LogHooks(logging.NewWithWriter(&buf, -4))

	hooks.OnActionFailed(context.Background(), &domain.ActionEvent{
		Owner:      domain.Owner{Type: "users", ID: "7"},
		Workflow:   "onboarding",
		Transition: "submit",
		Action:     "notify",
		Err:        errors.New("smtp down"),
	})
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "owner=users:7")
	assert.Contains(t, out, `err="smtp down"`)

	buf.Reset()
	hooks.OnGuardDenied(context.Background(), &domain.GuardEvent{
		Workflow: "onboarding",
		Guard:    "is_admin",
		Decision: domain.Deny("admins only", "forbidden"),
	})
	assert.Contains(t, buf.String(), `message="admins only"`)
}
