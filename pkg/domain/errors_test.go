package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_Classes(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		class error
	}{
		{"definition", &domain.DefinitionError{Workflow: "w", Reason: "no states"}, domain.ErrDefinition},
		{"entity", &domain.EntityNotFoundError{OwnerType: "order"}, domain.ErrEntityNotFound},
		{"workflow", &domain.WorkflowNotRegisteredError{Workflow: "w", OwnerType: "order"}, domain.ErrWorkflowNotRegistered},
		{"transition", &domain.TransitionNotRegisteredError{Workflow: "w", Transition: "t"}, domain.ErrTransitionNotRegistered},
		{"applicable", &domain.TransitionNotApplicableError{Transition: "t", Current: "a", Required: "b"}, domain.ErrTransitionNotApplicable},
		{"guard", &domain.GuardDeniedError{Transition: "t", Decision: domain.Deny("no", "x")}, domain.ErrGuardDenied},
		{"jump", &domain.InvalidJumpError{Target: "x"}, domain.ErrInvalidJump},
		{"subflow", &domain.SubflowBlockedError{Transition: "t"}, domain.ErrSubflowBlocked},
		{"target", &domain.IncompatibleTargetError{Expected: "a", Actual: "b"}, domain.ErrIncompatibleTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.class)
		})
	}
}

func TestPersistenceError_UnwrapsBoth(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&domain.PersistenceError{Op: "upsert status", Err: cause})

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, cause)

	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "upsert status", pe.Op)
}

func TestTransitionNotApplicableError_Message(t *testing.T) {
	err := &domain.TransitionNotApplicableError{
		Transition: "filling_owner_data",
		Current:    "owner_info_entered",
		Required:   "init",
	}
	assert.Equal(t,
		"applying transition (filling_owner_data) while current state is (owner_info_entered) is not applicable, state must be (init)",
		err.Error())
}
