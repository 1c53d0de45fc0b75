package domain

import (
	"context"
	"time"
)

// TransitionEvent describes a committed transition or jump.
type TransitionEvent struct {
	Timestamp  time.Time
	Owner      Owner
	Workflow   string
	Transition string
	From       StateID
	To         StateID
	Kind       Kind
	Duration   time.Duration
}

// GuardEvent describes a guard denial.
type GuardEvent struct {
	Owner      Owner
	Workflow   string
	Transition string
	Guard      string
	Decision   Decision
}

// ActionEvent describes an action fault.
type ActionEvent struct {
	Owner      Owner
	Workflow   string
	Transition string
	Action     string
	Err        error
}

// SubflowEvent describes a hand-off between an outer and an inner workflow.
type SubflowEvent struct {
	Owner      Owner
	Workflow   string // outer
	Subflow    string
	Inner      string
	State      StateID // outer bound state on start, inner exit state on exit
	Transition string  // inner start transition on start, outer resume transition on exit
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransitionApplied func(context.Context, *TransitionEvent)
	OnJump              func(context.Context, *TransitionEvent)
	OnGuardDenied       func(context.Context, *GuardEvent)
	OnActionFailed      func(context.Context, *ActionEvent)
	OnSubflowStarted    func(context.Context, *SubflowEvent)
	OnSubflowExited     func(context.Context, *SubflowEvent)
}

// Merge returns hooks that call h first and then other for every event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransitionApplied: chain(h.OnTransitionApplied, other.OnTransitionApplied),
		OnJump:              chain(h.OnJump, other.OnJump),
		OnGuardDenied:       chain(h.OnGuardDenied, other.OnGuardDenied),
		OnActionFailed:      chain(h.OnActionFailed, other.OnActionFailed),
		OnSubflowStarted:    chain(h.OnSubflowStarted, other.OnSubflowStarted),
		OnSubflowExited:     chain(h.OnSubflowExited, other.OnSubflowExited),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
