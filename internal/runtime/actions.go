package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// ErrNoDeferrer is reported when a deferred action runs on an engine without a Deferrer.
var ErrNoDeferrer = errors.New("no deferrer configured")

// ActionExecutor runs a transition's actions in declaration order once the
// transition is committed. The first fault stops the chain.
type ActionExecutor struct {
	resolver ports.Resolver
	deferrer ports.Deferrer
}

// NewActionExecutor creates an executor resolving named actions through r
// and handing deferred ones to d.
func NewActionExecutor(r ports.Resolver, d ports.Deferrer) *ActionExecutor {
	return &ActionExecutor{resolver: r, deferrer: d}
}

// Execute runs the actions. The returned error is non-fatal for the transition.
func (a *ActionExecutor) Execute(ctx context.Context, t *domain.Transition, tc *domain.TransitionContext) *domain.ActionExecutionError {
	for idx, action := range t.Actions {
		if err := a.run(ctx, action, tc); err != nil {
			return &domain.ActionExecutionError{Transition: t.Key, Action: action.Label(), Index: idx, Err: err}
		}
	}
	return nil
}

func (a *ActionExecutor) run(ctx context.Context, action domain.Action, tc *domain.TransitionContext) (err error) {
	if action.Executor == nil {
		if action.Ref == "" || a.resolver == nil {
			return fmt.Errorf("action (%s) cannot be resolved", action.Label())
		}
		exec, err := a.resolver.ResolveAction(action.Ref)
		if err != nil {
			return err
		}
		action.Executor = exec
	}

	if action.IsDeferred() {
		if a.deferrer == nil {
			return ErrNoDeferrer
		}
		return a.deferrer.Enqueue(ctx, action, tc)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action.Executor.Execute(ctx, tc)
}
