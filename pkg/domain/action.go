package domain

import "context"

// Executor is the capability an action implements.
type Executor interface {
	Execute(ctx context.Context, tc *TransitionContext) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, tc *TransitionContext) error

func (f ExecutorFunc) Execute(ctx context.Context, tc *TransitionContext) error {
	return f(ctx, tc)
}

// DeferredExecutor is implemented by executors that always ask to run out of band.
type DeferredExecutor interface {
	Executor
	Deferred() bool
}

// Action is either a callable Executor or a named reference, optionally deferred.
type Action struct {
	Ref      string
	Executor Executor
	Deferred bool
}

// ActionOf wraps an Executor implementation.
func ActionOf(e Executor) Action {
	return Action{Executor: e}
}

// ActionFunc wraps a plain function.
func ActionFunc(fn func(ctx context.Context, tc *TransitionContext) error) Action {
	return Action{Executor: ExecutorFunc(fn)}
}

// ActionRef references an action registered under name.
func ActionRef(name string) Action {
	return Action{Ref: name}
}

// Defer marks an action for hand-off to the deferred-work collaborator.
func Defer(a Action) Action {
	a.Deferred = true
	return a
}

// IsDeferred reports whether the action must be enqueued instead of run inline.
func (a Action) IsDeferred() bool {
	if a.Deferred {
		return true
	}
	if d, ok := a.Executor.(DeferredExecutor); ok {
		return d.Deferred()
	}
	return false
}

// Label names the action for logs and errors.
func (a Action) Label() string {
	if a.Ref != "" {
		return a.Ref
	}
	return "inline"
}
