package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every typed error below unwraps to one of these, so
// callers test the class with errors.Is and read details with errors.As.
var (
	ErrDefinition              = errors.New("invalid workflow definition")
	ErrEntityNotFound          = errors.New("entity does not exist")
	ErrWorkflowNotRegistered   = errors.New("workflow not registered for entity")
	ErrTransitionNotRegistered = errors.New("transition not registered for workflow")
	ErrTransitionNotApplicable = errors.New("transition not applicable")
	ErrGuardDenied             = errors.New("transition denied by guard")
	ErrInvalidJump             = errors.New("invalid jump")
	ErrSubflowBlocked          = errors.New("transition blocked by open subflow")
	ErrIncompatibleTarget      = errors.New("incompatible bulk target")
	ErrActionExecution         = errors.New("action execution failed")
	ErrPersistence             = errors.New("persistence failure")
)

// Storage-level signals returned by ports.StatusStore implementations.
var (
	// ErrStatusNotFound is returned when no Status exists for an instance.
	ErrStatusNotFound = errors.New("status not found")
	// ErrStaleStatus is returned when a conditional upsert lost a race.
	ErrStaleStatus = errors.New("status changed concurrently")
)

// DefinitionError reports a malformed or missing workflow schema.
type DefinitionError struct {
	Workflow string
	Reason   string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("workflow (%s): %s", e.Workflow, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return ErrDefinition }

// EntityNotFoundError is raised when the owning entity has no durable identity.
type EntityNotFoundError struct {
	OwnerType string
}

func (e *EntityNotFoundError) Error() string {
	if e.OwnerType == "" {
		return "record does not exist"
	}
	return fmt.Sprintf("record (%s) does not exist", e.OwnerType)
}

func (e *EntityNotFoundError) Unwrap() error { return ErrEntityNotFound }

type WorkflowNotRegisteredError struct {
	Workflow  string
	OwnerType string
}

func (e *WorkflowNotRegisteredError) Error() string {
	return fmt.Sprintf("workflow (%s) is not registered for (%s)", e.Workflow, e.OwnerType)
}

func (e *WorkflowNotRegisteredError) Unwrap() error { return ErrWorkflowNotRegistered }

type TransitionNotRegisteredError struct {
	Workflow   string
	Transition string
}

func (e *TransitionNotRegisteredError) Error() string {
	return fmt.Sprintf("transition (%s) is not registered for workflow (%s)", e.Transition, e.Workflow)
}

func (e *TransitionNotRegisteredError) Unwrap() error { return ErrTransitionNotRegistered }

// TransitionNotApplicableError is raised when the current state is not the transition's source.
type TransitionNotApplicableError struct {
	Workflow   string
	Transition string
	Current    StateID
	Required   StateID
}

func (e *TransitionNotApplicableError) Error() string {
	return fmt.Sprintf("applying transition (%s) while current state is (%s) is not applicable, state must be (%s)",
		e.Transition, e.Current, e.Required)
}

func (e *TransitionNotApplicableError) Unwrap() error { return ErrTransitionNotApplicable }

// GuardDeniedError carries the denying guard's decision.
type GuardDeniedError struct {
	Transition string
	Guard      string
	Decision   Decision
}

func (e *GuardDeniedError) Error() string {
	msg := fmt.Sprintf("transition (%s) denied by guard (%s)", e.Transition, e.Guard)
	if e.Decision.Message != "" {
		msg += ": " + e.Decision.Message
	}
	if e.Decision.Code != "" {
		msg += " [" + e.Decision.Code + "]"
	}
	return msg
}

func (e *GuardDeniedError) Unwrap() error { return ErrGuardDenied }

type InvalidJumpError struct {
	Workflow string
	Target   StateID
	Reason   string
}

func (e *InvalidJumpError) Error() string {
	return fmt.Sprintf("cannot jump workflow (%s) to (%s): %s", e.Workflow, e.Target, e.Reason)
}

func (e *InvalidJumpError) Unwrap() error { return ErrInvalidJump }

// SubflowBlockedError is raised when an outer transition tries to leave a
// state whose inner workflow has not reached the matching exit.
type SubflowBlockedError struct {
	Workflow   string
	State      StateID
	Subflow    string
	Inner      StateID
	Transition string
}

func (e *SubflowBlockedError) Error() string {
	return fmt.Sprintf("transition (%s) blocked: subflow (%s) bound to (%s) is at (%s)",
		e.Transition, e.Subflow, e.State, e.Inner)
}

func (e *SubflowBlockedError) Unwrap() error { return ErrSubflowBlocked }

type IncompatibleTargetError struct {
	Expected string
	Actual   string
}

func (e *IncompatibleTargetError) Error() string {
	return fmt.Sprintf("target bound to workflow (%s) cannot receive transitions of (%s)", e.Actual, e.Expected)
}

func (e *IncompatibleTargetError) Unwrap() error { return ErrIncompatibleTarget }

// ActionExecutionError is non-fatal: the transition it belongs to is already committed.
type ActionExecutionError struct {
	Transition string
	Action     string
	Index      int
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action #%d (%s) of transition (%s) failed: %v", e.Index, e.Action, e.Transition, e.Err)
}

func (e *ActionExecutionError) Unwrap() []error { return []error{ErrActionExecution, e.Err} }

// PersistenceError wraps a fault raised by the storage collaborator.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
