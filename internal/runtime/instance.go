package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// Instance is the engine bound to one (entity, workflow) pair.
type Instance struct {
	engine   *Engine
	entity   ports.Entity
	workflow string
	// parent is set when the instance is started by an outer workflow.
	parent *domain.ParentRef
}

// Workflow returns the bound workflow type.
func (i *Instance) Workflow() string { return i.workflow }

// Entity returns the bound entity.
func (i *Instance) Entity() ports.Entity { return i.entity }

// Apply looks key up in the transition table and applies it.
func (i *Instance) Apply(ctx context.Context, key string, opts ...ApplyOption) (*Result, error) {
	owner, def, err := i.resolve(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := def.Transition(key)
	if !ok {
		return nil, &domain.TransitionNotRegisteredError{Workflow: i.workflow, Transition: key}
	}
	t = t.Clone()
	for _, opt := range opts {
		opt(t)
	}
	return i.apply(ctx, owner, def, t)
}

// ApplyTransition applies a descriptor resolved by the caller. The key must
// still be registered in the workflow. The descriptor is used as given, so
// callers clone it before setting per-application data.
func (i *Instance) ApplyTransition(ctx context.Context, t *domain.Transition, opts ...ApplyOption) (*Result, error) {
	owner, def, err := i.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := def.Transition(t.Key); !ok || t.IsJump() {
		return nil, &domain.TransitionNotRegisteredError{Workflow: i.workflow, Transition: t.Key}
	}
	for _, opt := range opts {
		opt(t)
	}
	return i.apply(ctx, owner, def, t)
}

// JumpTo forces the instance into target, bypassing the transition table,
// guards, actions and subflow coordination. An empty jumpKey records
// domain.DefaultJumpKey.
func (i *Instance) JumpTo(ctx context.Context, target domain.StateID, jumpKey, appliedBy string) (*Result, error) {
	owner, def, err := i.resolve(ctx)
	if err != nil {
		return nil, err
	}
	status, err := i.findStatus(ctx, owner)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, &domain.InvalidJumpError{Workflow: i.workflow, Target: target, Reason: "no current state to jump from"}
	}
	if !def.HasState(target) {
		return nil, &domain.InvalidJumpError{Workflow: i.workflow, Target: target, Reason: "target is not a state of the workflow"}
	}

	start := i.engine.now()
	t := domain.NewJump(jumpKey, status.To, target)
	t.AppliedBy = appliedBy

	rec, err := i.persist(ctx, owner, t, status)
	if err != nil {
		return nil, err
	}
	i.engine.logger.Info("workflow jumped",
		"workflow", i.workflow, "owner", owner.String(),
		"jump", t.Key, "from", rec.From, "to", rec.To)
	if h := i.engine.hooks.OnJump; h != nil {
		h(ctx, i.event(owner, rec, start))
	}
	return &Result{Status: rec.Clone(), Applied: rec}, nil
}

// CurrentState returns the current state, or the initial state when no
// transition was applied yet.
func (i *Instance) CurrentState(ctx context.Context) (domain.StateID, error) {
	owner, def, err := i.resolve(ctx)
	if err != nil {
		return "", err
	}
	status, err := i.findStatus(ctx, owner)
	if err != nil {
		return "", err
	}
	if status == nil {
		return def.States().Initial, nil
	}
	return status.To, nil
}

// Status returns the current Status, or domain.ErrStatusNotFound.
func (i *Instance) Status(ctx context.Context) (*domain.Record, error) {
	owner, _, err := i.resolve(ctx)
	if err != nil {
		return nil, err
	}
	status, err := i.findStatus(ctx, owner)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, domain.ErrStatusNotFound
	}
	return status, nil
}

// History returns every applied transition, oldest first.
func (i *Instance) History(ctx context.Context) ([]*domain.Record, error) {
	owner, _, err := i.resolve(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := i.engine.store.History(ctx, i.key(owner))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load history", Err: err}
	}
	return entries, nil
}

// Transitions returns the workflow's transition table.
func (i *Instance) Transitions(ctx context.Context) ([]*domain.Transition, error) {
	def, err := i.engine.cache.GetDefinition(ctx, i.workflow)
	if err != nil {
		return nil, err
	}
	return def.Transitions(), nil
}

// Available returns the transitions leaving the current state.
func (i *Instance) Available(ctx context.Context) ([]*domain.Transition, error) {
	current, err := i.CurrentState(ctx)
	if err != nil {
		return nil, err
	}
	def, err := i.engine.cache.GetDefinition(ctx, i.workflow)
	if err != nil {
		return nil, err
	}
	return def.Outgoing(current), nil
}

// States returns the workflow's state enumeration.
func (i *Instance) States(ctx context.Context) (domain.StateSet, error) {
	def, err := i.engine.cache.GetDefinition(ctx, i.workflow)
	if err != nil {
		return domain.StateSet{}, err
	}
	return def.States(), nil
}

// StateGroups returns the workflow's group tree.
func (i *Instance) StateGroups(ctx context.Context) (map[domain.StateID][]domain.StateID, error) {
	def, err := i.engine.cache.GetDefinition(ctx, i.workflow)
	if err != nil {
		return nil, err
	}
	return def.StateGroups(), nil
}

// IsIn reports whether the current state is group or one of its descendants.
func (i *Instance) IsIn(ctx context.Context, group domain.StateID) (bool, error) {
	current, err := i.CurrentState(ctx)
	if err != nil {
		return false, err
	}
	def, err := i.engine.cache.GetDefinition(ctx, i.workflow)
	if err != nil {
		return false, err
	}
	return def.InGroup(current, group), nil
}

// resolve runs validation rules (a) and (b) and loads the definition.
func (i *Instance) resolve(ctx context.Context) (domain.Owner, *definition.Definition, error) {
	if i.entity == nil || !i.entity.Exists() {
		var typ string
		if i.entity != nil {
			_, typ = i.entity.Identity()
		}
		return domain.Owner{}, nil, &domain.EntityNotFoundError{OwnerType: typ}
	}
	id, typ := i.entity.Identity()
	owner := domain.Owner{ID: id, Type: typ}

	registered := i.entity.RegisteredWorkflows()
	if !slices.Contains(registered, i.workflow) {
		nested, err := i.engine.cache.Nests(ctx, registered, i.workflow)
		if err != nil {
			return owner, nil, err
		}
		if !nested {
			return owner, nil, &domain.WorkflowNotRegisteredError{Workflow: i.workflow, OwnerType: typ}
		}
	}

	def, err := i.engine.cache.GetDefinition(ctx, i.workflow)
	if err != nil {
		return owner, nil, err
	}
	return owner, def, nil
}

func (i *Instance) apply(ctx context.Context, owner domain.Owner, def *definition.Definition, t *domain.Transition) (*Result, error) {
	if depth(ctx) > i.engine.maxDepth {
		return nil, &domain.DefinitionError{
			Workflow: i.workflow,
			Reason:   fmt.Sprintf("subflow chain deeper than %d transitions", i.engine.maxDepth),
		}
	}
	start := i.engine.now()
	logger := i.engine.logger.With("workflow", i.workflow, "owner", owner.String(), "transition", t.Key)

	status, err := i.findStatus(ctx, owner)
	if err != nil {
		return nil, err
	}
	current := t.From
	if status != nil {
		current = status.To
	}
	if current != t.From {
		return nil, &domain.TransitionNotApplicableError{
			Workflow: i.workflow, Transition: t.Key, Current: current, Required: t.From,
		}
	}
	logger.Debug("transition validated", "from", t.From, "to", t.To)

	if status != nil {
		if err := i.engine.subflows.Before(ctx, i, def, status.To, t); err != nil {
			return nil, err
		}
	}

	tc := i.transitionContext(owner, t, current)
	if decision, guard := i.engine.guards.Evaluate(ctx, t, tc); !decision.Allowed {
		logger.Warn("transition denied", "guard", guard, "code", decision.Code, "message", decision.Message)
		if h := i.engine.hooks.OnGuardDenied; h != nil {
			h(ctx, &domain.GuardEvent{
				Owner: owner, Workflow: i.workflow, Transition: t.Key, Guard: guard, Decision: decision,
			})
		}
		return nil, &domain.GuardDeniedError{Transition: t.Key, Guard: guard, Decision: decision}
	}

	rec, err := i.persist(ctx, owner, t, status)
	if err != nil {
		return nil, err
	}
	logger.Info("transition applied", "from", rec.From, "to", rec.To)
	if h := i.engine.hooks.OnTransitionApplied; h != nil {
		h(ctx, i.event(owner, rec, start))
	}

	result := &Result{Applied: rec}
	if err := i.engine.subflows.After(deeper(ctx), i, def, rec); err != nil {
		logger.Warn("subflow follow-up failed", "error", err)
		result.SubflowErr = err
	}

	tc.Status = rec.Clone()
	if aerr := i.engine.actions.Execute(ctx, t, tc); aerr != nil {
		logger.Warn("action failed", "action", aerr.Action, "error", aerr.Err)
		if h := i.engine.hooks.OnActionFailed; h != nil {
			h(ctx, &domain.ActionEvent{
				Owner: owner, Workflow: i.workflow, Transition: t.Key, Action: aerr.Action, Err: aerr.Err,
			})
		}
		result.ActionErr = aerr
	}

	refreshed, err := i.findStatus(ctx, owner)
	if err != nil || refreshed == nil {
		refreshed = rec.Clone()
	}
	result.Status = refreshed
	return result, nil
}

// persist writes the Status and its History entry in one unit of work.
// A lost race surfaces as TransitionNotApplicableError against the state
// that won.
func (i *Instance) persist(ctx context.Context, owner domain.Owner, t *domain.Transition, prev *domain.Record) (*domain.Record, error) {
	rec := &domain.Record{
		ID:         i.engine.newID(),
		OwnerID:    owner.ID,
		OwnerType:  owner.Type,
		Workflow:   i.workflow,
		Transition: t.Key,
		From:       t.From,
		To:         t.To,
		Kind:       t.Kind,
		AppliedBy:  t.AppliedBy,
		Comments:   t.Comments,
		Metadata:   t.Metadata,
		CreatedAt:  i.engine.now(),
	}
	var expected domain.StateID
	switch {
	case i.parent != nil:
		p := *i.parent
		rec.Parent = &p
	case prev != nil && prev.Parent != nil:
		p := *prev.Parent
		rec.Parent = &p
	}
	if prev != nil {
		expected = prev.To
	}

	err := i.engine.store.Atomic(ctx, func(ctx context.Context, tx ports.StatusTx) error {
		if err := tx.UpsertStatus(ctx, rec, expected); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, rec)
	})
	if errors.Is(err, domain.ErrStaleStatus) {
		current, ferr := i.findStatus(ctx, owner)
		if ferr != nil {
			return nil, ferr
		}
		got := t.From
		if current != nil {
			got = current.To
		}
		return nil, &domain.TransitionNotApplicableError{
			Workflow: i.workflow, Transition: t.Key, Current: got, Required: t.From,
		}
	}
	if err != nil {
		i.engine.logger.Error("failed to persist transition",
			"workflow", i.workflow, "owner", owner.String(), "transition", t.Key, "error", err)
		return nil, &domain.PersistenceError{Op: "persist transition", Err: err}
	}
	return rec, nil
}

func (i *Instance) findStatus(ctx context.Context, owner domain.Owner) (*domain.Record, error) {
	status, err := i.engine.store.FindStatus(ctx, i.key(owner))
	if errors.Is(err, domain.ErrStatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find status", Err: err}
	}
	return status, nil
}

func (i *Instance) key(owner domain.Owner) domain.InstanceKey {
	return domain.InstanceKey{Owner: owner, Workflow: i.workflow}
}

func (i *Instance) transitionContext(owner domain.Owner, t *domain.Transition, current domain.StateID) *domain.TransitionContext {
	return &domain.TransitionContext{
		Owner:      owner,
		Workflow:   i.workflow,
		Transition: t,
		Current:    current,
		AppliedBy:  t.AppliedBy,
		Comments:   t.Comments,
		Metadata:   t.Metadata,
	}
}

func (i *Instance) event(owner domain.Owner, rec *domain.Record, start time.Time) *domain.TransitionEvent {
	return &domain.TransitionEvent{
		Timestamp:  rec.CreatedAt,
		Owner:      owner,
		Workflow:   i.workflow,
		Transition: rec.Transition,
		From:       rec.From,
		To:         rec.To,
		Kind:       rec.Kind,
		Duration:   i.engine.now().Sub(start),
	}
}
