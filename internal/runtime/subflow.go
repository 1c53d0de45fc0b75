package runtime

import (
	"context"
	"errors"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
)

// RestartJumpKey is recorded on an inner workflow when its bound outer state
// is entered again and a previous run has to be reset.
const RestartJumpKey = "subflow_restart"

// SubflowCoordinator hands control between outer workflows and the inner
// workflows bound to their states.
type SubflowCoordinator struct {
	engine *Engine
}

// Before blocks an outer transition leaving a bound state unless the inner
// run reached the exit mapped to that transition.
func (c *SubflowCoordinator) Before(ctx context.Context, outer *Instance, def *definition.Definition, current domain.StateID, t *domain.Transition) error {
	binding, ok, err := c.engine.cache.ResolveBinding(ctx, def, current)
	if err != nil || !ok {
		return err
	}

	child, err := c.childStatus(ctx, outer, binding)
	if err != nil || child == nil {
		return err
	}
	if mapped, isExit := binding.Resume(child.To); isExit && mapped == t.Key {
		return nil
	}
	return &domain.SubflowBlockedError{
		Workflow:   def.Workflow(),
		State:      current,
		Subflow:    binding.Key,
		Inner:      child.To,
		Transition: t.Key,
	}
}

// After runs once rec is committed. When rec moves an inner workflow into an
// exit state, the mapped outer transition is applied. When rec enters a bound
// state, the inner workflow is started.
func (c *SubflowCoordinator) After(ctx context.Context, inst *Instance, def *definition.Definition, rec *domain.Record) error {
	return errors.Join(c.resume(ctx, inst, rec), c.start(ctx, inst, def, rec))
}

func (c *SubflowCoordinator) resume(ctx context.Context, inner *Instance, rec *domain.Record) error {
	ref := rec.Parent
	if ref == nil {
		return nil
	}
	outerDef, err := c.engine.cache.GetDefinition(ctx, ref.Workflow)
	if err != nil {
		return err
	}
	binding, ok, err := c.engine.cache.ResolveBinding(ctx, outerDef, ref.State)
	if err != nil || !ok || binding.Key != ref.Subflow {
		return err
	}
	key, isExit := binding.Resume(rec.To)
	if !isExit {
		return nil
	}

	outer := c.engine.For(inner.entity, ref.Workflow)
	current, err := outer.CurrentState(ctx)
	if err != nil {
		return err
	}
	if current != ref.State {
		// The outer workflow already left the bound state.
		return nil
	}

	res, err := outer.Apply(ctx, key, WithAppliedBy(rec.AppliedBy))
	if err != nil {
		return err
	}
	if h := c.engine.hooks.OnSubflowExited; h != nil {
		h(ctx, &domain.SubflowEvent{
			Owner:      rec.Key().Owner,
			Workflow:   ref.Workflow,
			Subflow:    binding.Key,
			Inner:      binding.Workflow,
			State:      rec.To,
			Transition: key,
		})
	}
	return res.Err()
}

func (c *SubflowCoordinator) start(ctx context.Context, outer *Instance, def *definition.Definition, rec *domain.Record) error {
	binding, ok, err := c.engine.cache.ResolveBinding(ctx, def, rec.To)
	if err != nil || !ok {
		return err
	}

	inner := c.engine.For(outer.entity, binding.Workflow)
	inner.parent = &domain.ParentRef{
		Workflow:        def.Workflow(),
		State:           rec.To,
		Subflow:         binding.Key,
		StartTransition: binding.Start.Key,
		StatusID:        rec.ID,
	}

	previous, err := inner.Status(ctx)
	switch {
	case errors.Is(err, domain.ErrStatusNotFound):
	case err != nil:
		return err
	default:
		if _, err := inner.JumpTo(ctx, binding.Start.From, RestartJumpKey, rec.AppliedBy); err != nil {
			return err
		}
		c.engine.logger.Debug("subflow run restarted",
			"workflow", binding.Workflow, "owner", rec.Key().Owner.String(), "previous", previous.To)
	}

	res, err := inner.ApplyTransition(ctx, binding.Start.Clone(), WithAppliedBy(rec.AppliedBy))
	if err != nil {
		return err
	}
	if h := c.engine.hooks.OnSubflowStarted; h != nil {
		h(ctx, &domain.SubflowEvent{
			Owner:      rec.Key().Owner,
			Workflow:   def.Workflow(),
			Subflow:    binding.Key,
			Inner:      binding.Workflow,
			State:      rec.To,
			Transition: binding.Start.Key,
		})
	}
	return res.Err()
}

// childStatus returns the inner Status started by this binding, if any.
func (c *SubflowCoordinator) childStatus(ctx context.Context, outer *Instance, binding *definition.Binding) (*domain.Record, error) {
	inner := c.engine.For(outer.entity, binding.Workflow)
	status, err := inner.Status(ctx)
	if errors.Is(err, domain.ErrStatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if status.Parent == nil || status.Parent.Workflow != binding.Outer.Workflow() || status.Parent.Subflow != binding.Key {
		return nil, nil
	}
	return status, nil
}
