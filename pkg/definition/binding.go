package definition

import (
	"context"
	"fmt"

	"github.com/aretw0/flowra/pkg/domain"
)

// Binding is a subflow resolved against both workflows it connects.
type Binding struct {
	domain.Subflow
	Outer *Definition
	Inner *Definition
	Start *domain.Transition
}

// ResolveBinding returns the subflow bound to state in outer, checked for totality:
// the inner start transition exists, every exit is an inner state, and every
// mapped outer transition exists and leaves the bound state.
func (c *Cache) ResolveBinding(ctx context.Context, outer *Definition, state domain.StateID) (*Binding, bool, error) {
	s, ok := outer.BindingFor(state)
	if !ok {
		return nil, false, nil
	}
	fail := func(format string, args ...any) error {
		return &domain.DefinitionError{
			Workflow: outer.Workflow(),
			Reason:   fmt.Sprintf("subflow (%s): ", s.Key) + fmt.Sprintf(format, args...),
		}
	}

	if s.Workflow == outer.Workflow() {
		return nil, true, fail("workflow cannot nest itself")
	}
	inner, err := c.GetDefinition(ctx, s.Workflow)
	if err != nil {
		return nil, true, err
	}
	start, ok := inner.Transition(s.Start)
	if !ok {
		return nil, true, fail("start transition (%s) is not registered in (%s)", s.Start, s.Workflow)
	}
	for _, exit := range s.ExitStates() {
		if !inner.HasState(exit) {
			return nil, true, fail("exit state (%s) is not a state of (%s)", exit, s.Workflow)
		}
		key := s.Exits[exit]
		resume, ok := outer.Transition(key)
		if !ok {
			return nil, true, fail("exit (%s) maps to unknown transition (%s)", exit, key)
		}
		if resume.From != s.State {
			return nil, true, fail("exit (%s) maps to transition (%s) which does not leave (%s)", exit, key, s.State)
		}
	}
	return &Binding{Subflow: s, Outer: outer, Inner: inner, Start: start}, true, nil
}

// Nests reports whether inner is reachable as a subflow from any of roots.
// Roots missing from the registry are skipped.
func (c *Cache) Nests(ctx context.Context, roots []string, inner string) (bool, error) {
	visited := make(map[string]bool)
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		if _, known := c.registry.Lookup(current); !known {
			continue
		}

		def, err := c.GetDefinition(ctx, current)
		if err != nil {
			return false, err
		}
		for _, s := range def.Subflows() {
			if s.Workflow == inner {
				return true, nil
			}
			queue = append(queue, s.Workflow)
		}
	}
	return false, nil
}
