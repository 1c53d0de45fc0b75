package definition

import (
	"fmt"

	"github.com/aretw0/flowra/pkg/domain"
)

// Build derives a Definition from a schema, rejecting malformed input.
func Build(workflow string, schema *domain.Schema) (*Definition, error) {
	fail := func(format string, args ...any) error {
		return &domain.DefinitionError{Workflow: workflow, Reason: fmt.Sprintf(format, args...)}
	}

	if schema == nil || schema.States.Empty() {
		return nil, fail("states are not defined")
	}

	states := schema.States
	seen := make(map[domain.StateID]bool, len(states.States))
	for _, s := range states.States {
		if s == "" {
			return nil, fail("empty state identifier")
		}
		if seen[s] {
			return nil, fail("state (%s) declared twice", s)
		}
		seen[s] = true
	}
	if states.Initial == "" {
		states.Initial = states.States[0]
	}
	if !seen[states.Initial] {
		return nil, fail("initial state (%s) is not a member of the states", states.Initial)
	}

	def := &Definition{
		workflow:    workflow,
		states:      domain.StateSet{Initial: states.Initial, States: append([]domain.StateID(nil), states.States...)},
		transitions: make(map[string]*domain.Transition, len(schema.Transitions)),
		groups:      make(map[domain.StateID][]domain.StateID),
		parents:     make(map[domain.StateID]domain.StateID),
		subflows:    make(map[string]domain.Subflow),
		bindings:    make(map[domain.StateID]string),
	}

	for _, t := range schema.Transitions {
		if t == nil || t.Key == "" {
			return nil, fail("transition without key")
		}
		if _, dup := def.transitions[t.Key]; dup {
			return nil, fail("transition (%s) declared twice", t.Key)
		}
		if !seen[t.From] {
			return nil, fail("transition (%s) leaves unknown state (%s)", t.Key, t.From)
		}
		if !seen[t.To] {
			return nil, fail("transition (%s) enters unknown state (%s)", t.Key, t.To)
		}
		c := t.Clone()
		if c.Kind == "" {
			c.Kind = domain.KindTransition
		}
		def.transitions[c.Key] = c
		def.order = append(def.order, c.Key)
	}

	for _, g := range schema.Groups {
		if !seen[g.State] {
			return nil, fail("group (%s) is not a state", g.State)
		}
		if _, dup := def.groups[g.State]; dup {
			return nil, fail("group (%s) declared twice", g.State)
		}
		def.groups[g.State] = append([]domain.StateID(nil), g.Children...)
		for _, child := range g.Children {
			if !seen[child] {
				return nil, fail("group (%s) contains unknown state (%s)", g.State, child)
			}
			if child == g.State {
				return nil, fail("group (%s) contains itself", g.State)
			}
			if p, ok := def.parents[child]; ok {
				return nil, fail("state (%s) belongs to groups (%s) and (%s)", child, p, g.State)
			}
			def.parents[child] = g.State
		}
	}
	for child := range def.parents {
		hops := 0
		for p, ok := def.parents[child]; ok; p, ok = def.parents[p] {
			if hops++; hops > len(def.parents) {
				return nil, fail("state groups form a cycle through (%s)", child)
			}
		}
	}

	for _, s := range schema.Subflows {
		if err := s.Validate(); err != nil {
			return nil, fail("%v", err)
		}
		if !seen[s.State] {
			return nil, fail("subflow (%s) is bound to unknown state (%s)", s.Key, s.State)
		}
		if _, dup := def.subflows[s.Key]; dup {
			return nil, fail("subflow (%s) declared twice", s.Key)
		}
		if other, taken := def.bindings[s.State]; taken {
			return nil, fail("state (%s) binds subflows (%s) and (%s)", s.State, other, s.Key)
		}
		exits := make(map[domain.StateID]string, len(s.Exits))
		for k, v := range s.Exits {
			exits[k] = v
		}
		s.Exits = exits
		def.subflows[s.Key] = s
		def.bindings[s.State] = s.Key
	}

	return def, nil
}
