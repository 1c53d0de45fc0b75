package definition

import (
	"maps"
	"slices"

	"github.com/aretw0/flowra/pkg/domain"
)

// Definition is the derived, immutable schema of a workflow type.
// Accessors return copies; the descriptors themselves must be cloned
// before per-application mutation.
type Definition struct {
	workflow    string
	states      domain.StateSet
	transitions map[string]*domain.Transition
	order       []string
	groups      map[domain.StateID][]domain.StateID
	parents     map[domain.StateID]domain.StateID
	subflows    map[string]domain.Subflow
	bindings    map[domain.StateID]string
}

// Workflow returns the workflow type.
func (d *Definition) Workflow() string { return d.workflow }

// States returns the state enumeration.
func (d *Definition) States() domain.StateSet {
	return domain.StateSet{Initial: d.states.Initial, States: slices.Clone(d.states.States)}
}

// HasState reports whether id belongs to the enumeration.
func (d *Definition) HasState(id domain.StateID) bool {
	return d.states.Has(id)
}

// Transition looks a transition up by key.
func (d *Definition) Transition(key string) (*domain.Transition, bool) {
	t, ok := d.transitions[key]
	return t, ok
}

// Transitions returns the transition table in declaration order.
func (d *Definition) Transitions() []*domain.Transition {
	out := make([]*domain.Transition, len(d.order))
	for i, k := range d.order {
		out[i] = d.transitions[k]
	}
	return out
}

// Outgoing returns the transitions whose source is state.
func (d *Definition) Outgoing(state domain.StateID) []*domain.Transition {
	var out []*domain.Transition
	for _, k := range d.order {
		if t := d.transitions[k]; t.From == state {
			out = append(out, t)
		}
	}
	return out
}

// IsTerminal reports whether no transition leaves state.
func (d *Definition) IsTerminal(state domain.StateID) bool {
	return len(d.Outgoing(state)) == 0
}

// StateGroups returns the group tree as group -> direct children.
func (d *Definition) StateGroups() map[domain.StateID][]domain.StateID {
	out := make(map[domain.StateID][]domain.StateID, len(d.groups))
	for g, children := range d.groups {
		out[g] = slices.Clone(children)
	}
	return out
}

// Parent returns the group directly containing state.
func (d *Definition) Parent(state domain.StateID) (domain.StateID, bool) {
	p, ok := d.parents[state]
	return p, ok
}

// GroupOf returns every group containing state, innermost first.
func (d *Definition) GroupOf(state domain.StateID) []domain.StateID {
	var out []domain.StateID
	for p, ok := d.parents[state]; ok; p, ok = d.parents[p] {
		out = append(out, p)
	}
	return out
}

// InGroup reports whether state is group itself or one of its descendants.
func (d *Definition) InGroup(state, group domain.StateID) bool {
	if state == group {
		return true
	}
	return slices.Contains(d.GroupOf(state), group)
}

// Subflow looks a subflow binding up by key.
func (d *Definition) Subflow(key string) (domain.Subflow, bool) {
	s, ok := d.subflows[key]
	return s, ok
}

// BindingFor returns the subflow bound to an outer state.
func (d *Definition) BindingFor(state domain.StateID) (domain.Subflow, bool) {
	key, ok := d.bindings[state]
	if !ok {
		return domain.Subflow{}, false
	}
	return d.subflows[key], true
}

// Subflows returns the bindings ordered by key.
func (d *Definition) Subflows() []domain.Subflow {
	keys := slices.Sorted(maps.Keys(d.subflows))
	out := make([]domain.Subflow, len(keys))
	for i, k := range keys {
		out[i] = d.subflows[k]
	}
	return out
}
