package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
)

// Builder collects the declarations of one workflow type.
type Builder struct {
	typ         string
	initial     domain.StateID
	states      []domain.StateID
	transitions []*TransitionBuilder
	groups      []*GroupBuilder
	subflows    []*SubflowBuilder
}

// New creates a builder for a workflow type.
func New(typ string) *Builder {
	return &Builder{typ: typ}
}

// Type returns the workflow type being built.
func (b *Builder) Type() string { return b.typ }

// States appends states. Unless Initial is called, the first state is initial.
func (b *Builder) States(states ...domain.StateID) *Builder {
	b.states = append(b.states, states...)
	return b
}

// Initial sets the state an entity occupies before any transition.
func (b *Builder) Initial(state domain.StateID) *Builder {
	b.initial = state
	return b
}

// Transition starts declaring a transition.
func (b *Builder) Transition(key string) *TransitionBuilder {
	tb := &TransitionBuilder{t: domain.NewTransition(key, "", "")}
	b.transitions = append(b.transitions, tb)
	return tb
}

// Group starts declaring a state group.
func (b *Builder) Group(state domain.StateID) *GroupBuilder {
	gb := &GroupBuilder{g: domain.StateGroup{State: state}}
	b.groups = append(b.groups, gb)
	return gb
}

// Subflow starts declaring a subflow binding.
func (b *Builder) Subflow(key string) *SubflowBuilder {
	sb := &SubflowBuilder{s: domain.Subflow{Key: key, Exits: make(map[domain.StateID]string)}}
	b.subflows = append(b.subflows, sb)
	return sb
}

// Schema returns a fresh schema on every call.
// Incomplete subflow declarations are reported here; everything else is
// checked when the definition is built.
func (b *Builder) Schema() (*domain.Schema, error) {
	s := &domain.Schema{
		States: domain.StateSet{Initial: b.initial, States: append([]domain.StateID(nil), b.states...)},
	}
	if s.States.Initial == "" && len(b.states) > 0 {
		s.States.Initial = b.states[0]
	}
	for _, tb := range b.transitions {
		s.Transitions = append(s.Transitions, tb.t.Clone())
	}
	for _, gb := range b.groups {
		s.Groups = append(s.Groups, domain.Group(gb.g.State, gb.g.Children...))
	}
	var errs []error
	for _, sb := range b.subflows {
		if err := sb.s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		exits := make(map[domain.StateID]string, len(sb.s.Exits))
		for k, v := range sb.s.Exits {
			exits[k] = v
		}
		sub := sb.s
		sub.Exits = exits
		s.Subflows = append(s.Subflows, sub)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("workflow %s: %w", b.typ, errors.Join(errs...))
	}
	return s, nil
}

// Workflow adapts the builder to definition.Workflow.
func (b *Builder) Workflow() definition.Workflow {
	return definition.New(b.typ, b.Schema)
}

// TransitionBuilder declares one transition.
type TransitionBuilder struct {
	t *domain.Transition
}

func (tb *TransitionBuilder) From(state domain.StateID) *TransitionBuilder {
	tb.t.From = state
	return tb
}

func (tb *TransitionBuilder) To(state domain.StateID) *TransitionBuilder {
	tb.t.To = state
	return tb
}

// Guard appends guards in evaluation order.
func (tb *TransitionBuilder) Guard(guards ...domain.Guard) *TransitionBuilder {
	tb.t.Guards = append(tb.t.Guards, guards...)
	return tb
}

// When appends named guard references.
func (tb *TransitionBuilder) When(names ...string) *TransitionBuilder {
	for _, n := range names {
		tb.t.Guards = append(tb.t.Guards, domain.GuardRef(n))
	}
	return tb
}

// Action appends actions in execution order.
func (tb *TransitionBuilder) Action(actions ...domain.Action) *TransitionBuilder {
	tb.t.Actions = append(tb.t.Actions, actions...)
	return tb
}

// Then appends named action references run inline.
func (tb *TransitionBuilder) Then(names ...string) *TransitionBuilder {
	for _, n := range names {
		tb.t.Actions = append(tb.t.Actions, domain.ActionRef(n))
	}
	return tb
}

// Later appends named action references handed to the deferrer.
func (tb *TransitionBuilder) Later(names ...string) *TransitionBuilder {
	for _, n := range names {
		tb.t.Actions = append(tb.t.Actions, domain.Defer(domain.ActionRef(n)))
	}
	return tb
}

// GroupBuilder declares one state group.
type GroupBuilder struct {
	g domain.StateGroup
}

func (gb *GroupBuilder) Children(states ...domain.StateID) *GroupBuilder {
	gb.g.Children = append(gb.g.Children, states...)
	return gb
}

// SubflowBuilder declares one subflow binding.
type SubflowBuilder struct {
	s domain.Subflow
}

// Bind sets the outer state owning the subflow.
func (sb *SubflowBuilder) Bind(state domain.StateID) *SubflowBuilder {
	sb.s.State = state
	return sb
}

// To sets the inner workflow type.
func (sb *SubflowBuilder) To(workflow string) *SubflowBuilder {
	sb.s.Workflow = workflow
	return sb
}

// Start sets the inner transition applied on entry.
func (sb *SubflowBuilder) Start(transition string) *SubflowBuilder {
	sb.s.Start = transition
	return sb
}

// Exit maps an inner exit state to the outer transition that resumes.
func (sb *SubflowBuilder) Exit(state domain.StateID, outerTransition string) *SubflowBuilder {
	sb.s.Exits[state] = outerTransition
	return sb
}
