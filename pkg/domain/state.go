package domain

import "slices"

// StateID identifies one member of a workflow's state enumeration.
type StateID string

// StateSet is the finite enumeration of states a workflow may occupy.
type StateSet struct {
	// Initial is the state an entity is considered to be in before any Status exists.
	Initial StateID   `json:"initial"`
	States  []StateID `json:"states"`
}

// NewStateSet builds a StateSet whose initial state is the first member.
func NewStateSet(states ...StateID) StateSet {
	set := StateSet{States: states}
	if len(states) > 0 {
		set.Initial = states[0]
	}
	return set
}

// Has reports whether id is a member of the enumeration.
func (s StateSet) Has(id StateID) bool {
	return slices.Contains(s.States, id)
}

// Empty reports whether the enumeration declares no states.
func (s StateSet) Empty() bool {
	return len(s.States) == 0
}

// StateGroup declares State as a container for Children.
// A child may itself be the State of another group, forming a tree.
type StateGroup struct {
	State    StateID   `json:"state" yaml:"state"`
	Children []StateID `json:"children" yaml:"children"`
}

// Group is shorthand for declaring a StateGroup.
func Group(state StateID, children ...StateID) StateGroup {
	return StateGroup{State: state, Children: children}
}
