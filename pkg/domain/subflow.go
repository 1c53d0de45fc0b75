package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Subflow binds an outer state to a nested workflow.
//
// Entering State starts the inner Workflow through its Start transition.
// When the inner workflow reaches one of the Exits, the mapped outer
// transition is applied to resume the outer workflow.
type Subflow struct {
	Key      string             `json:"key" yaml:"key"`
	State    StateID            `json:"state" yaml:"state"`
	Workflow string             `json:"workflow" yaml:"workflow"`
	Start    string             `json:"start" yaml:"start"`
	Exits    map[StateID]string `json:"exits" yaml:"exits"`
}

// Validate checks that every part of the binding is declared.
func (s Subflow) Validate() error {
	switch {
	case s.Key == "":
		return fmt.Errorf("subflow bound to %q has no key", s.State)
	case s.State == "":
		return fmt.Errorf("subflow %q is not bound to a state", s.Key)
	case s.Workflow == "":
		return fmt.Errorf("subflow %q has no inner workflow", s.Key)
	case s.Start == "":
		return fmt.Errorf("subflow %q has no start transition", s.Key)
	case len(s.Exits) == 0:
		return fmt.Errorf("subflow %q declares no exit states", s.Key)
	}
	for exit, outer := range s.Exits {
		if outer == "" {
			return fmt.Errorf("subflow %q exit %q is not mapped to an outer transition", s.Key, exit)
		}
	}
	return nil
}

// IsExit reports whether state is one of the declared exit states.
func (s Subflow) IsExit(state StateID) bool {
	_, ok := s.Exits[state]
	return ok
}

// Resume returns the outer transition mapped to an inner exit state.
func (s Subflow) Resume(exit StateID) (string, bool) {
	key, ok := s.Exits[exit]
	return key, ok
}

// ExitStates lists the exit states in a stable order.
func (s Subflow) ExitStates() []StateID {
	return slices.Sorted(maps.Keys(s.Exits))
}

// ParentRef links an inner workflow run to the outer instance that started it.
type ParentRef struct {
	Workflow        string  `json:"workflow"`
	State           StateID `json:"state"`
	Subflow         string  `json:"subflow"`
	StartTransition string  `json:"start_transition"`
	StatusID        string  `json:"status_id,omitempty"`
}
