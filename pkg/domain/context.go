package domain

// TransitionContext is handed to guards and actions.
//
// Guards see Status == nil. Actions run after commit and see the
// persisted Status.
type TransitionContext struct {
	Owner      Owner
	Workflow   string
	Transition *Transition
	Current    StateID
	Status     *Record
	AppliedBy  string
	Comments   []string
	Metadata   map[string]any
}

// Target is the state the transition leads to.
func (tc *TransitionContext) Target() StateID {
	return tc.Transition.To
}
