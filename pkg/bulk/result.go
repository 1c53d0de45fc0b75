package bulk

import "github.com/aretw0/flowra/pkg/domain"

// Success is one target the transition was applied to.
type Success struct {
	// Index is the position of Target in the input sequence.
	Index  int
	Target any
	Status *domain.Record
	// ActionErr holds a non-fatal action fault of the committed transition.
	ActionErr error
}

// Failure is one target the transition could not be applied to.
type Failure struct {
	Index  int
	Target any
	Err    error
}

// Result collects the outcome of a bulk run in target order.
type Result struct {
	Successes []Success
	Failures  []Failure
}

func (r *Result) SuccessfulCount() int { return len(r.Successes) }

func (r *Result) FailedCount() int { return len(r.Failures) }

func (r *Result) HasFailures() bool { return len(r.Failures) > 0 }

// Attempted is the number of targets processed.
func (r *Result) Attempted() int { return len(r.Successes) + len(r.Failures) }
