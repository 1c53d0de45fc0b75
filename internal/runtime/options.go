package runtime

import (
	"errors"
	"maps"

	"github.com/aretw0/flowra/pkg/domain"
)

// ApplyOption sets per-application data on the cloned transition.
type ApplyOption func(*domain.Transition)

// WithAppliedBy records who applied the transition.
func WithAppliedBy(who string) ApplyOption {
	return func(t *domain.Transition) {
		t.AppliedBy = who
	}
}

// WithComment appends comments to the history entry.
func WithComment(comments ...string) ApplyOption {
	return func(t *domain.Transition) {
		t.Comments = append(t.Comments, comments...)
	}
}

// WithMetadata merges free-form metadata into the history entry.
func WithMetadata(md map[string]any) ApplyOption {
	return func(t *domain.Transition) {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any, len(md))
		}
		maps.Copy(t.Metadata, md)
	}
}

// Result is the outcome of a committed transition.
type Result struct {
	// Status is the instance's current Status after every follow-up ran.
	Status *domain.Record
	// Applied is the record written by this call.
	Applied *domain.Record
	// ActionErr is set when an action failed after commit.
	ActionErr error
	// SubflowErr is set when starting an inner workflow or resuming the
	// outer one failed after commit.
	SubflowErr error
}

// Err joins the non-fatal faults attached to the result.
func (r *Result) Err() error {
	return errors.Join(r.ActionErr, r.SubflowErr)
}
