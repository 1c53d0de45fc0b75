package domain

import "maps"

// Kind distinguishes normal progressions from administrative jumps in history.
type Kind string

const (
	KindTransition Kind = "transition"
	KindJump       Kind = "jump"
)

// DefaultJumpKey is the transition key recorded for a jump when none is given.
const DefaultJumpKey = "reset"

// Transition is a named edge from one state to another.
type Transition struct {
	Key     string
	From    StateID
	To      StateID
	Guards  []Guard
	Actions []Action
	Kind    Kind

	// Per-application data. Set on a clone, never on the cached descriptor.
	AppliedBy string
	Comments  []string
	Metadata  map[string]any
}

// NewTransition creates an ordinary transition descriptor.
func NewTransition(key string, from, to StateID) *Transition {
	return &Transition{Key: key, From: from, To: to, Kind: KindTransition}
}

// NewJump creates the synthetic descriptor used by jumps.
func NewJump(key string, from, to StateID) *Transition {
	if key == "" {
		key = DefaultJumpKey
	}
	return &Transition{Key: key, From: from, To: to, Kind: KindJump}
}

// Clone returns a copy whose slices and metadata can be mutated independently.
func (t *Transition) Clone() *Transition {
	c := *t
	c.Guards = append([]Guard(nil), t.Guards...)
	c.Actions = append([]Action(nil), t.Actions...)
	c.Comments = append([]string(nil), t.Comments...)
	if t.Metadata != nil {
		c.Metadata = maps.Clone(t.Metadata)
	}
	return &c
}

// IsJump reports whether the descriptor is a forced jump.
func (t *Transition) IsJump() bool {
	return t.Kind == KindJump
}
