package domain

// Schema is the static description a workflow type produces.
// It is computed once per type by the definition cache.
type Schema struct {
	States      StateSet
	Transitions []*Transition
	Groups      []StateGroup
	Subflows    []Subflow
}
