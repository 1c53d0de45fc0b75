package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Owner is the durable identity of the entity a workflow instance belongs to.
type Owner struct {
	ID   string `json:"owner_id"`
	Type string `json:"owner_type"`
}

func (o Owner) String() string {
	return o.Type + ":" + o.ID
}

// InstanceKey identifies one (entity, workflow) pair. At most one Status exists per key.
type InstanceKey struct {
	Owner    Owner
	Workflow string
}

func (k InstanceKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Owner.Type, k.Owner.ID, k.Workflow)
}

// Record is the shape shared by a Status (the current pointer, upserted)
// and a History entry (append-only).
type Record struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	OwnerType  string         `json:"owner_type"`
	Workflow   string         `json:"workflow"`
	Transition string         `json:"transition"`
	From       StateID        `json:"from"`
	To         StateID        `json:"to"`
	Kind       Kind           `json:"kind"`
	AppliedBy  string         `json:"applied_by,omitempty"`
	Comments   []string       `json:"comments,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Parent     *ParentRef     `json:"parent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Key returns the instance the record belongs to.
func (r *Record) Key() InstanceKey {
	return InstanceKey{Owner: Owner{ID: r.OwnerID, Type: r.OwnerType}, Workflow: r.Workflow}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Comments = slices.Clone(r.Comments)
	if r.Metadata != nil {
		c.Metadata = maps.Clone(r.Metadata)
	}
	if r.Parent != nil {
		p := *r.Parent
		c.Parent = &p
	}
	return &c
}

// SameTransition reports whether two records describe the same applied transition.
// IDs are ignored so a Status can be compared with its History entry.
func (r *Record) SameTransition(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.OwnerID == o.OwnerID &&
		r.OwnerType == o.OwnerType &&
		r.Workflow == o.Workflow &&
		r.Transition == o.Transition &&
		r.From == o.From &&
		r.To == o.To &&
		r.Kind == o.Kind &&
		r.AppliedBy == o.AppliedBy &&
		slices.Equal(r.Comments, o.Comments)
}
