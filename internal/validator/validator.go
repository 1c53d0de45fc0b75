// Package validator lints registered workflow definitions beyond what
// building them already enforces.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
)

// Report describes one workflow.
type Report struct {
	Workflow string
	// Unreachable states cannot be entered from the initial state through
	// ordinary transitions. Jumps may still reach them.
	Unreachable []domain.StateID
	// Terminal states have no outgoing transition.
	Terminal []domain.StateID
	// Problems are definition errors, including unresolvable subflows.
	Problems []string
}

// OK reports whether the workflow has no problems and no unreachable states.
func (r Report) OK() bool {
	return len(r.Problems) == 0 && len(r.Unreachable) == 0
}

// Err summarizes the report as an error, or nil when OK.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	var lines []string
	lines = append(lines, r.Problems...)
	for _, s := range r.Unreachable {
		lines = append(lines, fmt.Sprintf("state (%s) is unreachable from (initial)", s))
	}
	return fmt.Errorf("workflow %s: %d issue(s):\n- %s", r.Workflow, len(lines), strings.Join(lines, "\n- "))
}

// Lint walks def from its initial state. A group counts as reachable
// when any of its descendants is.
func Lint(def *definition.Definition) Report {
	r := Report{Workflow: def.Workflow()}
	states := def.States()

	visited := make(map[domain.StateID]bool, len(states.States))
	queue := []domain.StateID{states.Initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, t := range def.Outgoing(current) {
			if !visited[t.To] {
				queue = append(queue, t.To)
			}
		}
	}
	for s := range visited {
		for _, g := range def.GroupOf(s) {
			visited[g] = true
		}
	}

	groups := def.StateGroups()
	for _, s := range states.States {
		if !visited[s] {
			r.Unreachable = append(r.Unreachable, s)
		}
		if _, isGroup := groups[s]; !isGroup && def.IsTerminal(s) {
			r.Terminal = append(r.Terminal, s)
		}
	}
	return r
}

// ValidateAll lints every registered workflow, including subflow bindings.
// The returned error joins the failing reports.
func ValidateAll(ctx context.Context, cache *definition.Cache) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, typ := range cache.Registry().Types() {
		def, err := cache.GetDefinition(ctx, typ)
		if err != nil {
			r := Report{Workflow: typ, Problems: []string{err.Error()}}
			reports = append(reports, r)
			errs = append(errs, r.Err())
			continue
		}
		r := Lint(def)
		for _, s := range def.Subflows() {
			if _, _, err := cache.ResolveBinding(ctx, def, s.State); err != nil {
				r.Problems = append(r.Problems, err.Error())
			}
		}
		reports = append(reports, r)
		if err := r.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}
