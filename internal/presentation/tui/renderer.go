// Package tui renders CLI output as markdown, styled when stdout is a terminal.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders markdown for w.
// Non-terminal writers get the markdown unchanged.
func NewRenderer(w io.Writer) func(string) (string, error) {
	if !IsTerminal(w) {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// DescribeMarkdown documents a workflow definition.
func DescribeMarkdown(def *definition.Definition) string {
	var sb strings.Builder
	states := def.States()
	fmt.Fprintf(&sb, "# %s\n\n", def.Workflow())
	fmt.Fprintf(&sb, "Initial state: `%s`\n\n", states.Initial)

	sb.WriteString("## States\n\n")
	for _, s := range states.States {
		var notes []string
		if groups := def.GroupOf(s); len(groups) > 0 {
			notes = append(notes, "in "+joinStates(groups))
		}
		if sub, ok := def.BindingFor(s); ok {
			notes = append(notes, "starts subflow "+sub.Workflow)
		}
		if def.IsTerminal(s) {
			notes = append(notes, "terminal")
		}
		line := fmt.Sprintf("- `%s`", s)
		if len(notes) > 0 {
			line += " (" + strings.Join(notes, "; ") + ")"
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n## Transitions\n\n")
	sb.WriteString("| Key | From | To | Guards | Actions |\n")
	sb.WriteString("|-----|------|----|--------|---------|\n")
	for _, t := range def.Transitions() {
		guards := make([]string, len(t.Guards))
		for i, g := range t.Guards {
			guards[i] = g.Label()
		}
		actions := make([]string, len(t.Actions))
		for i, a := range t.Actions {
			actions[i] = a.Label()
			if a.IsDeferred() {
				actions[i] += " (deferred)"
			}
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", t.Key, t.From, t.To, dash(guards), dash(actions))
	}

	if subs := def.Subflows(); len(subs) > 0 {
		sb.WriteString("\n## Subflows\n\n")
		for _, s := range subs {
			fmt.Fprintf(&sb, "- `%s`: `%s` runs `%s` from `%s`\n", s.Key, s.State, s.Workflow, s.Start)
			for _, exit := range s.ExitStates() {
				fmt.Fprintf(&sb, "  - exit `%s` resumes with `%s`\n", exit, s.Exits[exit])
			}
		}
	}
	return sb.String()
}

// HistoryMarkdown lists records oldest first.
func HistoryMarkdown(owner domain.Owner, workflow string, history []*domain.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s on %s\n\n", owner, workflow)
	if len(history) == 0 {
		sb.WriteString("_No transitions recorded._\n")
		return sb.String()
	}
	sb.WriteString("| When | Transition | From | To | Kind | By |\n")
	sb.WriteString("|------|------------|------|----|------|----|\n")
	for _, r := range history {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n",
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Transition, r.From, r.To, r.Kind, orDash(r.AppliedBy))
	}
	return sb.String()
}

func joinStates(states []domain.StateID) string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return strings.Join(out, " > ")
}

func dash(items []string) string {
	return orDash(strings.Join(items, ", "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
