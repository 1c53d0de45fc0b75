// Package graph renders workflow definitions as Mermaid and PlantUML diagrams.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
)

// Overlay marks an entity's progress on the diagram.
type Overlay struct {
	Visited []domain.StateID
	Current domain.StateID
}

// OverlayFromHistory marks every state the history entered, plus current.
func OverlayFromHistory(history []*domain.Record, current domain.StateID) *Overlay {
	o := &Overlay{Current: current}
	for _, r := range history {
		o.Visited = append(o.Visited, r.From, r.To)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for def.
// Shapes:
// - Initial: ((Circle))
// - Bound to a subflow: [[Subroutine]]
// - Terminal: ([Stadium])
// - Default: [Rectangle]
// Groups become subgraphs. Guarded edges list their guards after the key.
func GenerateMermaid(def *definition.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	groups := def.StateGroups()
	states := def.States()

	var writeState func(s domain.StateID, indent string)
	writeState = func(s domain.StateID, indent string) {
		id := sanitizeID(s)
		if children, ok := groups[s]; ok {
			fmt.Fprintf(&sb, "%ssubgraph %s[\"%s\"]\n", indent, id, s)
			for _, c := range children {
				writeState(c, indent+"    ")
			}
			fmt.Fprintf(&sb, "%send\n", indent)
			return
		}

		opener, closer := "[", "]"
		label := string(s)
		sub, bound := def.BindingFor(s)
		switch {
		case s == states.Initial:
			opener, closer = "((", "))"
		case bound:
			opener, closer = "[[", "]]"
		case def.IsTerminal(s):
			opener, closer = "([", "])"
		}
		if bound {
			label = fmt.Sprintf("%s <br/> subflow: %s", s, sub.Workflow)
		}
		fmt.Fprintf(&sb, "%s%s%s\"%s\"%s\n", indent, id, opener, label, closer)
	}

	for _, s := range states.States {
		if _, nested := def.Parent(s); !nested {
			writeState(s, "    ")
		}
	}

	for _, t := range def.Transitions() {
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", sanitizeID(t.From), edgeLabel(t), sanitizeID(t.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, id := range visited(def, overlay) {
			fmt.Fprintf(&sb, "    class %s visited;\n", id)
		}
		if overlay.Current != "" && def.HasState(overlay.Current) {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}

	return sb.String()
}

func edgeLabel(t *domain.Transition) string {
	label := strings.ReplaceAll(t.Key, "\"", "'")
	if len(t.Guards) == 0 {
		return label
	}
	names := make([]string, len(t.Guards))
	for i, g := range t.Guards {
		names[i] = g.Label()
	}
	return fmt.Sprintf("%s [%s]", label, strings.Join(names, ", "))
}

// visited returns the sanitized, deduplicated visited states known to def.
func visited(def *definition.Definition, o *Overlay) []string {
	var out []string
	for _, s := range o.Visited {
		id := sanitizeID(s)
		if s == "" || !def.HasState(s) || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func sanitizeID(s domain.StateID) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(string(s))
}
