package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
)

const (
	plantVisited = "#e1f5fe"
	plantCurrent = "#ffeb3b"
)

// GeneratePlantUML produces a PlantUML state diagram for def.
// Groups become composite states and terminal states lead to [*].
func GeneratePlantUML(def *definition.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("@startuml\n")
	fmt.Fprintf(&sb, "title %s\n", def.Workflow())

	groups := def.StateGroups()
	states := def.States()
	colors := map[string]string{}
	if overlay != nil {
		for _, id := range visited(def, overlay) {
			colors[id] = plantVisited
		}
		if overlay.Current != "" {
			colors[sanitizeID(overlay.Current)] = plantCurrent
		}
	}

	var writeState func(s domain.StateID, indent string)
	writeState = func(s domain.StateID, indent string) {
		id := sanitizeID(s)
		decl := fmt.Sprintf("%sstate \"%s\" as %s", indent, s, id)
		if c, ok := colors[id]; ok {
			decl += " " + c
		}
		if children, ok := groups[s]; ok {
			sb.WriteString(decl + " {\n")
			for _, c := range children {
				writeState(c, indent+"  ")
			}
			sb.WriteString(indent + "}\n")
			return
		}
		sb.WriteString(decl + "\n")
		if sub, ok := def.BindingFor(s); ok {
			fmt.Fprintf(&sb, "%s%s : subflow %s\n", indent, id, sub.Workflow)
		}
	}

	for _, s := range states.States {
		if _, nested := def.Parent(s); !nested {
			writeState(s, "")
		}
	}

	fmt.Fprintf(&sb, "[*] --> %s\n", sanitizeID(states.Initial))
	for _, t := range def.Transitions() {
		fmt.Fprintf(&sb, "%s --> %s : %s\n", sanitizeID(t.From), sanitizeID(t.To), edgeLabel(t))
	}
	for _, s := range states.States {
		if _, isGroup := groups[s]; !isGroup && def.IsTerminal(s) {
			fmt.Fprintf(&sb, "%s --> [*]\n", sanitizeID(s))
		}
	}

	sb.WriteString("@enduml\n")
	return sb.String()
}
