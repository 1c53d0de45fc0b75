package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/flowra/internal/presentation/graph"
)

func TestGeneratePlantUML(t *testing.T) {
	got := graph.GeneratePlantUML(onboarding(t), &graph.Overlay{Current: "verifying"})

	for _, want := range []string{
		"@startuml\n",
		"title onboarding\n",
		"[*] --> init\n",
		"state \"closed\" as closed {\n  state \"verified\" as verified\n",
		"state \"verifying\" as verifying #ffeb3b\n",
		"verifying : subflow kyc\n",
		"init --> owner_info : enter [is_owner]\n",
		"verified --> [*]\n",
		"@enduml\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q\ngot:\n%s", want, got)
		}
	}
	if strings.Contains(got, "closed --> [*]") {
		t.Errorf("groups are not terminal states:\n%s", got)
	}
}
