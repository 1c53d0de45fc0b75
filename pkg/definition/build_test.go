package definition_test

import (
	"testing"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onboardingSchema() *domain.Schema {
	return &domain.Schema{
		States: domain.NewStateSet("init", "owner_info_entered", "verifying", "verified", "declined", "closed"),
		Transitions: []*domain.Transition{
			domain.NewTransition("filling_owner_data", "init", "owner_info_entered"),
			domain.NewTransition("verify", "owner_info_entered", "verifying"),
			domain.NewTransition("approve", "verifying", "verified"),
			domain.NewTransition("decline", "verifying", "declined"),
		},
		Groups: []domain.StateGroup{
			domain.Group("closed", "verified", "declined"),
		},
		Subflows: []domain.Subflow{{
			Key:      "kyc",
			State:    "verifying",
			Workflow: "kyc",
			Start:    "begin",
			Exits:    map[domain.StateID]string{"passed": "approve", "failed": "decline"},
		}},
	}
}

func TestBuild(t *testing.T) {
	def, err := definition.Build("onboarding", onboardingSchema())
	require.NoError(t, err)

	assert.Equal(t, "onboarding", def.Workflow())
	assert.Equal(t, domain.StateID("init"), def.States().Initial)

	tr, ok := def.Transition("filling_owner_data")
	require.True(t, ok)
	assert.Equal(t, domain.StateID("owner_info_entered"), tr.To)
	assert.Equal(t, domain.KindTransition, tr.Kind)

	_, ok = def.Transition("missing")
	assert.False(t, ok)

	keys := []string{}
	for _, tr := range def.Transitions() {
		keys = append(keys, tr.Key)
	}
	assert.Equal(t, []string{"filling_owner_data", "verify", "approve", "decline"}, keys)
	assert.Len(t, def.Outgoing("verifying"), 2)
	assert.True(t, def.IsTerminal("verified"))

	b, ok := def.BindingFor("verifying")
	require.True(t, ok)
	assert.Equal(t, "kyc", b.Key)
	_, ok = def.Subflow("kyc")
	assert.True(t, ok)
}

func TestBuild_Groups(t *testing.T) {
	schema := onboardingSchema()
	schema.States.States = append(schema.States.States, "archived")
	schema.Groups = append(schema.Groups, domain.Group("archived", "closed"))

	def, err := definition.Build("onboarding", schema)
	require.NoError(t, err)

	assert.Equal(t, []domain.StateID{"closed", "archived"}, def.GroupOf("verified"))
	assert.True(t, def.InGroup("declined", "archived"))
	assert.True(t, def.InGroup("closed", "closed"))
	assert.False(t, def.InGroup("init", "closed"))

	p, ok := def.Parent("closed")
	assert.True(t, ok)
	assert.Equal(t, domain.StateID("archived"), p)
	assert.Equal(t, []domain.StateID{"verified", "declined"}, def.StateGroups()["closed"])
}

func TestBuild_Rejects(t *testing.T) {
	cases := map[string]func(*domain.Schema){
		"no states": func(s *domain.Schema) { s.States = domain.StateSet{} },
		"duplicate transition key": func(s *domain.Schema) {
			s.Transitions = append(s.Transitions, domain.NewTransition("verify", "init", "verifying"))
		},
		"unknown from": func(s *domain.Schema) {
			s.Transitions = append(s.Transitions, domain.NewTransition("x", "ghost", "init"))
		},
		"unknown to": func(s *domain.Schema) {
			s.Transitions = append(s.Transitions, domain.NewTransition("x", "init", "ghost"))
		},
		"initial not a member": func(s *domain.Schema) { s.States.Initial = "ghost" },
		"group child unknown": func(s *domain.Schema) {
			s.Groups = append(s.Groups, domain.Group("init", "ghost"))
		},
		"child in two groups": func(s *domain.Schema) {
			s.Groups = append(s.Groups, domain.Group("init", "verified"))
		},
		"group cycle": func(s *domain.Schema) {
			s.Groups = append(s.Groups, domain.Group("verified", "closed"))
		},
		"two subflows on one state": func(s *domain.Schema) {
			dup := s.Subflows[0]
			dup.Key = "other"
			s.Subflows = append(s.Subflows, dup)
		},
		"incomplete subflow": func(s *domain.Schema) { s.Subflows[0].Start = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			schema := onboardingSchema()
			mutate(schema)
			_, err := definition.Build("onboarding", schema)
			assert.ErrorIs(t, err, domain.ErrDefinition)
		})
	}
}

func TestBuild_IsolatedFromSchema(t *testing.T) {
	schema := onboardingSchema()
	def, err := definition.Build("onboarding", schema)
	require.NoError(t, err)

	schema.Transitions[0].To = "closed"
	tr, _ := def.Transition("filling_owner_data")
	assert.Equal(t, domain.StateID("owner_info_entered"), tr.To)
}
