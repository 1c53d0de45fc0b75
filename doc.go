/*
Package flowra is a declarative workflow engine for business entities.

A workflow type declares states, transitions between them, optional state
groups and subflow bindings. Entities (orders, customers, invoices) move
through a workflow by applying transitions; the engine checks the current
state, evaluates guards, persists the new Status together with a History
entry in one unit of work, and then runs the transition's actions.

# Concept

The StatusStore is the only source of truth. The engine keeps no per-entity
state, so any number of engines may serve the same store; the store's
conditional upsert decides between concurrent writers.

A subflow binds an outer state to an inner workflow. Entering the bound
state starts the inner workflow for the same entity. Reaching one of its
exit states applies the mapped outer transition, and while the inner
workflow runs the outer one can only leave through those mapped exits.

# Usage

	b := dsl.New("onboarding")
	b.States("init", "owner_info_entered", "verified")
	b.Transition("filling_owner_data").From("init").To("owner_info_entered")
	b.Transition("approve").From("owner_info_entered").To("verified").When("is_owner")

	reg := registry.NewRegistry()
	reg.RegisterPredicate("is_owner", func(tc domain.TransitionContext) bool {
		return tc.AppliedBy == "owner"
	})

	eng, err := flowra.New(
		flowra.WithWorkflows(b.Workflow()),
		flowra.WithResolver(reg),
	)
	if err != nil {
		log.Fatal(err)
	}

	customer := entity.Ref{ID: "42", Type: "customer", Workflows: []string{"onboarding"}}
	res, err := eng.For(customer, "onboarding").Apply(ctx, "filling_owner_data",
		flowra.WithAppliedBy("owner"))

Storage adapters live under pkg/adapters (memory, redis, postgres); the
same engine is served over HTTP and MCP by pkg/adapters/http and
pkg/adapters/mcp, and by the flowra command.
*/
package flowra
