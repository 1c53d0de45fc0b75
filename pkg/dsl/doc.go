/*
Package dsl provides a fluent Go builder and a YAML format for declaring Flowra workflows.

Example usage:

	b := dsl.New("onboarding")
	b.States("init", "owner_info_entered", "verifying", "verified", "declined")

	b.Transition("filling_owner_data").From("init").To("owner_info_entered").
		When("is_owner").
		Then("audit").
		Later("send_welcome_mail")

	b.Group("closed").Children("verified", "declined")

	b.Subflow("kyc").Bind("verifying").To("kyc").Start("begin").
		Exit("passed", "approve").
		Exit("failed", "decline")

	workflow := b.Workflow() // a definition.Workflow

The same workflow as a file, loaded with LoadFile:

	type: onboarding
	states: [init, owner_info_entered, verifying, verified, declined]
	groups:
	  closed: [verified, declined]
	transitions:
	  - key: filling_owner_data
	    from: init
	    to: owner_info_entered
	    guards: [is_owner]
	    actions: [audit, "defer:send_welcome_mail"]
	subflows:
	  - key: kyc
	    state: verifying
	    workflow: kyc
	    start: begin
	    exits: {passed: approve, failed: decline}

Guards and actions named in files are references resolved through a ports.Resolver.
*/
package dsl
