package flowra_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/flowra"
	"github.com/aretw0/flowra/pkg/dsl"
	"github.com/aretw0/flowra/pkg/entity"
)

func ExampleNew() {
	b := dsl.New("invoice")
	b.States("draft", "sent", "paid")
	b.Transition("send").From("draft").To("sent")
	b.Transition("pay").From("sent").To("paid")

	eng, err := flowra.New(flowra.WithWorkflows(b.Workflow()))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	invoice := eng.For(entity.Ref{ID: "INV-1", Type: "invoice", Workflows: []string{"invoice"}}, "invoice")
	for _, key := range []string{"send", "pay"} {
		res, err := invoice.Apply(ctx, key, flowra.WithAppliedBy("billing"))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %s -> %s\n", key, res.Applied.From, res.Applied.To)
	}

	_, err = invoice.Apply(ctx, "send")
	fmt.Println(err)

	// Output:
	// send: draft -> sent
	// pay: sent -> paid
	// applying transition (send) while current state is (paid) is not applicable, state must be (draft)
}
