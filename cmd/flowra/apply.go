package main

import (
	"fmt"

	"github.com/aretw0/flowra"
	"github.com/aretw0/flowra/pkg/bulk"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/entity"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <workflow> <owner-type> <owner-id> <transition>",
	Short: "Apply a transition to an entity",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		comments, _ := cmd.Flags().GetStringArray("comment")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		inst, err := a.instance(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		opts := []flowra.ApplyOption{flowra.WithAppliedBy(by)}
		for _, c := range comments {
			opts = append(opts, flowra.WithComment(c))
		}
		res, err := inst.Apply(ctx, args[3], opts...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s -> %s\n", res.Applied.Transition, res.Applied.From, res.Applied.To)
		if res.Status.ID != res.Applied.ID {
			fmt.Fprintf(out, "  now in %s after %s\n", res.Status.To, res.Status.Transition)
		}
		return res.Err()
	},
}

var jumpCmd = &cobra.Command{
	Use:   "jump <workflow> <owner-type> <owner-id> <state>",
	Short: "Force an entity into a state, bypassing guards and actions",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		key, _ := cmd.Flags().GetString("key")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		inst, err := a.instance(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		res, err := inst.JumpTo(ctx, domain.StateID(args[3]), key, by)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", res.Applied.Transition, res.Applied.From, res.Applied.To)
		return nil
	},
}

var bulkCmd = &cobra.Command{
	Use:   "bulk <workflow> <owner-type> <transition> <owner-id...>",
	Short: "Apply one transition to many entities of a type",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		keepGoing, _ := cmd.Flags().GetBool("continue-on-error")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ownerType := args[1]
		workflows := a.entities.Workflows(ownerType)
		targets := make([]any, 0, len(args)-3)
		for _, id := range args[3:] {
			targets = append(targets, entity.Ref{ID: id, Type: ownerType, Workflows: workflows})
		}

		svc := bulk.NewService(a.engine, bulk.WithLogger(a.logger))
		res, err := svc.Apply(cmd.Context(), args[0], targets, args[2], bulk.Options{
			AppliedBy:       by,
			ContinueOnError: keepGoing,
		})
		if res != nil {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "applied %d, failed %d\n", res.SuccessfulCount(), res.FailedCount())
			for _, f := range res.Failures {
				fmt.Fprintf(out, "  %v: %v\n", f.Target, f.Err)
			}
		}
		return err
	},
}

func init() {
	applyCmd.Flags().String("by", "", "Actor recorded as applied_by")
	applyCmd.Flags().StringArray("comment", nil, "Comment attached to the history entry (repeatable)")
	jumpCmd.Flags().String("by", "", "Actor recorded as applied_by")
	jumpCmd.Flags().String("key", "", "Transition key recorded for the jump")
	bulkCmd.Flags().String("by", "", "Actor recorded as applied_by")
	bulkCmd.Flags().Bool("continue-on-error", false, "Keep going after a failure")

	rootCmd.AddCommand(applyCmd, jumpCmd, bulkCmd)
}
