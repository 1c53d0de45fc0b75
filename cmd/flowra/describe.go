package main

import (
	"fmt"

	"github.com/aretw0/flowra/internal/presentation/tui"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <workflow>",
	Short: "Document a workflow's states, transitions and subflows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		def, err := a.engine.Definition(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, tui.DescribeMarkdown(def))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <workflow> <owner-type> <owner-id>",
	Short: "Show the transitions recorded for an entity",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		inst, err := a.instance(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		history, err := inst.History(cmd.Context())
		if err != nil {
			return err
		}
		owner := domain.Owner{Type: args[1], ID: args[2]}
		return render(cmd, tui.HistoryMarkdown(owner, args[0], history))
	},
}

func render(cmd *cobra.Command, markdown string) error {
	out := cmd.OutOrStdout()
	text, err := tui.NewRenderer(out)(markdown)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, text)
	return err
}

func init() {
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(historyCmd)
}
