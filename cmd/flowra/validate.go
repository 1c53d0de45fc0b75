package main

import (
	"fmt"

	"github.com/aretw0/flowra/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Lint every configured workflow",
	Long: `Builds each workflow, resolves its subflow bindings and reports states
that ordinary transitions can never reach.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := validator.ValidateAll(cmd.Context(), a.engine.Cache())
		out := cmd.OutOrStdout()
		for _, r := range reports {
			status := "ok"
			if !r.OK() {
				status = "FAIL"
			}
			fmt.Fprintf(out, "%-4s %s (terminal: %v)\n", status, r.Workflow, r.Terminal)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d workflow(s) valid\n", len(reports))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
