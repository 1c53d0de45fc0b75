package main

import (
	"fmt"

	"github.com/aretw0/flowra/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <workflow>",
	Short: "Export a workflow diagram",
	Long: `Outputs a Mermaid flowchart (default) or a PlantUML state diagram for a workflow.
With --owner-type and --owner-id the entity's history and current state are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		ownerType, _ := cmd.Flags().GetString("owner-type")
		ownerID, _ := cmd.Flags().GetString("owner-id")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		def, err := a.engine.Definition(ctx, args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if ownerType != "" && ownerID != "" {
			inst, err := a.instance(ctx, args[0], ownerType, ownerID)
			if err != nil {
				return err
			}
			history, err := inst.History(ctx)
			if err != nil {
				return err
			}
			current, err := inst.CurrentState(ctx)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFromHistory(history, current)
		}

		switch format {
		case "mermaid":
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
		case "plantuml":
			fmt.Fprint(cmd.OutOrStdout(), graph.GeneratePlantUML(def, overlay))
		default:
			return fmt.Errorf("unknown format %q (mermaid, plantuml)", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Diagram format: mermaid or plantuml")
	graphCmd.Flags().String("owner-type", "", "Highlight the progress of this owner type")
	graphCmd.Flags().String("owner-id", "", "Highlight the progress of this owner id")
}
