package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowra"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flowra",
	Long:  "Print the version number of flowra. With --config or --workflow, also summarize the configured installation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "flowra version %s\n", strings.TrimSpace(flowra.Version))

		if !cmd.Flags().Changed("config") && !cmd.Flags().Changed("workflow") {
			return nil
		}
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "workflows: %d\nstore: %s\ndeferred: %s\n", len(cfg.Workflows), cfg.Store.Driver, cfg.Deferred.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
