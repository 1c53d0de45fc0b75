package main

import (
	"github.com/aretw0/flowra/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server over stdio",
	Long: `Exposes the engine as MCP tools (apply_transition, jump_to, current_state,
history, list_workflows) and each workflow definition as a resource.
Logs go to stderr so the JSON-RPC channel on stdout stays clean.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := mcp.NewServer(a.engine, a.entities, mcp.WithLogger(a.logger))
		a.logger.Info("starting flowra MCP server (stdio)")
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
