package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/internal/presentation/tui"
	"github.com/aretw0/flowra/pkg/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowra",
	Short: "Flowra is a declarative workflow engine",
	Long: `Flowra applies named transitions to entities following workflow definitions
declared in YAML, and records every step in a durable history.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tui.IsTerminal(cmd.OutOrStdout()) {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to flowra.yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSlice("workflow", nil, "Additional workflow YAML files")
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if files, _ := cmd.Flags().GetStringSlice("workflow"); len(files) > 0 {
		cfg.Workflows = append(cfg.Workflows, files...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	return cfg, logging.New(level), nil
}

// openApp loads configuration and wires the application for cmd.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, logger)
}
