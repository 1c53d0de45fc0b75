package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage derived workflow definitions",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm [workflow...]",
	Short: "Build and publish definitions (all when none are named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		warmed, err := a.engine.Cache().Warm(cmd.Context(), args...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "warmed: %s\n", strings.Join(warmed, ", "))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [workflow...]",
	Short: "Drop cached definitions (all when none are named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		cache := a.engine.Cache()
		cleared := args
		if len(args) == 0 {
			if cleared, err = cache.InvalidateAll(ctx); err != nil {
				return err
			}
		}
		for _, w := range args {
			if err := cache.Invalidate(ctx, w); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared: %s\n", strings.Join(cleared, ", "))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheWarmCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
