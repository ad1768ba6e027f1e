package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/hpyharness/internal/cli"
)

var historyCmd = &cobra.Command{
	Use:   "history [module]",
	Short: "Show recent builds and loads recorded in Redis",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var module string
		if len(args) > 0 {
			module = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")
		return cli.RunHistory(cmd.Context(), commonOptions(cmd), module, limit, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of records to show")
}
