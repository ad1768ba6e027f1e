package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/hpyharness"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hpyharness",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hpyharness version %s\n", hpyharness.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
