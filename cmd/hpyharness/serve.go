package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/hpyharness/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve template expansion and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunServe(ctx, commonOptions(cmd), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Listen address")
}
