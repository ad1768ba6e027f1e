package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/hpyharness"
	"github.com/aretw0/hpyharness/internal/cli"
	"github.com/aretw0/hpyharness/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server on stdio",
	Long: `Starts the harness as an MCP server so agents can expand templates
and build modules as tools. Logs go to stderr; stdout carries JSON-RPC.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.NewApp(commonOptions(cmd))
		if err != nil {
			return err
		}
		defer app.Close()
		return mcp.NewServer(app.Harness, hpyharness.Version).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
