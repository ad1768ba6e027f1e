package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/hpyharness/internal/cli"
	"github.com/aretw0/hpyharness/internal/presentation/tui"
)

var expandCmd = &cobra.Command{
	Use:   "expand <template|->",
	Short: "Print the C source generated from a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := cli.ReadTemplate(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		render, _ := cmd.Flags().GetBool("render")
		if !cmd.Flags().Changed("render") {
			render = tui.IsTerminal(os.Stdout)
		}
		return cli.RunExpand(commonOptions(cmd), cli.ExpandRequest{
			Template: src,
			Name:     name,
			Render:   render,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(expandCmd)
	expandCmd.Flags().String("name", "mytest", "Module name")
	expandCmd.Flags().Bool("render", false, "Highlight the output (default: when stdout is a terminal)")
}
