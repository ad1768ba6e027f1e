package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/hpyharness/internal/cli"
)

var buildCmd = &cobra.Command{
	Use:   "build <template|->",
	Short: "Compile a template and print the artifact path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompile(cmd, args, cli.RunBuild)
	},
}

var makeCmd = &cobra.Command{
	Use:   "make <template|->",
	Short: "Compile a template and check that the module loads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompile(cmd, args, cli.RunMake)
	},
}

func init() {
	for _, c := range []*cobra.Command{buildCmd, makeCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("name", "mytest", "Module name")
		c.Flags().StringSlice("extra", nil, "Auxiliary template compiled into the same module (repeatable)")
		c.Flags().String("workdir", "", "Directory for generated sources and artifacts (default: a new temp dir)")
		c.Flags().String("abi", "", "ABI mode: cpython, universal or debug")
	}
}

func runCompile(cmd *cobra.Command, args []string, run func(ctx context.Context, opts cli.Options, req cli.BuildRequest, w io.Writer) error) error {
	src, err := cli.ReadTemplate(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	extras, _ := cmd.Flags().GetStringSlice("extra")
	workdir, _ := cmd.Flags().GetString("workdir")
	abi, _ := cmd.Flags().GetString("abi")

	opts := commonOptions(cmd)
	opts.WorkDir = workdir
	if abi != "" {
		if opts.Set == nil {
			opts.Set = map[string]string{}
		}
		opts.Set["abi"] = abi
	}

	ctx := cli.NewSignalContext(cmd.Context())
	defer ctx.Cancel()

	err = run(ctx, opts, cli.BuildRequest{Template: src, Name: name, Extras: extras}, cmd.OutOrStdout())
	if sig := ctx.Signal(); sig != nil {
		return fmt.Errorf("interrupted by %v", sig)
	}
	return err
}
