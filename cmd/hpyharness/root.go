package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/hpyharness/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "hpyharness",
	Short: "Build and load HPy test modules from C templates",
	Long: `hpyharness expands @EXPORT/@INIT style directives in C templates,
compiles them with the configured toolchain and checks that the result loads.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "hpyharness.yaml", "Path to the config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().StringToString("set", nil, "Build option override, e.g. --set debug=true")
}

// commonOptions reads the persistent flags.
func commonOptions(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	set, _ := cmd.Flags().GetStringToString("set")
	return cli.Options{
		ConfigPath: configPath,
		LogLevel:   level,
		LogFormat:  format,
		Set:        set,
	}
}
