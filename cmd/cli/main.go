// Package main provides the wyckoff command-line tool: analyse a chart from
// the terminal and keep the journal in a JSON file between runs.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath  string
	journalPath string
	verbose     bool
}

func rootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "wyckoff",
		Short:        "Chart analysis journal backed by hosted LLM providers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("WYCKOFF_CONFIG_PATH"), "Path to config.yaml")
	root.PersistentFlags().StringVar(&opts.journalPath, "journal", "", "Journal file (default: journal.path from config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(analyzeCmd(opts), journalCmd(opts), catalogCmd(opts), statsCmd(opts))
	return root
}
