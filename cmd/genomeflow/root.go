package main

import (
	"github.com/spf13/cobra"

	"github.com/bgricker/genomeflow/internal/config"
	"github.com/bgricker/genomeflow/internal/failure"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "genomeflow",
		Short:         "Genomeflow runs quality control and assembly for prokaryotic genomes",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return failure.Validation(err, "invalid flags")
	})

	defaults := config.Default()
	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "configuration file (default "+config.FileName+" in the working directory)")
	persistent.StringP("output", "o", defaults.Output, "output directory")
	persistent.IntP("threads", "t", defaults.Threads, "threads passed to external tools")
	persistent.IntP("memory", "m", defaults.MemoryGB, "memory budget in GB")
	persistent.String("sample", "", "sample name used in reports (default derived from the reads)")
	persistent.String("log-file", "", "write a plain-text execution log to this file")
	persistent.String("log-level", defaults.Log.Level, "log level (debug|info|warn|error)")
	persistent.String("log-format", defaults.Log.Format, "console log format (console|json)")
	persistent.String("format", defaults.Format, "output format (pretty|json)")
	persistent.Bool("no-report", false, "skip Markdown report generation")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// validArgs marks positional argument errors as validation failures.
func validArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return failure.Validation(err, "invalid arguments")
		}
		return nil
	}
}
