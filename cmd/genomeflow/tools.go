package main

import (
	"context"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/config"
	"github.com/bgricker/genomeflow/internal/output"
	"github.com/bgricker/genomeflow/internal/runner"
	"github.com/bgricker/genomeflow/internal/version"
)

// knownTools lists every external executable the workflow can call.
var knownTools = []string{"fastqc", "multiqc", "spades.py", "metaspades.py", "rnaspades.py", "quast"}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Report which external tools are available and their versions",
		Args:  validArgs(cobra.NoArgs),
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	checker := version.NewChecker(runner.New(runner.Options{}), version.WithLogger(logger.Logger))
	infos := make([]version.Info, 0, len(knownTools))
	var warnings []string
	for _, name := range knownTools {
		info := checkTool(cmd.Context(), checker, cfg, name)
		infos = append(infos, info)
		if cfg.Warn.VersionMismatch {
			if w := version.MismatchWarning(info, cfg.PinnedVersion(name)); w != "" {
				warnings = append(warnings, w)
			}
		}
	}

	if cfg.Format == config.FormatJSON {
		return output.NewJSON(cmd.OutOrStdout()).Render(output.Report{Tools: infos, Warnings: warnings})
	}
	return output.NewPretty(cmd.OutOrStdout()).RenderTools(infos, warnings)
}

// checkTool probes the configured executable for name but reports it under
// its canonical name.
func checkTool(ctx context.Context, checker *version.Checker, cfg config.Config, name string) version.Info {
	info := checker.Check(ctx, cfg.Tool(name))
	info.Name = name
	return info
}

// pinnedVersionWarnings checks only the tools with a pinned version.
func pinnedVersionWarnings(ctx context.Context, exec version.Prober, cfg config.Config, logger *zap.Logger) []string {
	var names []string
	for name := range cfg.Tools {
		if cfg.PinnedVersion(name) != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	checker := version.NewChecker(exec, version.WithLogger(logger))
	var warnings []string
	for _, name := range names {
		info := checkTool(ctx, checker, cfg, name)
		if w := version.MismatchWarning(info, cfg.PinnedVersion(name)); w != "" {
			logger.Warn(w)
			warnings = append(warnings, w)
		}
	}
	return warnings
}
