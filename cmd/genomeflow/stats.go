package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/bgricker/genomeflow/internal/config"
	"github.com/bgricker/genomeflow/internal/failure"
	"github.com/bgricker/genomeflow/internal/output"
	"github.com/bgricker/genomeflow/internal/seqio"
	"github.com/bgricker/genomeflow/internal/stats"
)

type statsEntry struct {
	File string `json:"file"`
	stats.Assembly
}

func newStatsCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "stats <contigs.fasta>...",
		Short: "Compute contig statistics (count, length, N50, GC) for FASTA files",
		Args:  validArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, args, csvPath)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write the statistics table to this file (.tsv for tab-separated)")
	return cmd
}

func runStats(cmd *cobra.Command, paths []string, csvPath string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	table := seqio.Table{Columns: stats.Columns}
	entries := make([]statsEntry, 0, len(paths))
	for _, path := range paths {
		a, err := stats.FromFASTA(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return failure.Validation(err, "")
			}
			return fmt.Errorf("compute statistics: %w", err)
		}
		table.Rows = append(table.Rows, a.Row(path))
		entries = append(entries, statsEntry{File: path, Assembly: a})
	}

	if csvPath != "" {
		if err := seqio.WriteTable(csvPath, table, seqio.DelimiterFor(csvPath)); err != nil {
			return failure.Environment(err, "write statistics")
		}
	}

	if cfg.Format == config.FormatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return output.NewPretty(cmd.OutOrStdout()).RenderTable(table)
}
