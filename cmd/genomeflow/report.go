package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bgricker/genomeflow/internal/failure"
	"github.com/bgricker/genomeflow/internal/output"
	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/seqio"
)

type reportOptions struct {
	input     string
	results   string
	delimiter string
	noHeader  bool
	title     string
	out       string
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a CSV/TSV table and run results as a Markdown report",
		Args:  validArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "CSV or TSV table to include")
	flags.StringVar(&opts.results, "results", "", "results.json file or directory of results to include")
	flags.StringVar(&opts.delimiter, "delimiter", "", "table delimiter (default from the file extension)")
	flags.BoolVar(&opts.noHeader, "no-header", false, "the table has no header row")
	flags.StringVar(&opts.title, "title", "", "report title")
	flags.StringVar(&opts.out, "out", "", "report path (default <output>/<report file>)")
	return cmd
}

func runReport(cmd *cobra.Command, opts *reportOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.input == "" && opts.results == "" {
		return failure.Validationf("report needs --input, --results or both")
	}
	title := opts.title
	if title == "" {
		title = cfg.Report.Title
	}

	doc := output.Document{Title: title}
	if opts.results != "" {
		results, err := loadResults(opts.results)
		if err != nil {
			return err
		}
		ropts := output.ReportOptions{Title: title, Generated: time.Now(), BaseDir: filepath.Dir(opts.results)}
		switch len(results) {
		case 0:
		case 1:
			doc = output.BuildReport(results[0], ropts)
		default:
			doc = output.BuildSummary(results, ropts)
		}
	}

	if opts.input != "" {
		table, err := readInputTable(opts)
		if err != nil {
			return err
		}
		doc.Sections = append(doc.Sections, output.Section{Title: filepath.Base(opts.input), Table: &table})
	}

	path := opts.out
	if path == "" {
		path = cfg.ReportPath()
	}
	if err := output.WriteFile(path, doc); err != nil {
		return failure.Environment(err, "write report")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", path)
	return nil
}

func loadResults(path string) ([]report.WorkflowResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, failure.Validation(err, "")
	}
	if info.IsDir() {
		results, err := output.FindResults(path)
		if err != nil {
			return nil, fmt.Errorf("load results: %w", err)
		}
		return results, nil
	}
	res, err := output.ReadResults(path)
	if err != nil {
		return nil, failure.Validation(err, "")
	}
	return []report.WorkflowResult{res}, nil
}

func readInputTable(opts *reportOptions) (seqio.Table, error) {
	delim := seqio.DelimiterFor(opts.input)
	if opts.delimiter != "" {
		d, err := seqio.ParseDelimiter(opts.delimiter)
		if err != nil {
			return seqio.Table{}, failure.Validation(err, "")
		}
		delim = d
	}
	f, err := os.Open(opts.input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return seqio.Table{}, failure.Validation(err, "")
		}
		return seqio.Table{}, failure.Environment(err, "")
	}
	defer f.Close()

	table, err := seqio.DecodeTable(f, delim, !opts.noHeader)
	if err != nil {
		return seqio.Table{}, failure.Validation(err, fmt.Sprintf("parse %s", opts.input))
	}
	return output.TableFromRows(table.Rows, table.Columns...), nil
}
