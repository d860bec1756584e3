package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/config"
	"github.com/bgricker/genomeflow/internal/discovery"
	"github.com/bgricker/genomeflow/internal/failure"
	"github.com/bgricker/genomeflow/internal/filter"
	"github.com/bgricker/genomeflow/internal/metrics"
	"github.com/bgricker/genomeflow/internal/output"
	"github.com/bgricker/genomeflow/internal/publish"
	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/resources"
	"github.com/bgricker/genomeflow/internal/runner"
	"github.com/bgricker/genomeflow/internal/samplesheet"
	"github.com/bgricker/genomeflow/internal/seqio"
	"github.com/bgricker/genomeflow/internal/stage"
	"github.com/bgricker/genomeflow/internal/workflow"
)

// Artifact names written for every sample.
const (
	statsFile   = "assembly_stats.csv"
	summaryFile = "summary.md"
	metricsFile = "metrics.prom"
)

const assemblyHeartbeat = time.Minute

type runOptions struct {
	forward       string
	reverse       string
	inputs        []string
	inputDir      string
	samplesheet   string
	sampleFilters []string
	publish       string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run quality control and/or assembly for one or more samples",
		Args:  validArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.String("mode", config.ModeFull, "workflow mode (qc|assembly|full)")
	flags.StringVarP(&opts.forward, "forward", "1", "", "forward (or single-end) read file")
	flags.StringVarP(&opts.reverse, "reverse", "2", "", "reverse read file")
	flags.StringArrayVar(&opts.inputs, "input", nil, "read file to include, paired by _R1/_R2 naming (repeatable)")
	flags.StringVar(&opts.inputDir, "input-dir", "", "directory to scan for FASTQ files")
	flags.StringVar(&opts.samplesheet, "samplesheet", "", "YAML, CSV or TSV sheet listing samples")
	flags.StringArrayVar(&opts.sampleFilters, "sample-filter", nil, "substring or /regex/ selecting samples; prefix with ! to exclude (repeatable)")
	flags.StringVar(&opts.publish, "publish", "", "upload artifacts to s3://bucket/prefix")
	flags.String("assembly-mode", config.AssemblyIsolate, "SPAdes mode (isolate|meta|rna)")
	flags.Bool("careful", false, "run SPAdes in careful mode")
	flags.Bool("no-quast", false, "skip QUAST assessment")
	flags.String("reference", "", "reference genome for QUAST")
	flags.Bool("no-aggregate", false, "skip MultiQC aggregation")
	flags.StringArray("fastqc-arg", nil, "extra argument passed to FastQC (repeatable)")

	return cmd
}

func runWorkflow(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.publish != "" {
		target, err := publish.ParseURL(opts.publish)
		if err != nil {
			return failure.Validation(err, "invalid --publish")
		}
		cfg.Publish.Bucket, cfg.Publish.Prefix = target.Bucket, target.Prefix
	}
	mode, err := workflow.ParseMode(cfg.Mode)
	if err != nil {
		return failure.Validation(err, "")
	}

	samples, warnings, err := resolveSamples(cfg, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return failure.Environment(err, "create output directory")
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()
	ctx := cmd.Context()

	exec := runner.New(runner.Options{Logger: logger.Logger})
	if cfg.Warn.Resources {
		warnings = append(warnings, resources.Warn(ctx, resources.Probe{}, logger.Logger, cfg.Threads, cfg.MemoryGB)...)
	}
	if cfg.Warn.VersionMismatch {
		warnings = append(warnings, pinnedVersionWarnings(ctx, exec, cfg, logger.Logger)...)
	}

	recorder := metrics.New()
	orcOpts := []workflow.Option{workflow.WithObserver(recorder)}
	if cfg.Format == config.FormatPretty {
		orcOpts = append(orcOpts, workflow.WithObserver(output.NewProgress(cmd.ErrOrStderr())))
	}
	orc := workflow.New(logger.Logger, orcOpts...)

	multi := len(samples) > 1
	results := make([]report.WorkflowResult, 0, len(samples))
	var artifacts []string
	for _, rs := range samples {
		dir := cfg.Output
		if multi {
			dir = filepath.Join(cfg.Output, rs.Sample)
		}
		res := orc.Run(ctx, workflow.Request{
			Sample:   rs.Sample,
			Mode:     mode,
			QC:       buildQC(exec, cfg, rs, dir, logger.Logger),
			Assembly: buildAssembly(exec, cfg, rs, dir, logger.Logger),
		})
		recorder.RecordWorkflow(res)
		results = append(results, res)

		files, err := writeArtifacts(cfg, dir, res)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, files...)
	}

	summary := report.Summarize(results)
	if multi && cfg.Report.Enabled {
		path := filepath.Join(cfg.Output, summaryFile)
		doc := output.BuildSummary(results, output.ReportOptions{Generated: time.Now()})
		if err := output.WriteFile(path, doc); err != nil {
			return failure.Environment(err, "write summary")
		}
		artifacts = append(artifacts, path)
	}
	metricsPath := filepath.Join(cfg.Output, metricsFile)
	if err := recorder.WriteTextfile(metricsPath); err != nil {
		return failure.Environment(err, "write metrics")
	}
	artifacts = append(artifacts, metricsPath)

	if cfg.Publish.Enabled() {
		uris, err := publishArtifacts(ctx, cfg, results, artifacts, logger.Logger)
		if err != nil {
			return err
		}
		logger.Info("artifacts published", zap.Int("files", len(uris)))
	}

	if err := render(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Format, results, summary, warnings); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d stages failed", summary.Failed, summary.TotalStages)
	}
	return nil
}

// resolveSamples turns the input flags into read sets. Exactly one input
// source may be used.
func resolveSamples(cfg config.Config, opts *runOptions) ([]discovery.ReadSet, []string, error) {
	sources := 0
	for _, set := range []bool{opts.forward != "" || opts.reverse != "", len(opts.inputs) > 0, opts.inputDir != "", opts.samplesheet != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, nil, failure.Validationf("use only one of -1/-2, --input, --input-dir or --samplesheet")
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, failure.Environment(err, "determine working directory")
	}

	var (
		sets     []discovery.ReadSet
		warnings []string
	)
	switch {
	case opts.samplesheet != "":
		sheet, err := samplesheet.Load(opts.samplesheet)
		if err != nil {
			return nil, nil, failure.Validation(err, "")
		}
		for _, w := range sheet.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", opts.samplesheet, w))
		}
		sets = sheet.Samples
	case opts.forward != "" || opts.reverse != "":
		if opts.forward == "" {
			return nil, nil, failure.Validationf("--reverse requires --forward")
		}
		paths := []string{opts.forward}
		if opts.reverse != "" {
			paths = append(paths, opts.reverse)
		}
		files, err := discovery.Explicit(wd, paths)
		if err != nil {
			return nil, nil, failure.Validation(err, "")
		}
		rs := discovery.ReadSet{Sample: discovery.SampleName(files[0]), Forward: files[0]}
		if len(files) > 1 {
			rs.Reverse = files[1]
		}
		sets = []discovery.ReadSet{rs}
	case len(opts.inputs) > 0:
		files, err := discovery.Explicit(wd, opts.inputs)
		if err != nil {
			return nil, nil, failure.Validation(err, "")
		}
		sets = discovery.Pair(files)
	case opts.inputDir != "":
		files, err := discovery.Reads(opts.inputDir)
		if err != nil {
			return nil, nil, failure.Validation(err, fmt.Sprintf("scan %s", opts.inputDir))
		}
		sets = discovery.Pair(files)
	default:
		return nil, nil, failure.Validationf("no input reads: use -1/-2, --input, --input-dir or --samplesheet")
	}

	if cfg.Sample != "" && len(sets) == 1 {
		sets[0].Sample = cfg.Sample
	}
	patterns, err := filter.Compile(opts.sampleFilters)
	if err != nil {
		return nil, nil, failure.Validation(err, "")
	}
	sets = filter.Select(sets, func(rs discovery.ReadSet) string { return rs.Sample }, patterns)
	if len(sets) == 0 {
		return nil, nil, failure.Validationf("no samples left to process")
	}
	return sets, warnings, nil
}

func buildQC(exec stage.Executor, cfg config.Config, rs discovery.ReadSet, dir string, logger *zap.Logger) stage.Stage {
	if !cfg.RunsQC() {
		return nil
	}
	return stage.NewQC(exec, stage.QCOptions{
		Sample:           rs.Sample,
		Inputs:           rs.Files(),
		OutputDir:        filepath.Join(dir, stage.NameQC),
		Threads:          cfg.Threads,
		Aggregate:        cfg.QC.Aggregate,
		Timeout:          cfg.QC.Timeout,
		AggregateTimeout: cfg.QC.AggregateTimeout,
		ExtraArgs:        cfg.QC.ExtraArgs,
		FastQC:           cfg.Tool("fastqc"),
		MultiQC:          cfg.Tool("multiqc"),
	}, logger)
}

func buildAssembly(exec stage.Executor, cfg config.Config, rs discovery.ReadSet, dir string, logger *zap.Logger) stage.Stage {
	if !cfg.RunsAssembly() {
		return nil
	}
	opts := stage.AssemblyOptions{
		Sample:    rs.Sample,
		Forward:   rs.Forward,
		Reverse:   rs.Reverse,
		OutputDir: filepath.Join(dir, stage.NameAssembly),
		Threads:   cfg.Threads,
		MemoryGB:  cfg.MemoryGB,
		Mode:      cfg.Assembly.Mode,
		Careful:   cfg.Assembly.Careful,
		Timeout:   cfg.Assembly.Timeout,
		Assembler: cfg.Tool(stage.AssemblerFor(cfg.Assembly.Mode)),
		Heartbeat: assemblyHeartbeat,
	}
	if cfg.Assembly.Quast {
		opts.Quast = &stage.QuastOptions{
			OutputDir: filepath.Join(dir, "quast"),
			Threads:   cfg.Threads,
			Reference: cfg.Assembly.Reference,
			Timeout:   cfg.Assembly.QuastTimeout,
			Quast:     cfg.Tool("quast"),
		}
	}
	return stage.NewAssembly(exec, opts, logger)
}

// writeArtifacts stores results.json, the assembly statistics table and the
// Markdown report for one sample and returns the paths written.
func writeArtifacts(cfg config.Config, dir string, res report.WorkflowResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, failure.Environment(err, "create sample directory")
	}
	var written []string

	resultsPath := filepath.Join(dir, output.ResultsFile)
	if err := output.WriteResults(resultsPath, res); err != nil {
		return written, failure.Environment(err, "")
	}
	written = append(written, resultsPath)

	if table := output.StatsTable([]report.WorkflowResult{res}); len(table.Rows) > 0 {
		path := filepath.Join(dir, statsFile)
		if err := seqio.WriteTable(path, table, ','); err != nil {
			return written, failure.Environment(err, "write assembly statistics")
		}
		written = append(written, path)
	}

	if cfg.Report.Enabled {
		path := cfg.Report.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		doc := output.BuildReport(res, output.ReportOptions{Title: cfg.Report.Title, Generated: time.Now(), BaseDir: dir})
		if err := output.WriteFile(path, doc); err != nil {
			return written, failure.Environment(err, "write report")
		}
		written = append(written, path)
	}
	return written, nil
}

func publishArtifacts(ctx context.Context, cfg config.Config, results []report.WorkflowResult, files []string, logger *zap.Logger) ([]string, error) {
	batchID := uuid.NewString()
	if len(results) == 1 {
		batchID = results[0].RunID
	}
	p, err := publish.New(ctx, publish.Options{
		Target:   publish.Target{Bucket: cfg.Publish.Bucket, Prefix: cfg.Publish.Prefix},
		Region:   cfg.Publish.Region,
		Endpoint: cfg.Publish.Endpoint,
	}, logger)
	if err != nil {
		return nil, failure.Environment(err, "configure publishing")
	}
	uris, err := p.Upload(ctx, batchID, cfg.Output, files)
	if err != nil {
		return uris, failure.Environment(err, "publish artifacts")
	}
	return uris, nil
}

func render(stdout, stderr io.Writer, format string, results []report.WorkflowResult, summary report.Summary, warnings []string) error {
	switch format {
	case config.FormatJSON:
		return output.NewJSON(stdout).Render(output.Report{Results: results, Summary: summary, Warnings: warnings})
	default:
		if err := output.NewPretty(stdout).RenderResults(results, summary); err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(stderr, "warning: %s\n", w)
		}
		return nil
	}
}
