package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/runner"
)

// QCOptions configure the quality-control stage.
type QCOptions struct {
	Sample           string
	Inputs           []string
	OutputDir        string
	Threads          int
	Aggregate        bool
	Timeout          time.Duration
	AggregateTimeout time.Duration
	ExtraArgs        []string
	FastQC           string // executable, defaults to "fastqc"
	MultiQC          string // executable, defaults to "multiqc"
}

// QC runs FastQC over every input in one invocation and optionally
// aggregates the reports with MultiQC.
type QC struct {
	opts   QCOptions
	exec   Executor
	logger *zap.Logger
}

// NewQC constructs the quality-control stage.
func NewQC(exec Executor, opts QCOptions, logger *zap.Logger) *QC {
	if opts.FastQC == "" {
		opts.FastQC = "fastqc"
	}
	if opts.MultiQC == "" {
		opts.MultiQC = "multiqc"
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	return &QC{opts: opts, exec: exec, logger: nopIfNil(logger).With(zap.String("stage", NameQC))}
}

// Name implements Stage.
func (q *QC) Name() string { return NameQC }

// Command returns the FastQC invocation.
func (q *QC) Command() runner.Command {
	args := append([]string{}, q.opts.Inputs...)
	args = append(args, "-o", q.opts.OutputDir, "-t", strconv.Itoa(q.opts.Threads))
	args = append(args, q.opts.ExtraArgs...)
	return runner.NewCommand(q.opts.FastQC, args...).WithTimeout(q.opts.Timeout)
}

// AggregateCommand returns the MultiQC invocation over the FastQC outputs.
func (q *QC) AggregateCommand() runner.Command {
	return runner.NewCommand(q.opts.MultiQC, q.opts.OutputDir, "-o", q.opts.OutputDir, "-n", MultiQCReportName).
		WithTimeout(q.opts.AggregateTimeout)
}

// MultiQCReportName is the base name of the aggregated report.
const MultiQCReportName = "multiqc_report"

// Run implements Stage.
func (q *QC) Run(ctx context.Context) report.StageResult {
	started := time.Now()
	res := report.StageResult{Stage: NameQC, Sample: q.opts.Sample}

	if len(q.opts.Inputs) == 0 {
		res.Fail(report.FailureInput, "quality control requires at least one read file")
		return finish(&res, started)
	}
	if err := checkInputs(q.opts.Inputs); err != nil {
		res.Fail(report.FailureInput, err.Error())
		return finish(&res, started)
	}
	if err := os.MkdirAll(q.opts.OutputDir, 0o755); err != nil {
		res.Fail(report.FailureInvocation, fmt.Sprintf("create output directory: %v", err))
		return finish(&res, started)
	}
	res.OutputDir = q.opts.OutputDir

	q.logger.Info("running FastQC", zap.Int("files", len(q.opts.Inputs)), zap.String("output", q.opts.OutputDir))
	if _, ok := invoke(ctx, q.exec, q.logger, &res, q.Command(), 0); !ok {
		return finish(&res, started)
	}

	for _, input := range q.opts.Inputs {
		name := FastQCName(input)
		rep, err := ReadFastQC(q.opts.OutputDir, name)
		if err != nil {
			if errors.Is(err, errNoFastQCOutput) {
				q.logger.Warn("no FastQC metrics extracted", zap.String("file", input))
			} else {
				res.Warnings = append(res.Warnings, err.Error())
				q.logger.Warn("FastQC output unreadable", zap.Error(err))
			}
			continue
		}
		foldFastQC(&res.Metrics, rep)
	}

	if q.opts.Aggregate {
		q.aggregate(ctx, &res)
	}
	return finish(&res, started)
}

func foldFastQC(m *report.Metrics, rep FastQCReport) {
	key := func(k string) string { return rep.Name + "." + k }
	if rep.Status != "" {
		m.Set(key("status"), rep.Status)
		m.Set(key("failed_modules"), rep.FailedModules())
	}
	for _, kv := range []struct{ name, value string }{
		{"total_sequences", rep.TotalSequences},
		{"poor_quality", rep.PoorQuality},
		{"sequence_length", rep.SequenceLength},
		{"gc_content", rep.GC},
	} {
		if kv.value == "" {
			continue
		}
		if n, err := strconv.ParseInt(kv.value, 10, 64); err == nil {
			m.Set(key(kv.name), n)
		} else {
			m.Set(key(kv.name), kv.value)
		}
	}
}

// aggregate is optional: a missing or failing MultiQC only adds a warning.
func (q *QC) aggregate(ctx context.Context, res *report.StageResult) {
	if _, err := q.exec.LookPath(q.opts.MultiQC); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not available; aggregation skipped", q.opts.MultiQC))
		q.logger.Warn("MultiQC not available, skipping aggregation")
		return
	}
	cmd := q.AggregateCommand()
	out, err := q.exec.Run(ctx, cmd)
	res.Commands = append(res.Commands, out)
	if err != nil || !out.Success {
		msg := failureMessage(cmd.Name, out)
		if err != nil {
			msg = err.Error()
		}
		res.Warnings = append(res.Warnings, "aggregation failed: "+msg)
		q.logger.Warn("MultiQC failed", zap.String("message", msg))
		return
	}
	html := filepath.Join(q.opts.OutputDir, MultiQCReportName+".html")
	if _, err := os.Stat(html); err == nil {
		res.Metrics.Set("multiqc_report", html)
	}
}
