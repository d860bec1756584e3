package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/runner"
	"github.com/bgricker/genomeflow/internal/seqio"
)

// QuastOptions configure assembly quality assessment.
type QuastOptions struct {
	OutputDir string
	Threads   int
	Reference string
	Timeout   time.Duration
	Quast     string // executable, defaults to "quast"
}

// Quast runs QUAST over an assembly. It is an optional enhancement: problems
// become warnings on the assembly result.
type Quast struct {
	opts   QuastOptions
	exec   Executor
	logger *zap.Logger
}

// NewQuast constructs the assessor.
func NewQuast(exec Executor, opts QuastOptions, logger *zap.Logger) *Quast {
	if opts.Quast == "" {
		opts.Quast = "quast"
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	return &Quast{opts: opts, exec: exec, logger: nopIfNil(logger)}
}

// Command returns the QUAST invocation for contigs.
func (q *Quast) Command(contigs string) runner.Command {
	args := []string{contigs, "-o", q.opts.OutputDir, "-t", strconv.Itoa(q.opts.Threads)}
	if q.opts.Reference != "" {
		args = append(args, "-r", q.opts.Reference)
	}
	return runner.NewCommand(q.opts.Quast, args...).WithTimeout(q.opts.Timeout)
}

// Assess runs QUAST and folds report.tsv into res as quast.<metric>.
func (q *Quast) Assess(ctx context.Context, contigs string, res *report.StageResult) {
	if _, err := q.exec.LookPath(q.opts.Quast); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not available; quality assessment skipped", q.opts.Quast))
		q.logger.Warn("QUAST not available, skipping assessment")
		return
	}
	if q.opts.Reference != "" {
		if _, err := os.Stat(q.opts.Reference); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("reference %s not found; assessing without it", q.opts.Reference))
			q.opts.Reference = ""
		}
	}

	cmd := q.Command(contigs)
	out, err := q.exec.Run(ctx, cmd)
	res.Commands = append(res.Commands, out)
	if err != nil || !out.Success {
		msg := failureMessage(cmd.Name, out)
		if err != nil {
			msg = err.Error()
		}
		res.Warnings = append(res.Warnings, "quality assessment failed: "+msg)
		q.logger.Warn("QUAST failed", zap.String("message", msg))
		return
	}

	metrics, err := ReadQuastReport(filepath.Join(q.opts.OutputDir, "report.tsv"))
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
		return
	}
	for _, m := range metrics {
		res.Metrics.Set("quast."+m.Name, m.Value)
	}
}

// ReadQuastReport parses QUAST's two-column report.tsv.
func ReadQuastReport(path string) (report.Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open QUAST report: %w", err)
	}
	defer f.Close()

	table, err := seqio.DecodeTable(f, '\t', false)
	if err != nil {
		return nil, fmt.Errorf("parse QUAST report %s: %w", path, err)
	}
	var out report.Metrics
	for _, row := range table.Rows {
		key := row["col_0"]
		if key == "" || key == "Assembly" {
			continue
		}
		value := strings.TrimSpace(row["col_1"])
		out.Set(MetricKey(key), numeric(value))
	}
	return out, nil
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// MetricKey normalises a tool's metric label, e.g. "# contigs (>= 1000 bp)"
// becomes "contigs_ge_1000_bp".
func MetricKey(label string) string {
	k := strings.ToLower(label)
	k = strings.ReplaceAll(k, ">=", " ge ")
	k = strings.ReplaceAll(k, "%", " pct ")
	k = nonWord.ReplaceAllString(k, "_")
	return strings.Trim(k, "_")
}

func numeric(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
