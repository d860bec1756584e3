package stage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/runner"
	"github.com/bgricker/genomeflow/internal/stats"
)

// Assembly modes.
const (
	ModeIsolate = "isolate"
	ModeMeta    = "meta"
	ModeRNA     = "rna"
)

// AssemblerFor returns the SPAdes entry point for mode.
func AssemblerFor(mode string) string {
	switch mode {
	case ModeMeta:
		return "metaspades.py"
	case ModeRNA:
		return "rnaspades.py"
	default:
		return "spades.py"
	}
}

// AssemblyOptions configure the assembly stage.
type AssemblyOptions struct {
	Sample    string
	Forward   string
	Reverse   string
	OutputDir string
	Threads   int
	MemoryGB  int
	Mode      string
	Careful   bool
	Timeout   time.Duration
	// Assembler overrides the executable chosen by AssemblerFor.
	Assembler string
	// Heartbeat is the interval between progress log lines while the
	// assembler runs. Zero disables them.
	Heartbeat time.Duration
	// Quast, when non-nil, assesses the contigs after a successful assembly.
	Quast *QuastOptions
}

// Assembly runs SPAdes and summarises its contigs.
type Assembly struct {
	opts   AssemblyOptions
	exec   Executor
	logger *zap.Logger
}

// NewAssembly constructs the assembly stage.
func NewAssembly(exec Executor, opts AssemblyOptions, logger *zap.Logger) *Assembly {
	if opts.Mode == "" {
		opts.Mode = ModeIsolate
	}
	if opts.Assembler == "" {
		opts.Assembler = AssemblerFor(opts.Mode)
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.MemoryGB < 1 {
		opts.MemoryGB = 16
	}
	return &Assembly{opts: opts, exec: exec, logger: nopIfNil(logger).With(zap.String("stage", NameAssembly))}
}

// Name implements Stage.
func (a *Assembly) Name() string { return NameAssembly }

// Command returns the assembler invocation.
func (a *Assembly) Command() runner.Command {
	var args []string
	if a.opts.Mode == ModeIsolate {
		// SPAdes refuses --isolate together with --careful.
		if a.opts.Careful {
			args = append(args, "--careful")
		} else {
			args = append(args, "--isolate")
		}
	}
	if a.opts.Reverse != "" {
		args = append(args, "-1", a.opts.Forward, "-2", a.opts.Reverse)
	} else {
		args = append(args, "-s", a.opts.Forward)
	}
	args = append(args,
		"-o", a.opts.OutputDir,
		"-t", strconv.Itoa(a.opts.Threads),
		"-m", strconv.Itoa(a.opts.MemoryGB),
	)
	return runner.NewCommand(a.opts.Assembler, args...).WithTimeout(a.opts.Timeout)
}

// ContigsPath is the FASTA file the assembler writes for the configured mode.
func (a *Assembly) ContigsPath() string {
	if a.opts.Mode == ModeRNA {
		return filepath.Join(a.opts.OutputDir, "transcripts.fasta")
	}
	return filepath.Join(a.opts.OutputDir, "contigs.fasta")
}

func (a *Assembly) validate() error {
	switch a.opts.Mode {
	case ModeIsolate, ModeMeta, ModeRNA:
	default:
		return fmt.Errorf("unknown assembly mode %q", a.opts.Mode)
	}
	if a.opts.Forward == "" {
		return errors.New("assembly requires a forward read file")
	}
	if a.opts.Mode == ModeMeta && a.opts.Reverse == "" {
		return errors.New("metagenomic assembly requires paired-end reads")
	}
	if a.opts.Careful && a.opts.Mode != ModeIsolate {
		return fmt.Errorf("careful mode is not supported for %s assemblies", a.opts.Mode)
	}
	inputs := []string{a.opts.Forward}
	if a.opts.Reverse != "" {
		inputs = append(inputs, a.opts.Reverse)
	}
	return checkInputs(inputs)
}

// Run implements Stage.
func (a *Assembly) Run(ctx context.Context) report.StageResult {
	started := time.Now()
	res := report.StageResult{Stage: NameAssembly, Sample: a.opts.Sample}

	if err := a.validate(); err != nil {
		res.Fail(report.FailureInput, err.Error())
		return finish(&res, started)
	}
	if err := os.MkdirAll(a.opts.OutputDir, 0o755); err != nil {
		res.Fail(report.FailureInvocation, fmt.Sprintf("create output directory: %v", err))
		return finish(&res, started)
	}
	res.OutputDir = a.opts.OutputDir

	a.logger.Info("running assembler",
		zap.String("assembler", a.opts.Assembler),
		zap.String("mode", a.opts.Mode),
		zap.Bool("paired", a.opts.Reverse != ""),
	)
	if _, ok := invoke(ctx, a.exec, a.logger, &res, a.Command(), a.opts.Heartbeat); !ok {
		return finish(&res, started)
	}

	contigs := a.ContigsPath()
	if _, err := os.Stat(contigs); err != nil {
		res.Fail(report.FailureParse, fmt.Sprintf("assembler output %s not found", contigs))
		return finish(&res, started)
	}
	summary, err := stats.FromFASTA(contigs)
	if err != nil {
		res.Fail(report.FailureParse, err.Error())
		return finish(&res, started)
	}
	if summary.Contigs == 0 {
		res.Fail(report.FailureParse, fmt.Sprintf("assembler output %s contains no sequences", contigs))
		return finish(&res, started)
	}
	FoldAssembly(&res.Metrics, summary)
	res.Metrics.Set("contigs_file", contigs)

	scaffolds := filepath.Join(a.opts.OutputDir, "scaffolds.fasta")
	if _, err := os.Stat(scaffolds); err == nil {
		if n, err := stats.CountRecords(scaffolds); err == nil {
			res.Metrics.Set("scaffolds", n)
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("read scaffolds: %v", err))
		}
	}

	if a.opts.Quast != nil {
		q := NewQuast(a.exec, *a.opts.Quast, a.logger)
		q.Assess(ctx, contigs, &res)
	}
	return finish(&res, started)
}

// FoldAssembly records contig statistics on m.
func FoldAssembly(m *report.Metrics, s stats.Assembly) {
	m.Set("contigs", s.Contigs)
	m.Set("total_length", s.Total)
	m.Set("longest_contig", s.Longest)
	m.Set("shortest_contig", s.Shortest)
	m.Set("n50", s.N50)
	m.Set("gc_percent", math.Round(s.GC*100)/100)
}
