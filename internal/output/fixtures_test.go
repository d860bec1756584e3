package output

import (
	"time"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/runner"
)

func sampleResult() report.WorkflowResult {
	var qcMetrics report.Metrics
	qcMetrics.Set("ecoli_R1.status", "PASS")
	qcMetrics.Set("ecoli_R1.total_sequences", int64(250000))

	var asmMetrics report.Metrics
	asmMetrics.Set("contigs", 3)
	asmMetrics.Set("total_length", int64(3000))
	asmMetrics.Set("n50", int64(1000))
	asmMetrics.Set("gc_percent", 50.0)

	res := report.WorkflowResult{
		RunID:     "run-1",
		Sample:    "ecoli",
		Mode:      "full",
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Stages: []report.StageResult{
			{
				Stage:     "qc",
				Sample:    "ecoli",
				Status:    report.StatusPassed,
				OutputDir: "/runs/results/ecoli/qc",
				Metrics:   qcMetrics,
				Warnings:  []string{"multiqc not found; skipping aggregation"},
				Commands: []runner.Result{{
					Command:    []string{"fastqc", "ecoli_R1.fastq.gz", "-o", "/runs/results/ecoli/qc", "-t", "4"},
					DurationMS: 1500,
					Success:    true,
				}},
				Duration:   30 * time.Second,
				DurationMS: 30000,
			},
			{
				Stage:      "assembly",
				Sample:     "ecoli",
				Status:     report.StatusFailed,
				OutputDir:  "/runs/results/ecoli/assembly",
				Metrics:    asmMetrics,
				Message:    "spades.py exited with code 1\nout of memory",
				Failure:    report.FailureInvocation,
				Duration:   60 * time.Second,
				DurationMS: 60000,
			},
		},
	}
	res.Finalize()
	return res
}
