package stage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/runner"
)

func TestQCCommand(t *testing.T) {
	q := NewQC(newFakeExec(), QCOptions{
		Inputs:    []string{"a_R1.fq", "a_R2.fq"},
		OutputDir: "out/qc",
		Threads:   4,
		ExtraArgs: []string{"--nogroup"},
	}, nil)
	got := q.Command().String()
	want := "fastqc a_R1.fq a_R2.fq -o out/qc -t 4 --nogroup"
	if got != want {
		t.Fatalf("Command() = %q, want %q", got, want)
	}
	if agg := q.AggregateCommand().String(); agg != "multiqc out/qc -o out/qc -n multiqc_report" {
		t.Fatalf("AggregateCommand() = %q", agg)
	}
}

func TestQCRunExtractsMetricsFromZip(t *testing.T) {
	dir := t.TempDir()
	reads := filepath.Join(dir, "r_R1.fastq.gz")
	touch(t, reads, "")
	out := filepath.Join(dir, "qc")

	exec := newFakeExec().
		on("fastqc", func(cmd runner.Command) runner.Result {
			writeZip(t, filepath.Join(argAfter(cmd, "-o"), "r_R1_fastqc.zip"), map[string]string{
				"r_R1_fastqc/summary.txt":     summaryTxt,
				"r_R1_fastqc/fastqc_data.txt": dataTxt,
			})
			return ok()
		}).
		on("multiqc", func(cmd runner.Command) runner.Result {
			touch(t, filepath.Join(argAfter(cmd, "-o"), "multiqc_report.html"), "<html/>")
			return ok()
		})

	res := NewQC(exec, QCOptions{Sample: "r", Inputs: []string{reads}, OutputDir: out, Aggregate: true}, nil).Run(context.Background())
	if !res.Success() {
		t.Fatalf("expected success, got %+v", res)
	}
	checks := map[string]any{
		"r_R1.status":          "FAIL",
		"r_R1.failed_modules":  1,
		"r_R1.total_sequences": int64(250000),
		"r_R1.sequence_length": "35-151",
		"r_R1.gc_content":      int64(51),
		"multiqc_report":       filepath.Join(out, "multiqc_report.html"),
	}
	for key, want := range checks {
		got, found := res.Metrics.Get(key)
		if !found || got != want {
			t.Fatalf("metric %s = %v (%T), want %v", key, got, got, want)
		}
	}
	if len(res.Commands) != 2 || res.OutputDir != out || res.Sample != "r" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestQCRunReadsExtractedDirectory(t *testing.T) {
	dir := t.TempDir()
	reads := filepath.Join(dir, "s.fq")
	touch(t, reads, "")
	exec := newFakeExec().on("fastqc", func(cmd runner.Command) runner.Result {
		touch(t, filepath.Join(argAfter(cmd, "-o"), "s_fastqc", "summary.txt"), "PASS\tBasic Statistics\ts.fq\n")
		return ok()
	})
	res := NewQC(exec, QCOptions{Inputs: []string{reads}, OutputDir: filepath.Join(dir, "qc")}, nil).Run(context.Background())
	if v, _ := res.Metrics.Get("s.status"); v != "PASS" {
		t.Fatalf("expected PASS status, got %v", res.Metrics)
	}
	if exec.called("multiqc") != 0 {
		t.Fatalf("aggregation disabled but multiqc ran")
	}
}

func TestQCRunWithoutExtractableMetricsStillPasses(t *testing.T) {
	dir := t.TempDir()
	reads := filepath.Join(dir, "s.fq")
	touch(t, reads, "")
	exec := newFakeExec().on("fastqc", func(runner.Command) runner.Result { return ok() })

	res := NewQC(exec, QCOptions{Inputs: []string{reads}, OutputDir: filepath.Join(dir, "qc"), Aggregate: true}, nil).Run(context.Background())
	if !res.Success() {
		t.Fatalf("missing metrics must not fail the stage: %+v", res)
	}
	if res.Metrics.Len() != 0 {
		t.Fatalf("expected empty metrics, got %v", res.Metrics)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "aggregation skipped") {
		t.Fatalf("expected multiqc warning, got %v", res.Warnings)
	}
}

func TestQCRunFailures(t *testing.T) {
	dir := t.TempDir()
	reads := filepath.Join(dir, "s.fq")
	touch(t, reads, "")

	cases := []struct {
		name    string
		exec    *fakeExec
		inputs  []string
		kind    report.FailureKind
		message string
	}{
		{
			name:    "no inputs",
			exec:    newFakeExec(),
			kind:    report.FailureInput,
			message: "at least one read file",
		},
		{
			name:    "missing input",
			exec:    newFakeExec(),
			inputs:  []string{filepath.Join(dir, "nope.fq")},
			kind:    report.FailureInput,
			message: "not found",
		},
		{
			name:    "missing tool",
			exec:    newFakeExec(),
			inputs:  []string{reads},
			kind:    report.FailureMissingTool,
			message: "fastqc is not available",
		},
		{
			name: "nonzero exit",
			exec: newFakeExec().on("fastqc", func(runner.Command) runner.Result {
				return runner.Result{ExitCode: 2, Stderr: "Skipping 's.fq' which didn't exist\n"}
			}),
			inputs:  []string{reads},
			kind:    report.FailureInvocation,
			message: "Skipping 's.fq' which didn't exist",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := NewQC(tc.exec, QCOptions{Inputs: tc.inputs, OutputDir: filepath.Join(t.TempDir(), "qc")}, nil).Run(context.Background())
			if res.Status != report.StatusFailed || res.Failure != tc.kind {
				t.Fatalf("expected %s failure, got %+v", tc.kind, res)
			}
			if !strings.Contains(res.Message, tc.message) {
				t.Fatalf("message %q missing %q", res.Message, tc.message)
			}
			if res.OutputDir != "" {
				if _, err := os.Stat(res.OutputDir); err != nil {
					t.Fatalf("result references output directory that does not exist: %v", err)
				}
			}
		})
	}
}

func TestFastQCName(t *testing.T) {
	cases := map[string]string{
		"/x/ecoli_R1.fastq.gz": "ecoli_R1",
		"s.fq":                 "s",
		"reads.bam":            "reads",
		"plain":                "plain",
	}
	for in, want := range cases {
		if got := FastQCName(in); got != want {
			t.Fatalf("FastQCName(%q) = %q, want %q", in, got, want)
		}
	}
}
