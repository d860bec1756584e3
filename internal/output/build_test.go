package output

import (
	"strings"
	"testing"
	"time"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/runner"
)

func TestBuildReport(t *testing.T) {
	doc := BuildReport(sampleResult(), ReportOptions{
		Generated: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
		BaseDir:   "/runs/results",
	})
	if doc.Title != "Genome Analysis Report: ecoli" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	out := string(doc.Render())
	for _, want := range []string{
		"- **Run ID**: run-1",
		"- **Generated**: 2024-05-01T13:00:00Z",
		"- **Status**: failed",
		"- **Stages Passed**: 1/2",
		"- **Success Rate**: 50.0%",
		"## Quality Control",
		"- **Output**: `ecoli/qc`",
		"| ecoli_R1: Total Sequences | 250,000 |",
		"- multiqc not found; skipping aggregation",
		"## Assembly",
		"- **Failure**: invocation",
		"| N50 | 1,000 |",
		"```text\nspades.py exited with code 1\nout of memory\n```",
		"## Commands",
		"| Stage | Command | Exit Code | Duration |",
		"| Quality Control | `fastqc ecoli_R1.fastq.gz -o /runs/results/ecoli/qc -t 4` | 0 | 1.5s |",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "## Quality Control") > strings.Index(out, "## Assembly") {
		t.Fatalf("stages out of order:\n%s", out)
	}
}

func TestBuildReportWithoutStages(t *testing.T) {
	doc := BuildReport(report.WorkflowResult{Sample: "s1", Mode: "qc"}, ReportOptions{Title: "Custom"})
	if doc.Title != "Custom: s1" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	if len(doc.Sections) != 1 {
		t.Fatalf("expected only the summary section, got %d", len(doc.Sections))
	}
}

func TestBuildReportCommandWithBackticks(t *testing.T) {
	res := report.WorkflowResult{Sample: "s1", Mode: "qc", Stages: []report.StageResult{{
		Stage:    "qc",
		Status:   report.StatusPassed,
		Commands: []runner.Result{{Command: []string{"fastqc", "--title", "run `1`"}}},
	}}}
	out := string(BuildReport(res, ReportOptions{}).Render())
	if !strings.Contains(out, "| Quality Control | `` fastqc --title run `1` `` | 0 |") {
		t.Fatalf("command cell not wrapped safely:\n%s", out)
	}
}

func TestBuildSummary(t *testing.T) {
	qcOnly := report.WorkflowResult{
		RunID:  "run-2",
		Sample: "saureus",
		Mode:   "qc",
		Stages: []report.StageResult{{Stage: "qc", Status: report.StatusPassed}},
	}
	qcOnly.Finalize()

	doc := BuildSummary([]report.WorkflowResult{sampleResult(), qcOnly}, ReportOptions{})
	if doc.Title != "Genome Analysis Summary" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	table := doc.Sections[1].Table
	if table == nil {
		t.Fatalf("expected samples table")
	}
	wantCols := []string{"Sample", "Status", "Quality Control", "Assembly", "Contigs", "N50", "Total Length", "Run ID", "Report"}
	if strings.Join(table.Columns, ",") != strings.Join(wantCols, ",") {
		t.Fatalf("columns = %v, want %v", table.Columns, wantCols)
	}
	if table.Rows[1]["Assembly"] != "" || table.Rows[1]["Report"] != "saureus/report.md" {
		t.Fatalf("unexpected second row %v", table.Rows[1])
	}
	out := string(doc.Render())
	if !strings.Contains(out, "- **Samples**: 2") || !strings.Contains(out, "- **Stages Failed**: 1") {
		t.Fatalf("overview missing counts:\n%s", out)
	}
}

func TestBuildSummaryDropsEmptyColumns(t *testing.T) {
	res := report.WorkflowResult{Sample: "s1", Stages: []report.StageResult{{Stage: "qc", Status: report.StatusPassed}}}
	doc := BuildSummary([]report.WorkflowResult{res}, ReportOptions{})
	for _, c := range doc.Sections[1].Table.Columns {
		if c == "Assembly" || c == "N50" {
			t.Fatalf("column %q should be dropped: %v", c, doc.Sections[1].Table.Columns)
		}
	}
}

func TestStatsTable(t *testing.T) {
	table := StatsTable([]report.WorkflowResult{sampleResult(), {Sample: "qc-only"}})
	if len(table.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(table.Rows))
	}
	row := table.Rows[0]
	if row["sample"] != "ecoli" || row["n50"] != "1000" || row["total_length"] != "3000" || row["contigs"] != "3" {
		t.Fatalf("unexpected row %v", row)
	}
	if v, ok := row["scaffolds"]; !ok || v != "" {
		t.Fatalf("missing metric should be an empty cell, got %q (%v)", v, ok)
	}
}

func TestStageTitle(t *testing.T) {
	if StageTitle("qc") != "Quality Control" || StageTitle("workflow") != "Workflow" {
		t.Fatalf("unexpected titles %q %q", StageTitle("qc"), StageTitle("workflow"))
	}
}
