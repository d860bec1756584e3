package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/seqio"
)

// ReportOptions control report assembly.
type ReportOptions struct {
	Title     string
	Generated time.Time
	// BaseDir, when set, makes output directories relative in the report.
	BaseDir string
}

var stageTitles = map[string]string{
	"qc":       "Quality Control",
	"assembly": "Assembly",
}

// StageTitle is the report heading for a stage name.
func StageTitle(name string) string {
	if t, ok := stageTitles[name]; ok {
		return t
	}
	return HumanizeKey(name)
}

// BuildReport lays out one workflow result as a Markdown document.
func BuildReport(res report.WorkflowResult, opts ReportOptions) Document {
	title := opts.Title
	if title == "" {
		title = "Genome Analysis Report"
	}
	doc := Document{Title: title}
	if res.Sample != "" {
		doc.Title = fmt.Sprintf("%s: %s", title, res.Sample)
	}

	summary := report.Summarize([]report.WorkflowResult{res})
	overview := Section{Title: "Summary", Summary: []KeyValue{
		{Key: "Sample", Value: res.Sample},
		{Key: "Run ID", Value: res.RunID},
		{Key: "Mode", Value: res.Mode},
	}}
	if !opts.Generated.IsZero() {
		overview.Summary = append(overview.Summary, KeyValue{Key: "Generated", Value: opts.Generated.UTC().Format(time.RFC3339)})
	}
	overview.Summary = append(overview.Summary,
		KeyValue{Key: "Status", Value: statusWord(res.Success)},
		KeyValue{Key: "Stages Passed", Value: fmt.Sprintf("%d/%d", summary.Passed, summary.TotalStages)},
		KeyValue{Key: "Success Rate", Value: fmt.Sprintf("%.1f%%", summary.SuccessRate())},
		KeyValue{Key: "Duration", Value: formatDuration(res.Duration)},
	)
	doc.Sections = append(doc.Sections, overview)

	var commands []seqio.Row
	for _, st := range res.Stages {
		doc.Sections = append(doc.Sections, stageSection(st, opts.BaseDir))
		for _, c := range st.Commands {
			commands = append(commands, seqio.Row{
				"Stage":     StageTitle(st.Stage),
				"Command":   codeSpan(strings.Join(c.Command, " ")),
				"Exit Code": fmt.Sprint(c.ExitCode),
				"Duration":  formatDuration(time.Duration(c.DurationMS) * time.Millisecond),
			})
		}
	}
	if len(commands) > 0 {
		t := TableFromRows(commands, "Stage", "Command", "Exit Code", "Duration")
		doc.Sections = append(doc.Sections, Section{Title: "Commands", Table: &t})
	}
	return doc
}

func stageSection(st report.StageResult, baseDir string) Section {
	sec := Section{Title: StageTitle(st.Stage)}
	sec.Summary = append(sec.Summary, KeyValue{Key: "Status", Value: string(st.Status)})
	if st.Failure != report.FailureNone {
		sec.Summary = append(sec.Summary, KeyValue{Key: "Failure", Value: string(st.Failure)})
	}
	if st.OutputDir != "" {
		sec.Summary = append(sec.Summary, KeyValue{Key: "Output", Value: codeSpan(relTo(baseDir, st.OutputDir))})
	}
	sec.Summary = append(sec.Summary, KeyValue{Key: "Duration", Value: formatDuration(st.Duration)})
	if st.Metrics.Len() > 0 {
		t := TableFromMetrics(st.Metrics)
		sec.Table = &t
	}
	sec.Items = append(sec.Items, st.Warnings...)
	if st.Status == report.StatusFailed || st.Status == report.StatusSkipped {
		sec.Code = st.Message
	}
	return sec
}

// BuildSummary lays out several sample results as one overview document.
func BuildSummary(results []report.WorkflowResult, opts ReportOptions) Document {
	title := opts.Title
	if title == "" {
		title = "Genome Analysis Summary"
	}
	s := report.Summarize(results)
	overview := Section{Title: "Overview", Summary: []KeyValue{
		{Key: "Samples", Value: s.Samples},
		{Key: "Stages Passed", Value: s.Passed},
		{Key: "Stages Failed", Value: s.Failed},
		{Key: "Stages Skipped", Value: s.Skipped},
		{Key: "Success Rate", Value: fmt.Sprintf("%.1f%%", s.SuccessRate())},
		{Key: "Duration", Value: formatDuration(s.Duration)},
	}}
	if !opts.Generated.IsZero() {
		overview.Summary = append(overview.Summary, KeyValue{Key: "Generated", Value: opts.Generated.UTC().Format(time.RFC3339)})
	}

	rows := make([]seqio.Row, 0, len(results))
	for _, res := range results {
		row := seqio.Row{
			"Sample": res.Sample,
			"Status": statusWord(res.Success),
			"Run ID": res.RunID,
		}
		for _, st := range res.Stages {
			row[StageTitle(st.Stage)] = string(st.Status)
			for _, key := range []string{"contigs", "n50", "total_length"} {
				if v, ok := st.Metrics.Get(key); ok {
					row[HumanizeKey(key)] = FormatValue(v)
				}
			}
		}
		row["Report"] = filepath.ToSlash(filepath.Join(res.Sample, "report.md"))
		rows = append(rows, row)
	}
	t := TableFromRows(rows, "Sample", "Status", "Quality Control", "Assembly", "Contigs", "N50", "Total Length", "Run ID", "Report")
	t.Columns = presentColumns(t)
	return Document{Title: title, Sections: []Section{overview, {Title: "Samples", Table: &t}}}
}

// presentColumns drops columns no row has a value for.
func presentColumns(t seqio.Table) []string {
	var cols []string
	for _, c := range t.Columns {
		for _, r := range t.Rows {
			if _, ok := r[c]; ok {
				cols = append(cols, c)
				break
			}
		}
	}
	return cols
}

// StatsTable collects assembly statistics across workflow results.
func StatsTable(results []report.WorkflowResult) seqio.Table {
	columns := []string{"sample", "contigs", "total_length", "longest_contig", "shortest_contig", "n50", "gc_percent", "scaffolds"}
	t := seqio.Table{Columns: columns}
	for _, res := range results {
		st, ok := res.Stage("assembly")
		if !ok || st.Metrics.Len() == 0 {
			continue
		}
		row := seqio.Row{"sample": res.Sample}
		for _, c := range columns[1:] {
			if v, ok := st.Metrics.Get(c); ok {
				row[c] = fmt.Sprint(v)
			} else {
				row[c] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func statusWord(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func relTo(base, path string) string {
	if base == "" {
		return filepath.ToSlash(path)
	}
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
