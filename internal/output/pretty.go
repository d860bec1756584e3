package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/seqio"
	"github.com/bgricker/genomeflow/internal/version"
)

// PrettyRenderer renders results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderTools lists tool availability.
func (p *PrettyRenderer) RenderTools(tools []version.Info, warnings []string) error {
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tSTATUS\tVERSION\tPATH")
	for _, t := range tools {
		v := t.Version
		if v == "" {
			v = "-"
		}
		path := t.Path
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", toolGlyph(t), t.Name, t.Status(), v, path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, w := range warnings {
		if _, err := fmt.Fprintf(p.out, "warning: %s\n", w); err != nil {
			return err
		}
	}
	return nil
}

// RenderResults shows stage outcomes per sample followed by a summary.
func (p *PrettyRenderer) RenderResults(results []report.WorkflowResult, summary report.Summary) error {
	var buffer bytes.Buffer
	for _, res := range results {
		fmt.Fprintf(&buffer, "Sample %s (%s, run %s)\n", res.Sample, res.Mode, res.RunID)
		for _, st := range res.Stages {
			fmt.Fprintf(&buffer, "  %s %s (%s)\n", statusGlyph(string(st.Status)), StageTitle(st.Stage), formatDuration(st.Duration))
			for _, m := range st.Metrics {
				fmt.Fprintf(&buffer, "      %s: %s\n", HumanizeKey(m.Name), FormatValue(m.Value))
			}
			for _, w := range st.Warnings {
				fmt.Fprintf(&buffer, "      warning: %s\n", w)
			}
			if st.Status == report.StatusFailed && st.Message != "" {
				fmt.Fprintf(&buffer, "      %s:\n%s\n", st.Failure, indent(st.Message, "        "))
			}
		}
		if _, err := buffer.WriteTo(p.out); err != nil {
			return err
		}
		buffer.Reset()
	}

	_, err := fmt.Fprintf(p.out, "SUMMARY: %d passed, %d failed, %d skipped (%s)\n", summary.Passed, summary.Failed, summary.Skipped, formatDuration(summary.Duration))
	return err
}

// RenderTable prints a table with aligned columns.
func (p *PrettyRenderer) RenderTable(t seqio.Table) error {
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(t.Columns, "\t")))
	vals := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			vals[i] = r[c]
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	return tw.Flush()
}

func toolGlyph(t version.Info) string {
	if t.Available {
		return "✓"
	}
	return "✗"
}

func statusGlyph(status string) string {
	switch status {
	case "passed":
		return "✓"
	case "failed":
		return "✗"
	case "skipped":
		return "-"
	default:
		return "?"
	}
}

func indent(s, pad string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
