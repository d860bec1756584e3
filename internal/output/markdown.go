package output

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/seqio"
)

// KeyValue is one line of a summary block.
type KeyValue struct {
	Key   string
	Value any
}

// Section is one headed block of a Markdown document. Any combination of the
// parts may be set; they render in field order.
type Section struct {
	Title   string
	Summary []KeyValue
	Table   *seqio.Table
	Items   []string
	Code    string
}

// Document is a titled sequence of sections.
type Document struct {
	Title    string
	Sections []Section
}

// Casers and printers keep state between calls, so each use gets its own.
func printer() *message.Printer { return message.NewPrinter(language.English) }

// Render assembles the whole document in memory.
func (d Document) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", oneLine(d.Title))
	for _, s := range d.Sections {
		buf.WriteString("\n")
		renderSection(&buf, s)
	}
	return buf.Bytes()
}

func renderSection(buf *bytes.Buffer, s Section) {
	fmt.Fprintf(buf, "## %s\n", oneLine(s.Title))
	if len(s.Summary) > 0 {
		buf.WriteString("\n")
		for _, kv := range s.Summary {
			fmt.Fprintf(buf, "- **%s**: %s\n", kv.Key, oneLine(FormatValue(kv.Value)))
		}
	}
	if s.Table != nil && len(s.Table.Columns) > 0 {
		buf.WriteString("\n")
		renderTable(buf, *s.Table)
	}
	if len(s.Items) > 0 {
		buf.WriteString("\n")
		for _, item := range s.Items {
			fmt.Fprintf(buf, "- %s\n", oneLine(item))
		}
	}
	if strings.TrimSpace(s.Code) != "" {
		fence := "```"
		for strings.Contains(s.Code, fence) {
			fence += "`"
		}
		fmt.Fprintf(buf, "\n%stext\n%s\n%s\n", fence, strings.TrimRight(s.Code, "\n"), fence)
	}
}

func renderTable(buf *bytes.Buffer, t seqio.Table) {
	header := make([]string, len(t.Columns))
	sep := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = cell(c)
		sep[i] = "---"
	}
	fmt.Fprintf(buf, "| %s |\n", strings.Join(header, " | "))
	fmt.Fprintf(buf, "| %s |\n", strings.Join(sep, " | "))
	row := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			row[i] = cell(r[c])
		}
		fmt.Fprintf(buf, "| %s |\n", strings.Join(row, " | "))
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "<br>")
	return strings.ReplaceAll(s, "\r", "")
}

// codeSpan wraps s in an inline code span whose backtick run is longer than
// any run inside s.
func codeSpan(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	delim := strings.Repeat("`", longest+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return delim + s + delim
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WriteFile renders doc and replaces path in one rename so a partial report
// never exists on disk.
func WriteFile(path string, doc Document) error {
	data := doc.Render()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace report %q: %w", path, err)
	}
	return nil
}

// TableFromRows builds a table whose columns appear in first-seen order
// across rows. Columns within a row are visited in sorted order since Row is
// a map; pass columns explicitly when the source order matters.
func TableFromRows(rows []seqio.Row, columns ...string) seqio.Table {
	seen := make(map[string]struct{}, len(columns))
	cols := make([]string, 0, len(columns))
	add := func(c string) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	for _, c := range columns {
		add(c)
	}
	for _, r := range rows {
		for _, c := range slices.Sorted(maps.Keys(r)) {
			add(c)
		}
	}
	return seqio.Table{Columns: cols, Rows: rows}
}

// TableFromMetrics renders metrics as a two-column table in insertion order.
func TableFromMetrics(m report.Metrics) seqio.Table {
	t := seqio.Table{Columns: []string{"Metric", "Value"}}
	for _, metric := range m {
		t.Rows = append(t.Rows, seqio.Row{"Metric": HumanizeKey(metric.Name), "Value": FormatValue(metric.Value)})
	}
	return t
}

// HumanizeKey turns "total_length" into "Total Length" and
// "ecoli_R1.total_sequences" into "ecoli_R1: Total Sequences".
func HumanizeKey(key string) string {
	prefix, name := "", key
	if i := strings.LastIndex(key, "."); i > 0 {
		prefix, name = key[:i], key[i+1:]
	}
	human := cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
	if prefix == "" {
		return human
	}
	return prefix + ": " + human
}

// FormatValue renders numbers with thousands separators.
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case int:
		return printer().Sprintf("%d", n)
	case int64:
		return printer().Sprintf("%d", n)
	case int32:
		return printer().Sprintf("%d", n)
	case uint64:
		return printer().Sprintf("%d", n)
	case float64:
		if n == float64(int64(n)) && n < 1e15 && n > -1e15 {
			return printer().Sprintf("%d", int64(n))
		}
		return printer().Sprintf("%.2f", n)
	case float32:
		return FormatValue(float64(n))
	case bool:
		if n {
			return "yes"
		}
		return "no"
	case fmt.Stringer:
		return n.String()
	default:
		return fmt.Sprint(v)
	}
}
