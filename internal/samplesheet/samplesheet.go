// Package samplesheet loads multi-sample input sheets in YAML, CSV or TSV form.
package samplesheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bgricker/genomeflow/internal/discovery"
	"github.com/bgricker/genomeflow/internal/seqio"
)

// Warning describes a sheet row that was skipped or adjusted.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("row %d: %s", w.Line, w.Message)
	}
	return w.Message
}

// Sheet is the parsed list of samples.
type Sheet struct {
	Path     string
	Samples  []discovery.ReadSet
	Warnings []Warning
}

type sheetDocument struct {
	Samples []sampleDocument `yaml:"samples"`
}

type sampleDocument struct {
	Name    string `yaml:"name"`
	Sample  string `yaml:"sample"`
	Forward string `yaml:"forward"`
	Reverse string `yaml:"reverse"`
}

// Load parses path according to its extension. Relative read paths resolve
// against the sheet's directory.
func Load(path string) (Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sheet{}, fmt.Errorf("open samplesheet %q: %w", path, err)
	}
	defer f.Close()

	var rows []sampleDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		rows, err = decodeYAML(f)
	default:
		rows, err = decodeTable(f, seqio.DelimiterFor(path))
	}
	if err != nil {
		return Sheet{}, fmt.Errorf("parse samplesheet %q: %w", path, err)
	}
	sheet := build(rows, filepath.Dir(path))
	sheet.Path = path
	return sheet, nil
}

func decodeYAML(r io.Reader) ([]sampleDocument, error) {
	var doc sheetDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Samples, nil
}

func decodeTable(r io.Reader, delim rune) ([]sampleDocument, error) {
	table, err := seqio.DecodeTable(r, delim, true)
	if err != nil {
		return nil, err
	}
	if !hasColumn(table.Columns, "forward") {
		return nil, fmt.Errorf("missing required column %q (have %s)", "forward", strings.Join(table.Columns, ", "))
	}
	rows := make([]sampleDocument, 0, len(table.Rows))
	for _, row := range table.Rows {
		rows = append(rows, sampleDocument{
			Sample:  row["sample"],
			Name:    row["name"],
			Forward: row["forward"],
			Reverse: row["reverse"],
		})
	}
	return rows, nil
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

func build(rows []sampleDocument, baseDir string) Sheet {
	var sheet Sheet
	seen := make(map[string]int)
	for i, row := range rows {
		line := i + 1
		forward := strings.TrimSpace(row.Forward)
		if forward == "" {
			sheet.Warnings = append(sheet.Warnings, Warning{Line: line, Message: "missing forward reads; row skipped"})
			continue
		}
		name := strings.TrimSpace(row.Sample)
		if name == "" {
			name = strings.TrimSpace(row.Name)
		}
		if name == "" {
			name = discovery.SampleName(forward)
		}
		if first, dup := seen[name]; dup {
			sheet.Warnings = append(sheet.Warnings, Warning{Line: line, Message: fmt.Sprintf("duplicate sample %q (first on row %d); row skipped", name, first)})
			continue
		}
		seen[name] = line
		sheet.Samples = append(sheet.Samples, discovery.ReadSet{
			Sample:  name,
			Forward: resolve(baseDir, forward),
			Reverse: resolve(baseDir, strings.TrimSpace(row.Reverse)),
		})
	}
	return sheet
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
