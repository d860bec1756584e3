package seqio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Row is one record of a delimited file keyed by column name.
type Row map[string]string

// Table is a parsed delimited file. Columns preserves header order.
type Table struct {
	Columns []string
	Rows    []Row
}

// DelimiterFor picks a delimiter from the file extension: tab for .tsv/.tab/.txt,
// comma otherwise.
func DelimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab", ".txt":
		return '\t'
	default:
		return ','
	}
}

// ParseDelimiter converts a user-supplied delimiter ("," "\t" "tab" ";") to a rune.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", ",", "comma":
		return ',', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q", s)
}

// DecodeTable parses delimited data. Without a header, columns are named col_0..col_n.
func DecodeTable(r io.Reader, delim rune, header bool) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	if delim == '\t' {
		cr.LazyQuotes = true
	}

	var table Table
	first := true
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, err
		}
		if first && header {
			first = false
			table.Columns = make([]string, len(fields))
			for i, f := range fields {
				table.Columns[i] = strings.TrimSpace(strings.TrimPrefix(f, "\ufeff"))
			}
			continue
		}
		first = false
		if !header {
			for i := len(table.Columns); i < len(fields); i++ {
				table.Columns = append(table.Columns, fmt.Sprintf("col_%d", i))
			}
		}
		row := make(Row, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(fields) {
				row[col] = fields[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadTable loads a delimited file with a header row.
func ReadTable(path string, delim rune) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open table %q: %w", path, err)
	}
	defer f.Close()

	table, err := DecodeTable(f, delim, true)
	if err != nil {
		return Table{}, fmt.Errorf("parse table %q: %w", path, err)
	}
	return table, nil
}

// EncodeTable writes the header followed by each row, quoting as needed.
func EncodeTable(w io.Writer, table Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := writeRecord(w, cw, table.Columns); err != nil {
		return err
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = row[col]
		}
		if err := writeRecord(w, cw, record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeRecord quotes a lone empty field, which csv.Writer would emit as a
// blank line that readers skip.
func writeRecord(w io.Writer, cw *csv.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return cw.Write(record)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// WriteTable writes table to path, creating parent directories.
func WriteTable(path string, table Table, delim rune) error {
	if len(table.Columns) == 0 {
		return fmt.Errorf("write table %q: no columns", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table %q: %w", path, err)
	}
	if err := EncodeTable(f, table, delim); err != nil {
		f.Close()
		return fmt.Errorf("write table %q: %w", path, err)
	}
	return f.Close()
}
