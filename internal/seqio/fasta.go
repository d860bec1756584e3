// Package seqio reads and writes the line-oriented formats the pipeline
// consumes and produces: FASTA, FASTQ and delimited tables.
package seqio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLineWidth is the sequence wrap width used when writing FASTA.
const DefaultLineWidth = 80

// Record is a single FASTA entry.
type Record struct {
	Name     string
	Sequence string
}

// FASTAReader streams records from a FASTA source.
type FASTAReader struct {
	scanner *bufio.Scanner
	pending    string
	hasPending bool
	started    bool
	line    int
}

// NewFASTAReader wraps r.
func NewFASTAReader(r io.Reader) *FASTAReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &FASTAReader{scanner: s}
}

// Next returns the next record or io.EOF.
func (f *FASTAReader) Next() (Record, error) {
	var (
		rec  Record
		seq  strings.Builder
		have bool
	)
	if f.hasPending {
		rec.Name = f.pending
		f.pending, f.hasPending = "", false
		have = true
	}
	for f.scanner.Scan() {
		f.line++
		line := strings.TrimSpace(f.scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			name := headerName(line)
			f.started = true
			if have {
				f.pending, f.hasPending = name, true
				rec.Sequence = seq.String()
				return rec, nil
			}
			rec.Name = name
			have = true
			continue
		}
		if !f.started {
			return Record{}, fmt.Errorf("line %d: sequence data before first FASTA header", f.line)
		}
		seq.WriteString(line)
	}
	if err := f.scanner.Err(); err != nil {
		return Record{}, err
	}
	if !have {
		return Record{}, io.EOF
	}
	rec.Sequence = seq.String()
	return rec, nil
}

// headerName keeps the identifier up to the first whitespace.
func headerName(line string) string {
	fields := strings.Fields(strings.TrimPrefix(line, ">"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ReadFASTA loads every record in path, preserving file order.
func ReadFASTA(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fasta %q: %w", path, err)
	}
	defer f.Close()

	reader := NewFASTAReader(f)
	var records []Record
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read fasta %q: %w", path, err)
		}
		records = append(records, rec)
	}
}

// EncodeFASTA writes records to w wrapping sequences at width characters.
func EncodeFASTA(w io.Writer, records []Record, width int) error {
	if width <= 0 {
		width = DefaultLineWidth
	}
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := fmt.Fprintf(bw, ">%s\n", rec.Name); err != nil {
			return err
		}
		for i := 0; i < len(rec.Sequence); i += width {
			end := min(i+width, len(rec.Sequence))
			if _, err := fmt.Fprintln(bw, rec.Sequence[i:end]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFASTA writes records to path, creating parent directories.
func WriteFASTA(path string, records []Record, width int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create fasta %q: %w", path, err)
	}
	if err := EncodeFASTA(f, records, width); err != nil {
		f.Close()
		return fmt.Errorf("write fasta %q: %w", path, err)
	}
	return f.Close()
}
