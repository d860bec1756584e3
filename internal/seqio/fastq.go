package seqio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var gzipMagic = []byte{0x1f, 0x8b}

// ErrNotFASTQ reports input that does not start with a FASTQ record.
var ErrNotFASTQ = errors.New("not a FASTQ file")

// OpenReads opens a FASTQ file, transparently decompressing gzip input. The
// format is detected from content, not the file extension.
func OpenReads(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reads %q: %w", path, err)
	}
	br := bufio.NewReader(f)
	head, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("read reads %q: %w", path, err)
	}
	if bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("decompress reads %q: %w", path, err)
		}
		return &stackedCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
	}
	return &stackedCloser{Reader: br, closers: []io.Closer{f}}, nil
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SniffFASTQ checks that path begins with a well-formed FASTQ record.
func SniffFASTQ(path string) error {
	rc, err := OpenReads(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for len(lines) < 4 && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read reads %q: %w", path, err)
	}
	if len(lines) < 4 || !strings.HasPrefix(lines[0], "@") || !strings.HasPrefix(lines[2], "+") {
		return fmt.Errorf("%w: %s", ErrNotFASTQ, path)
	}
	if len(lines[1]) != len(lines[3]) {
		return fmt.Errorf("%w: %s: sequence and quality lengths differ", ErrNotFASTQ, path)
	}
	return nil
}

// ReadCounts summarises a FASTQ file.
type ReadCounts struct {
	Reads int64
	Bases int64
}

// CountReads walks every record in path.
func CountReads(path string) (ReadCounts, error) {
	rc, err := OpenReads(path)
	if err != nil {
		return ReadCounts{}, err
	}
	defer rc.Close()

	var counts ReadCounts
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		switch line % 4 {
		case 0:
			if !strings.HasPrefix(scanner.Text(), "@") {
				return counts, fmt.Errorf("%w: %s: record %d has no '@' header", ErrNotFASTQ, path, counts.Reads+1)
			}
			counts.Reads++
		case 1:
			counts.Bases += int64(len(strings.TrimSpace(scanner.Text())))
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return counts, fmt.Errorf("read reads %q: %w", path, err)
	}
	if line%4 != 0 {
		return counts, fmt.Errorf("%w: %s: truncated final record", ErrNotFASTQ, path)
	}
	return counts, nil
}
