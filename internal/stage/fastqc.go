package stage

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FastQCReport is the subset of FastQC output surfaced in results.
type FastQCReport struct {
	Name           string
	Status         string // worst module verdict: PASS, WARN or FAIL
	Modules        map[string]string
	TotalSequences string
	PoorQuality    string
	SequenceLength string
	GC             string
}

// FailedModules counts modules with a FAIL verdict.
func (r FastQCReport) FailedModules() int {
	n := 0
	for _, v := range r.Modules {
		if v == "FAIL" {
			n++
		}
	}
	return n
}

var errNoFastQCOutput = errors.New("no FastQC output found")

// FastQCName returns the prefix FastQC uses for a read file's outputs.
func FastQCName(readPath string) string {
	name := filepath.Base(readPath)
	for _, ext := range []string{".gz", ".bz2"} {
		name = strings.TrimSuffix(name, ext)
	}
	for _, ext := range []string{".fastq", ".fq", ".txt", ".sam", ".bam"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// ReadFastQC loads summary.txt and fastqc_data.txt for name from the extracted
// directory when present, otherwise from the zip archive.
func ReadFastQC(dir, name string) (FastQCReport, error) {
	rep := FastQCReport{Name: name, Modules: map[string]string{}}
	base := name + "_fastqc"

	extracted := filepath.Join(dir, base)
	if info, err := os.Stat(extracted); err == nil && info.IsDir() {
		err := readFastQCFiles(&rep, func(file string) (io.ReadCloser, error) {
			return os.Open(filepath.Join(extracted, file))
		})
		return rep, err
	}

	archive := filepath.Join(dir, base+".zip")
	zr, err := zip.OpenReader(archive)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rep, fmt.Errorf("%w for %s", errNoFastQCOutput, name)
		}
		return rep, fmt.Errorf("open %s: %w", archive, err)
	}
	defer zr.Close()
	err = readFastQCFiles(&rep, func(file string) (io.ReadCloser, error) {
		return zr.Open(path.Join(base, file))
	})
	return rep, err
}

func readFastQCFiles(rep *FastQCReport, open func(string) (io.ReadCloser, error)) error {
	summary, err := open("summary.txt")
	if err != nil {
		return fmt.Errorf("%w: summary.txt for %s", errNoFastQCOutput, rep.Name)
	}
	err = parseSummary(summary, rep)
	summary.Close()
	if err != nil {
		return fmt.Errorf("parse summary.txt for %s: %w", rep.Name, err)
	}

	data, err := open("fastqc_data.txt")
	if err != nil {
		// summary alone is still useful
		return nil
	}
	defer data.Close()
	if err := parseFastQCData(data, rep); err != nil {
		return fmt.Errorf("parse fastqc_data.txt for %s: %w", rep.Name, err)
	}
	return nil
}

// parseSummary reads "VERDICT<TAB>Module<TAB>file" lines.
func parseSummary(r io.Reader, rep *FastQCReport) error {
	scanner := bufio.NewScanner(r)
	worst := ""
	rank := map[string]int{"PASS": 1, "WARN": 2, "FAIL": 3}
	for scanner.Scan() {
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if len(fields) < 2 {
			continue
		}
		verdict := strings.ToUpper(strings.TrimSpace(fields[0]))
		if _, ok := rank[verdict]; !ok {
			continue
		}
		rep.Modules[strings.TrimSpace(fields[1])] = verdict
		if rank[verdict] > rank[worst] {
			worst = verdict
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	rep.Status = worst
	return nil
}

func parseFastQCData(r io.Reader, rep *FastQCReport) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Total Sequences":
			rep.TotalSequences = value
		case "Sequences flagged as poor quality":
			rep.PoorQuality = value
		case "Sequence length":
			rep.SequenceLength = value
		case "%GC":
			rep.GC = value
		}
	}
	return scanner.Err()
}
