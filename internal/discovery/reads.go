package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrNoReads indicates that no read files were found during discovery.
var ErrNoReads = errors.New("no read files discovered")

var readPatterns = []string{"*.fastq", "*.fq", "*.fastq.gz", "*.fq.gz"}

// Reads returns FASTQ files directly inside dir, sorted lexicographically.
func Reads(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("input directory %q not found", dir)
		}
		return nil, fmt.Errorf("stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %q is not a directory", dir)
	}

	matches := make(map[string]struct{})
	for _, pattern := range readPatterns {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range found {
			matches[m] = struct{}{}
		}
	}
	if len(matches) == 0 {
		return nil, ErrNoReads
	}

	paths := make([]string, 0, len(matches))
	for p := range matches {
		paths = append(paths, filepath.Clean(p))
	}
	sort.Strings(paths)
	return paths, nil
}

// Explicit validates user-supplied read paths, dropping duplicates and keeping
// the order given. Relative paths are resolved against root.
func Explicit(root string, explicit []string) ([]string, error) {
	seen := make(map[string]struct{})
	resolved := make([]string, 0, len(explicit))
	for _, input := range explicit {
		if strings.TrimSpace(input) == "" {
			continue
		}
		cleaned := input
		if !filepath.IsAbs(cleaned) {
			cleaned = filepath.Join(root, cleaned)
		}
		info, err := os.Stat(cleaned)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read file %q not found", input)
			}
			return nil, fmt.Errorf("stat %q: %w", input, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("read file %q is a directory", input)
		}
		cleaned = filepath.Clean(cleaned)
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		resolved = append(resolved, cleaned)
	}
	if len(resolved) == 0 {
		return nil, ErrNoReads
	}
	return resolved, nil
}

// ReadSet is one sample's forward and optional reverse reads.
type ReadSet struct {
	Sample  string `json:"sample"`
	Forward string `json:"forward"`
	Reverse string `json:"reverse,omitempty"`
}

// Paired reports whether the set has reverse reads.
func (r ReadSet) Paired() bool {
	return r.Reverse != ""
}

// Files lists the read files in forward, reverse order.
func (r ReadSet) Files() []string {
	if r.Paired() {
		return []string{r.Forward, r.Reverse}
	}
	return []string{r.Forward}
}

var mateSuffix = regexp.MustCompile(`^(.*?)([._]R?)([12])(_001)?$`)

// Pair groups read files into samples using _R1/_R2 or _1/_2 naming. Files
// without a recognised mate suffix become single-end samples.
func Pair(paths []string) []ReadSet {
	type mates struct {
		forward, reverse string
	}
	byStem := make(map[string]*mates)
	var order []string
	for _, p := range paths {
		stem, mate := mateOf(p)
		key := filepath.Join(filepath.Dir(p), stem)
		m, ok := byStem[key]
		if !ok {
			m = &mates{}
			byStem[key] = m
			order = append(order, key)
		}
		switch {
		case mate == 2 && m.reverse == "":
			m.reverse = p
		case m.forward == "":
			m.forward = p
		default:
			// a second forward file with the same stem stands alone
			alt := key + "#" + p
			byStem[alt] = &mates{forward: p}
			order = append(order, alt)
		}
	}

	sets := make([]ReadSet, 0, len(order))
	for _, key := range order {
		m := byStem[key]
		set := ReadSet{Forward: m.forward, Reverse: m.reverse}
		if set.Forward == "" {
			set.Forward, set.Reverse = set.Reverse, ""
		}
		if set.Paired() {
			stem, _ := mateOf(set.Forward)
			set.Sample = stem
		} else {
			set.Sample = SampleName(set.Forward)
		}
		sets = append(sets, set)
	}
	return sets
}

func mateOf(path string) (string, int) {
	base := trimReadExt(filepath.Base(path))
	m := mateSuffix.FindStringSubmatch(base)
	if m == nil || m[1] == "" {
		return base, 0
	}
	if m[3] == "1" {
		return m[1], 1
	}
	return m[1], 2
}

// SampleName derives a sample label from a read file: the base name without
// FASTQ/gzip extensions or a trailing mate suffix.
func SampleName(path string) string {
	stem, _ := mateOf(path)
	if stem == "" {
		return "sample"
	}
	return stem
}

func trimReadExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".fastq.gz", ".fq.gz", ".fastq", ".fq", ".gz"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
