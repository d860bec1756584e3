// Package stats computes summary statistics over assembled contigs.
package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bgricker/genomeflow/internal/seqio"
)

// Assembly summarises a set of contigs.
type Assembly struct {
	Contigs  int     `json:"contigs"`
	Total    int64   `json:"total_length"`
	Longest  int     `json:"longest"`
	Shortest int     `json:"shortest"`
	N50      int     `json:"n50"`
	GC       float64 `json:"gc_percent"`
}

// N50 returns the length L such that contigs of length >= L cover at least
// half of the total length. Zero for empty input.
func N50(lengths []int) int {
	if len(lengths) == 0 {
		return 0
	}
	sorted := append([]int(nil), lengths...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	var total int64
	for _, l := range sorted {
		total += int64(l)
	}
	if total == 0 {
		return 0
	}
	var running int64
	for _, l := range sorted {
		running += int64(l)
		if running*2 >= total {
			return l
		}
	}
	return sorted[len(sorted)-1]
}

// Compute derives count, total, longest, shortest and N50 from contig lengths.
func Compute(lengths []int) Assembly {
	if len(lengths) == 0 {
		return Assembly{}
	}
	a := Assembly{Contigs: len(lengths), Shortest: lengths[0]}
	for _, l := range lengths {
		a.Total += int64(l)
		a.Longest = max(a.Longest, l)
		a.Shortest = min(a.Shortest, l)
	}
	a.N50 = N50(lengths)
	return a
}

// FromRecords computes statistics, including GC content, over FASTA records.
func FromRecords(records []seqio.Record) Assembly {
	lengths := make([]int, 0, len(records))
	var gc, called int64
	for _, rec := range records {
		if rec.Sequence == "" {
			continue
		}
		lengths = append(lengths, len(rec.Sequence))
		for _, b := range []byte(rec.Sequence) {
			switch b {
			case 'G', 'C', 'g', 'c', 'S', 's':
				gc++
				called++
			case 'A', 'T', 'a', 't', 'W', 'w':
				called++
			}
		}
	}
	a := Compute(lengths)
	if called > 0 {
		a.GC = float64(gc) * 100 / float64(called)
	}
	return a
}

// FromFASTA reads path and computes its statistics.
func FromFASTA(path string) (Assembly, error) {
	records, err := seqio.ReadFASTA(path)
	if err != nil {
		return Assembly{}, err
	}
	return FromRecords(records), nil
}

// CountRecords returns the number of FASTA records in path.
func CountRecords(path string) (int, error) {
	records, err := seqio.ReadFASTA(path)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Columns is the column order used when tabulating Assembly values.
var Columns = []string{"file", "contigs", "total_length", "longest", "shortest", "n50", "gc_percent"}

// Row renders a as a tabular row labelled by name.
func (a Assembly) Row(name string) seqio.Row {
	return seqio.Row{
		"file":         name,
		"contigs":      fmt.Sprint(a.Contigs),
		"total_length": fmt.Sprint(a.Total),
		"longest":      fmt.Sprint(a.Longest),
		"shortest":     fmt.Sprint(a.Shortest),
		"n50":          fmt.Sprint(a.N50),
		"gc_percent":   strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", a.GC), "0"), "."),
	}
}
