package output

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/version"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures JSON output schema.
type Report struct {
	Results  []report.WorkflowResult `json:"results,omitempty"`
	Tools    []version.Info          `json:"tools,omitempty"`
	Summary  report.Summary          `json:"summary"`
	Warnings []string                `json:"warnings,omitempty"`
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteResults stores a workflow result as indented JSON.
func WriteResults(path string, res report.WorkflowResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write results %q: %w", path, err)
	}
	return nil
}

// ReadResults loads a result written by WriteResults.
func ReadResults(path string) (report.WorkflowResult, error) {
	var res report.WorkflowResult
	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read results %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decode results %q: %w", path, err)
	}
	res.Duration = time.Duration(res.DurationMS) * time.Millisecond
	for i := range res.Stages {
		res.Stages[i].Duration = time.Duration(res.Stages[i].DurationMS) * time.Millisecond
	}
	return res, nil
}

// ResultsFile is the per-sample results file name.
const ResultsFile = "results.json"

// FindResults loads every results file below dir, ordered by sample name.
func FindResults(dir string) ([]report.WorkflowResult, error) {
	var results []report.WorkflowResult
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ResultsFile {
			return nil
		}
		res, err := ReadResults(path)
		if err != nil {
			return err
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Sample < results[j].Sample })
	return results, nil
}
