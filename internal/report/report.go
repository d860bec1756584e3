// Package report holds the result types shared by stages, the workflow and renderers.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bgricker/genomeflow/internal/runner"
)

// Status is the outcome of a stage.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// FailureKind classifies why a stage failed.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureMissingTool FailureKind = "missing-tool"
	FailureInvocation  FailureKind = "invocation"
	FailureParse       FailureKind = "parse"
	FailureInput       FailureKind = "input"
)

// Metric is a named numeric or text value.
type Metric struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Metrics is an insertion-ordered metric mapping.
type Metrics []Metric

// Set replaces an existing value or appends a new one.
func (m *Metrics) Set(name string, value any) {
	for i := range *m {
		if (*m)[i].Name == name {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, Metric{Name: name, Value: value})
}

// Get returns the value stored under name.
func (m Metrics) Get(name string) (any, bool) {
	for _, metric := range m {
		if metric.Name == name {
			return metric.Value, true
		}
	}
	return nil, false
}

// Len reports the number of metrics.
func (m Metrics) Len() int { return len(m) }

// MarshalJSON encodes metrics as an object keeping insertion order.
func (m Metrics) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, metric := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(metric.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(metric.Value)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", metric.Name, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes an object preserving key order.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metrics: expected object")
	}
	var out Metrics
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if num, ok := value.(json.Number); ok {
			if i, err := num.Int64(); err == nil {
				value = i
			} else if f, err := num.Float64(); err == nil {
				value = f
			}
		}
		out = append(out, Metric{Name: key, Value: value})
	}
	*m = out
	return nil
}

// StageResult is the outcome of one stage for one sample.
type StageResult struct {
	Stage      string          `json:"stage"`
	Sample     string          `json:"sample,omitempty"`
	Status     Status          `json:"status"`
	OutputDir  string          `json:"output_dir,omitempty"`
	Metrics    Metrics         `json:"metrics"`
	Message    string          `json:"message,omitempty"`
	Failure    FailureKind     `json:"failure,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	Commands   []runner.Result `json:"commands,omitempty"`
	Duration   time.Duration   `json:"-"`
	DurationMS int64           `json:"duration_ms"`
}

// Success reports whether the stage passed.
func (r StageResult) Success() bool {
	return r.Status == StatusPassed
}

// Fail marks r failed with kind and message.
func (r *StageResult) Fail(kind FailureKind, message string) {
	r.Status = StatusFailed
	r.Failure = kind
	r.Message = message
}

// WorkflowResult is the ordered set of stage results for one workflow invocation.
type WorkflowResult struct {
	RunID      string        `json:"run_id"`
	Sample     string        `json:"sample"`
	Mode       string        `json:"mode"`
	Stages     []StageResult `json:"stages"`
	Success    bool          `json:"success"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Finalize computes Success and DurationMS. Skipped stages do not fail the workflow.
func (w *WorkflowResult) Finalize() {
	w.Success = true
	for _, st := range w.Stages {
		if st.Status == StatusFailed {
			w.Success = false
		}
	}
	w.DurationMS = w.Duration.Milliseconds()
}

// Stage returns the result for the named stage.
func (w WorkflowResult) Stage(name string) (StageResult, bool) {
	for _, st := range w.Stages {
		if st.Stage == name {
			return st, true
		}
	}
	return StageResult{}, false
}

// Summary aggregates stage outcomes across one or more workflows.
type Summary struct {
	Samples     int           `json:"samples"`
	TotalStages int           `json:"total_stages"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	ExitCode    int           `json:"exit_code"`
}

// Summarize tallies results.
func Summarize(results []WorkflowResult) Summary {
	var s Summary
	s.Samples = len(results)
	for _, w := range results {
		s.Duration += w.Duration
		for _, st := range w.Stages {
			s.TotalStages++
			switch st.Status {
			case StatusPassed:
				s.Passed++
			case StatusFailed:
				s.Failed++
			case StatusSkipped:
				s.Skipped++
			}
		}
	}
	s.DurationMS = s.Duration.Milliseconds()
	if s.Failed > 0 {
		s.ExitCode = 1
	}
	return s
}

// SuccessRate is the share of non-skipped stages that passed, in percent.
func (s Summary) SuccessRate() float64 {
	ran := s.Passed + s.Failed
	if ran == 0 {
		return 0
	}
	return float64(s.Passed) * 100 / float64(ran)
}
