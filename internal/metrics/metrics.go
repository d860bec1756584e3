// Package metrics exposes workflow progress as prometheus metrics. Each
// Recorder owns its registry so runs and tests never share global state.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/workflow"
)

const namespace = "genomeflow"

// Recorder collects stage and workflow metrics.
type Recorder struct {
	registry *prometheus.Registry

	stagesTotal    *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	stagesRunning  prometheus.Gauge
	workflowsTotal *prometheus.CounterVec
	commandsTotal  *prometheus.CounterVec

	assemblyContigs *prometheus.GaugeVec
	assemblyLength  *prometheus.GaugeVec
	assemblyN50     *prometheus.GaugeVec
	assemblyGC      *prometheus.GaugeVec
}

var _ workflow.Observer = (*Recorder)(nil)

// New builds a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stages",
				Name:      "total",
				Help:      "Stages finished by stage and status",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stages",
				Name:      "duration_seconds",
				Help:      "Wall-clock duration of finished stages",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
			},
			[]string{"stage"},
		),
		stagesRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stages",
				Name:      "running",
				Help:      "Stages currently running",
			},
		),
		workflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflows",
				Name:      "total",
				Help:      "Workflows finished by mode and result",
			},
			[]string{"mode", "result"},
		),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "total",
				Help:      "External commands executed by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		assemblyContigs: newAssemblyGauge("contigs", "Contigs in the assembly"),
		assemblyLength:  newAssemblyGauge("total_length_bases", "Total assembly length"),
		assemblyN50:     newAssemblyGauge("n50_bases", "Assembly N50"),
		assemblyGC:      newAssemblyGauge("gc_percent", "Assembly GC content"),
	}
	r.registry.MustRegister(
		r.stagesTotal,
		r.stageDuration,
		r.stagesRunning,
		r.workflowsTotal,
		r.commandsTotal,
		r.assemblyContigs,
		r.assemblyLength,
		r.assemblyN50,
		r.assemblyGC,
	)
	return r
}

func newAssemblyGauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "assembly",
			Name:      name,
			Help:      help,
		},
		[]string{"sample"},
	)
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// StateChanged implements workflow.Observer.
func (r *Recorder) StateChanged(string, workflow.State) {}

// StageStarted implements workflow.Observer.
func (r *Recorder) StageStarted(string, string) {
	r.stagesRunning.Inc()
}

// StageFinished implements workflow.Observer.
func (r *Recorder) StageFinished(sample string, res report.StageResult) {
	r.stagesRunning.Dec()
	r.stagesTotal.WithLabelValues(res.Stage, string(res.Status)).Inc()
	if res.Status != report.StatusSkipped {
		r.stageDuration.WithLabelValues(res.Stage).Observe(res.Duration.Seconds())
	}
	for _, c := range res.Commands {
		if len(c.Command) == 0 {
			continue
		}
		outcome := "success"
		switch {
		case c.TimedOut:
			outcome = "timeout"
		case !c.Success:
			outcome = "failure"
		}
		r.commandsTotal.WithLabelValues(filepath.Base(c.Command[0]), outcome).Inc()
	}
	if res.Stage == "assembly" && res.Status == report.StatusPassed {
		setGauge(r.assemblyContigs, sample, res.Metrics, "contigs")
		setGauge(r.assemblyLength, sample, res.Metrics, "total_length")
		setGauge(r.assemblyN50, sample, res.Metrics, "n50")
		setGauge(r.assemblyGC, sample, res.Metrics, "gc_percent")
	}
}

// RecordWorkflow counts a finished workflow.
func (r *Recorder) RecordWorkflow(res report.WorkflowResult) {
	result := "success"
	if !res.Success {
		result = "failed"
	}
	r.workflowsTotal.WithLabelValues(res.Mode, result).Inc()
}

// Replay records a finished workflow as if it had been observed live.
func (r *Recorder) Replay(res report.WorkflowResult) {
	for _, st := range res.Stages {
		r.StageStarted(res.Sample, st.Stage)
		r.StageFinished(res.Sample, st)
	}
	r.RecordWorkflow(res)
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %q: %w", path, err)
	}
	return nil
}

func setGauge(g *prometheus.GaugeVec, sample string, m report.Metrics, key string) {
	v, ok := m.Get(key)
	if !ok {
		return
	}
	if f, ok := toFloat(v); ok {
		g.WithLabelValues(sample).Set(f)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
