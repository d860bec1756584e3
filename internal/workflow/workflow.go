// Package workflow sequences stages for one sample and collects their results.
package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/stage"
)

// Mode selects which stages run.
type Mode string

const (
	ModeQC       Mode = "qc"
	ModeAssembly Mode = "assembly"
	ModeFull     Mode = "full"
)

// ParseMode validates s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeQC, ModeAssembly, ModeFull:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want qc, assembly or full)", s)
}

// State is the orchestrator's position in a run.
type State string

const (
	StatePending         State = "pending"
	StateRunningQC       State = "running-qc"
	StateRunningAssembly State = "running-assembly"
	StateDone            State = "done"
)

// Observer receives progress notifications. Methods are called from the
// orchestrator's goroutine.
type Observer interface {
	StateChanged(sample string, state State)
	StageStarted(sample, stage string)
	StageFinished(sample string, result report.StageResult)
}

// Request describes one workflow invocation.
type Request struct {
	Sample   string
	Mode     Mode
	QC       stage.Stage
	Assembly stage.Stage
}

// Orchestrator runs stages strictly in sequence.
type Orchestrator struct {
	logger    *zap.Logger
	observers []Observer
	now       func() time.Time
	newID     func() string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers o for progress notifications.
func WithObserver(o Observer) Option {
	return func(orc *Orchestrator) {
		if o != nil {
			orc.observers = append(orc.observers, o)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(orc *Orchestrator) { orc.now = now }
}

// WithIDs overrides run id generation.
func WithIDs(newID func() string) Option {
	return func(orc *Orchestrator) { orc.newID = newID }
}

// New constructs an Orchestrator.
func New(logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the stages selected by req.Mode and always returns a result.
// Quality control and assembly are independent: a failed QC stage does not
// prevent assembly.
func (o *Orchestrator) Run(ctx context.Context, req Request) report.WorkflowResult {
	started := o.now()
	result := report.WorkflowResult{
		RunID:     o.newID(),
		Sample:    req.Sample,
		Mode:      string(req.Mode),
		StartedAt: started,
	}
	logger := o.logger.With(zap.String("sample", req.Sample), zap.String("run_id", result.RunID))
	o.transition(req.Sample, StatePending)

	type step struct {
		state State
		name  string
		stage stage.Stage
	}
	var steps []step
	switch req.Mode {
	case ModeQC:
		steps = []step{{StateRunningQC, stage.NameQC, req.QC}}
	case ModeAssembly:
		steps = []step{{StateRunningAssembly, stage.NameAssembly, req.Assembly}}
	case ModeFull:
		steps = []step{{StateRunningQC, stage.NameQC, req.QC}, {StateRunningAssembly, stage.NameAssembly, req.Assembly}}
	default:
		result.Stages = append(result.Stages, report.StageResult{
			Stage:   "workflow",
			Sample:  req.Sample,
			Status:  report.StatusFailed,
			Failure: report.FailureInput,
			Message: fmt.Sprintf("unknown mode %q", req.Mode),
		})
	}

	for _, s := range steps {
		o.transition(req.Sample, s.state)
		for _, obs := range o.observers {
			obs.StageStarted(req.Sample, s.name)
		}
		var res report.StageResult
		if ctx.Err() != nil {
			res = report.StageResult{Stage: s.name, Sample: req.Sample, Status: report.StatusSkipped, Message: "cancelled: " + ctx.Err().Error()}
		} else {
			res = o.runStage(ctx, s.name, s.stage, req.Sample)
		}
		if res.Sample == "" {
			res.Sample = req.Sample
		}
		logger.Info("stage finished",
			zap.String("stage", res.Stage),
			zap.String("status", string(res.Status)),
			zap.Duration("duration", res.Duration),
		)
		if res.Status == report.StatusFailed {
			logger.Warn("stage failed", zap.String("stage", res.Stage), zap.String("failure", string(res.Failure)), zap.String("message", res.Message))
		}
		for _, obs := range o.observers {
			obs.StageFinished(req.Sample, res)
		}
		result.Stages = append(result.Stages, res)
	}

	result.Duration = o.now().Sub(started)
	result.Finalize()
	o.transition(req.Sample, StateDone)
	return result
}

// runStage converts a missing stage or a panic into a failed result.
func (o *Orchestrator) runStage(ctx context.Context, name string, st stage.Stage, sample string) (res report.StageResult) {
	if st == nil {
		return report.StageResult{
			Stage:   name,
			Sample:  sample,
			Status:  report.StatusFailed,
			Failure: report.FailureInput,
			Message: fmt.Sprintf("no %s inputs were provided", name),
		}
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stage panicked", zap.String("stage", name), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res = report.StageResult{
				Stage:   name,
				Sample:  sample,
				Status:  report.StatusFailed,
				Failure: report.FailureInvocation,
				Message: fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return st.Run(ctx)
}

func (o *Orchestrator) transition(sample string, state State) {
	o.logger.Debug("workflow state", zap.String("sample", sample), zap.String("state", string(state)))
	for _, obs := range o.observers {
		obs.StateChanged(sample, state)
	}
}
