package workflow

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/stage"
)

type stubStage struct {
	name   string
	status report.Status
	calls  int
	panics bool
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Run(context.Context) report.StageResult {
	s.calls++
	if s.panics {
		panic("boom")
	}
	res := report.StageResult{Stage: s.name, Status: s.status}
	if s.status == report.StatusFailed {
		res.Failure = report.FailureInvocation
		res.Message = "exit status 1"
	}
	return res
}

type recorder struct {
	states   []State
	started  []string
	finished []string
}

func (r *recorder) StateChanged(_ string, s State)  { r.states = append(r.states, s) }
func (r *recorder) StageStarted(_ string, n string) { r.started = append(r.started, n) }
func (r *recorder) StageFinished(_ string, res report.StageResult) {
	r.finished = append(r.finished, res.Stage)
}

func fixedOrchestrator(rec *recorder) *Orchestrator {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return New(nil,
		WithObserver(rec),
		WithIDs(func() string { return "run-1" }),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
}

func TestQCModeNeverInvokesAssembler(t *testing.T) {
	qc := &stubStage{name: stage.NameQC, status: report.StatusPassed}
	asm := &stubStage{name: stage.NameAssembly, status: report.StatusPassed}
	rec := &recorder{}

	res := fixedOrchestrator(rec).Run(context.Background(), Request{Sample: "s1", Mode: ModeQC, QC: qc, Assembly: asm})

	if asm.calls != 0 {
		t.Fatalf("assembler invoked %d times in qc mode", asm.calls)
	}
	if len(res.Stages) != 1 || res.Stages[0].Stage != stage.NameQC {
		t.Fatalf("expected exactly one qc result, got %+v", res.Stages)
	}
	if !res.Success || res.RunID != "run-1" || res.Sample != "s1" || res.Mode != "qc" {
		t.Fatalf("unexpected workflow result %+v", res)
	}
	want := []State{StatePending, StateRunningQC, StateDone}
	if !slices.Equal(rec.states, want) {
		t.Fatalf("states = %v, want %v", rec.states, want)
	}
}

func TestAssemblyModeSkipsQC(t *testing.T) {
	qc := &stubStage{name: stage.NameQC, status: report.StatusPassed}
	asm := &stubStage{name: stage.NameAssembly, status: report.StatusPassed}
	rec := &recorder{}

	res := fixedOrchestrator(rec).Run(context.Background(), Request{Mode: ModeAssembly, QC: qc, Assembly: asm})
	if qc.calls != 0 || asm.calls != 1 || len(res.Stages) != 1 {
		t.Fatalf("unexpected calls qc=%d asm=%d stages=%d", qc.calls, asm.calls, len(res.Stages))
	}
	want := []State{StatePending, StateRunningAssembly, StateDone}
	if !slices.Equal(rec.states, want) {
		t.Fatalf("states = %v, want %v", rec.states, want)
	}
}

func TestFullModeRunsAssemblyAfterFailedQC(t *testing.T) {
	qc := &stubStage{name: stage.NameQC, status: report.StatusFailed}
	asm := &stubStage{name: stage.NameAssembly, status: report.StatusPassed}
	rec := &recorder{}

	res := fixedOrchestrator(rec).Run(context.Background(), Request{Sample: "s1", Mode: ModeFull, QC: qc, Assembly: asm})

	if asm.calls != 1 {
		t.Fatalf("assembly must still run after qc failure")
	}
	if len(res.Stages) != 2 {
		t.Fatalf("expected two results, got %+v", res.Stages)
	}
	if res.Stages[0].Status != report.StatusFailed || res.Stages[1].Status != report.StatusPassed {
		t.Fatalf("unexpected statuses %+v", res.Stages)
	}
	if res.Success {
		t.Fatalf("workflow with a failed stage cannot succeed")
	}
	if res.Stages[1].Sample != "s1" {
		t.Fatalf("sample should be filled in, got %q", res.Stages[1].Sample)
	}
	wantStates := []State{StatePending, StateRunningQC, StateRunningAssembly, StateDone}
	if !slices.Equal(rec.states, wantStates) {
		t.Fatalf("states = %v, want %v", rec.states, wantStates)
	}
	if !slices.Equal(rec.started, []string{"qc", "assembly"}) || !slices.Equal(rec.finished, []string{"qc", "assembly"}) {
		t.Fatalf("observer saw started=%v finished=%v", rec.started, rec.finished)
	}
	if res.Duration <= 0 || res.DurationMS != res.Duration.Milliseconds() {
		t.Fatalf("duration not recorded: %+v", res)
	}
}

func TestRunNeverPanics(t *testing.T) {
	qc := &stubStage{name: stage.NameQC, panics: true}
	res := New(nil).Run(context.Background(), Request{Mode: ModeFull, QC: qc})

	if len(res.Stages) != 2 {
		t.Fatalf("expected two results, got %+v", res.Stages)
	}
	if res.Stages[0].Failure != report.FailureInvocation {
		t.Fatalf("panic should become invocation failure, got %+v", res.Stages[0])
	}
	if res.Stages[1].Failure != report.FailureInput {
		t.Fatalf("missing assembly stage should be an input failure, got %+v", res.Stages[1])
	}
	if res.RunID == "" {
		t.Fatalf("expected generated run id")
	}
}

func TestRunUnknownMode(t *testing.T) {
	res := New(nil).Run(context.Background(), Request{Mode: "align"})
	if res.Success || len(res.Stages) != 1 || res.Stages[0].Failure != report.FailureInput {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCancelledSkipsStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	qc := &stubStage{name: stage.NameQC, status: report.StatusPassed}
	res := New(nil).Run(ctx, Request{Mode: ModeQC, QC: qc})
	if qc.calls != 0 || res.Stages[0].Status != report.StatusSkipped {
		t.Fatalf("cancelled run should skip stages: %+v", res)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"qc", "assembly", "full"} {
		if _, err := ParseMode(s); err != nil {
			t.Fatalf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("everything"); err == nil {
		t.Fatalf("expected error")
	}
}
