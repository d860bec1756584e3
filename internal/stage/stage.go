// Package stage wraps the external quality-control and assembly tools. Each
// stage builds a command line, runs it through an Executor and turns the
// tool's output directory into a report.StageResult. Stage failures are
// returned as data, never as Go errors.
package stage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/runner"
	"github.com/bgricker/genomeflow/internal/version"
)

// Stage names used in results and reports.
const (
	NameQC       = "qc"
	NameAssembly = "assembly"
)

// Stage is one unit of the workflow.
type Stage interface {
	Name() string
	Run(ctx context.Context) report.StageResult
}

// Executor resolves and runs external tools. *runner.Runner satisfies it.
type Executor interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

// Starter is implemented by executors that can launch a command without
// blocking. Long-running stages use it to report progress while waiting.
type Starter interface {
	Start(ctx context.Context, cmd runner.Command) (*runner.Process, error)
}

// invoke runs cmd and records it on res. It returns false after marking res
// failed when the tool is missing, could not start, or exited unsuccessfully.
func invoke(ctx context.Context, exec Executor, logger *zap.Logger, res *report.StageResult, cmd runner.Command, heartbeat time.Duration) (runner.Result, bool) {
	out, err := execute(ctx, exec, logger, cmd, heartbeat)
	res.Commands = append(res.Commands, out)
	if err != nil {
		if version.Missing(err) {
			res.Fail(report.FailureMissingTool, fmt.Sprintf("%s is not available on PATH", cmd.Name))
		} else {
			res.Fail(report.FailureInvocation, err.Error())
		}
		return out, false
	}
	if !out.Success {
		res.Fail(report.FailureInvocation, failureMessage(cmd.Name, out))
		return out, false
	}
	return out, true
}

func execute(ctx context.Context, exec Executor, logger *zap.Logger, cmd runner.Command, heartbeat time.Duration) (runner.Result, error) {
	starter, ok := exec.(Starter)
	if !ok || heartbeat <= 0 {
		return exec.Run(ctx, cmd)
	}
	proc, err := starter.Start(ctx, cmd)
	if err != nil {
		return runner.Result{Command: cmd.Argv(), ExitCode: 127}, err
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	started := time.Now()
	for {
		select {
		case <-proc.Done():
			return proc.Wait(context.Background())
		case <-ticker.C:
			logger.Info("still running",
				zap.String("tool", cmd.Name),
				zap.Int("pid", proc.PID()),
				zap.Duration("elapsed", time.Since(started).Round(time.Second)),
			)
		}
	}
}

// failureMessage keeps the tool's error stream verbatim, falling back to the
// tail of stdout for tools that report errors there.
func failureMessage(tool string, res runner.Result) string {
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return msg
	}
	if res.TimedOut {
		return fmt.Sprintf("%s timed out", tool)
	}
	msg := fmt.Sprintf("%s exited with code %d", tool, res.ExitCode)
	if tail := strings.TrimSpace(tailLines(res.Stdout, 20)); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func checkInputs(paths []string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("input file %q not found", p)
		}
		if info.IsDir() {
			return fmt.Errorf("input %q is a directory", p)
		}
	}
	return nil
}

func finish(res *report.StageResult, started time.Time) report.StageResult {
	if res.Status == "" {
		res.Status = report.StatusPassed
	}
	res.Duration = time.Since(started)
	res.DurationMS = res.Duration.Milliseconds()
	return *res
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
