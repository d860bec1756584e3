package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound indicates the executable could not be resolved on PATH.
	ErrNotFound = errors.New("executable not found")
	// ErrStart indicates the executable was found but the process could not be started.
	ErrStart = errors.New("start process")
)

// Options configure how the runner executes commands.
type Options struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Verbose   bool
	Env       []string
	TailLines int
	KillGrace time.Duration
	Now       func() time.Time
	Logger    *zap.Logger
}

// Runner executes external commands and captures their output.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 40
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = 2 * time.Second
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts}
}

// LookPath resolves name on PATH.
func (r *Runner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

// Run executes cmd and blocks until it exits or its timeout elapses. A nonzero
// exit is reported through Result; the error is reserved for commands that
// could not be located or started.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	proc, err := r.Start(ctx, cmd)
	if err != nil {
		return Result{Command: cmd.Argv(), ExitCode: exitCodeNotStarted}, err
	}
	return proc.Wait(context.Background())
}

// Start launches cmd without waiting for it. The returned Process can be
// polled or awaited; it owns the timeout for cmd.
func (r *Runner) Start(ctx context.Context, cmd Command) (*Process, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	path, err := r.LookPath(cmd.Name)
	if err != nil {
		r.opts.Logger.Warn("executable not found", zap.String("tool", cmd.Name))
		return nil, err
	}

	workingDir, err := resolveWorkingDirectory(cmd.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrStart, cmd.Name, err)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if cmd.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	c := exec.CommandContext(runCtx, path, cmd.Args...)
	c.Dir = workingDir
	c.Env = mergeEnv(r.opts.Env, cmd.Env)
	c.WaitDelay = r.opts.KillGrace
	configureProcessGroup(c)

	proc := &Process{
		cmd:     cmd,
		done:    make(chan struct{}),
		started: r.opts.Now(),
	}
	if r.opts.Verbose {
		c.Stdout = io.MultiWriter(r.opts.Stdout, &proc.stdout)
		c.Stderr = io.MultiWriter(r.opts.Stderr, &proc.stderr)
	} else {
		c.Stdout = &proc.stdout
		c.Stderr = &proc.stderr
	}

	r.opts.Logger.Info("starting command",
		zap.String("command", cmd.String()),
		zap.String("dir", workingDir),
		zap.Duration("timeout", cmd.Timeout),
	)

	if err := c.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w %s: %v", ErrStart, cmd.Name, err)
	}
	proc.pid = c.Process.Pid

	go func() {
		defer cancel()
		waitErr := c.Wait()
		finished := r.opts.Now()

		res := Result{
			Command:  cmd.Argv(),
			ExitCode: exitCode(waitErr),
			Stdout:   proc.stdout.String(),
			Stderr:   proc.stderr.String(),
			Duration: finished.Sub(proc.started),
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			res.TimedOut = true
			if res.ExitCode == 0 {
				res.ExitCode = exitCodeKilled
			}
			res.Stderr = strings.TrimRight(res.Stderr, "\n") + fmt.Sprintf("\ncommand timed out after %s", cmd.Timeout)
		} else if ctx.Err() != nil && res.ExitCode == 0 && waitErr != nil {
			res.ExitCode = exitCodeKilled
		}
		res.DurationMS = res.Duration.Milliseconds()
		res.Success = res.ExitCode == 0 && !res.TimedOut && waitErr == nil

		logFields := []zap.Field{
			zap.String("tool", cmd.Name),
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("duration", res.Duration),
			zap.Bool("timed_out", res.TimedOut),
		}
		if res.Success {
			r.opts.Logger.Info("command finished", logFields...)
		} else {
			logFields = append(logFields, zap.String("stderr_tail", tailLines(res.Stderr, r.opts.TailLines)))
			r.opts.Logger.Warn("command failed", logFields...)
		}

		proc.result = res
		close(proc.done)
	}()

	return proc, nil
}

const (
	exitCodeNotStarted = 127
	exitCodeKilled     = -1
)

func resolveWorkingDirectory(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		return wd, nil
	}
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolve working directory %q: %w", dir, err)
		}
		dir = abs
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("working directory %q not found", dir)
		}
		return "", fmt.Errorf("stat working directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %q is not a directory", dir)
	}
	return dir, nil
}

func mergeEnv(base []string, overlay []string) []string {
	envMap := make(map[string]string, len(base)+len(overlay))
	for _, list := range [][]string{base, overlay} {
		for _, kv := range list {
			if idx := strings.Index(kv, "="); idx != -1 {
				envMap[kv[:idx]] = kv[idx+1:]
			}
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
