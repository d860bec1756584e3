package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"
)

// Command describes a single external tool invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// NewCommand builds a Command for name with args.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: append([]string{}, args...)}
}

// WithTimeout returns a copy of c that is terminated after d.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// WithDir returns a copy of c that runs in dir.
func (c Command) WithDir(dir string) Command {
	c.Dir = dir
	return c
}

// Argv returns the executable followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command line with shell-style quoting for display.
func (c Command) String() string {
	argv := c.Argv()
	parts := make([]string, 0, len(argv))
	for _, a := range argv {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func (c Command) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("command has no executable")
	}
	if c.Timeout < 0 {
		return errors.New("command timeout must not be negative")
	}
	return nil
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Result captures the outcome of one command.
type Result struct {
	Command    []string      `json:"command"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	TimedOut   bool          `json:"timed_out"`
	Success    bool          `json:"success"`
}

// Process is a command started by Runner.Start.
type Process struct {
	cmd     Command
	pid     int
	started time.Time
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	done    chan struct{}
	result  Result
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.pid
}

// Done is closed once the process has exited and its output is collected.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Poll reports the result if the process has finished.
func (p *Process) Poll() (Result, bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the process exits or ctx ends. Ending ctx stops the
// wait only; the process keeps running under its own timeout.
func (p *Process) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
