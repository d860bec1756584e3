package stage

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bgricker/genomeflow/internal/runner"
)

// fakeExec stands in for the runner. Tools not listed in handlers are missing.
type fakeExec struct {
	handlers map[string]func(cmd runner.Command) runner.Result
	calls    []runner.Command
}

func newFakeExec() *fakeExec {
	return &fakeExec{handlers: map[string]func(runner.Command) runner.Result{}}
}

func (f *fakeExec) on(tool string, h func(cmd runner.Command) runner.Result) *fakeExec {
	f.handlers[tool] = h
	return f
}

func (f *fakeExec) LookPath(name string) (string, error) {
	if _, ok := f.handlers[name]; ok {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%w: %s", runner.ErrNotFound, name)
}

func (f *fakeExec) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.calls = append(f.calls, cmd)
	h, ok := f.handlers[cmd.Name]
	if !ok {
		return runner.Result{Command: cmd.Argv(), ExitCode: 127}, fmt.Errorf("%w: %s", runner.ErrNotFound, cmd.Name)
	}
	res := h(cmd)
	res.Command = cmd.Argv()
	res.Success = res.ExitCode == 0 && !res.TimedOut
	return res, nil
}

func (f *fakeExec) called(tool string) int {
	n := 0
	for _, c := range f.calls {
		if c.Name == tool {
			n++
		}
	}
	return n
}

func ok() runner.Result { return runner.Result{} }

// argAfter returns the value following flag in cmd's arguments.
func argAfter(cmd runner.Command, flag string) string {
	for i, a := range cmd.Args {
		if a == flag && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
	}
	return ""
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

const (
	summaryTxt = "PASS\tBasic Statistics\tr_R1.fastq.gz\nWARN\tPer base sequence content\tr_R1.fastq.gz\nFAIL\tAdapter Content\tr_R1.fastq.gz\n"
	dataTxt    = "##FastQC\t0.12.1\n>>Basic Statistics\tpass\n#Measure\tValue\nFilename\tr_R1.fastq.gz\nTotal Sequences\t250000\nSequences flagged as poor quality\t0\nSequence length\t35-151\n%GC\t51\n>>END_MODULE\n"
)
