package stage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bgricker/genomeflow/internal/runner"
)

func TestAssemblyWithRealRunnerLogsHeartbeat(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX shell")
	}
	bin := t.TempDir()
	script := "#!/bin/sh\nout=\"\"\nwhile [ $# -gt 0 ]; do\n  if [ \"$1\" = \"-o\" ]; then out=\"$2\"; fi\n  shift\ndone\nsleep 0.3\nprintf '>c1\\nACGTACGT\\n' > \"$out/contigs.fasta\"\n"
	if err := os.WriteFile(filepath.Join(bin, "spades.py"), []byte(script), 0o755); err != nil {
		t.Fatalf("write fake assembler: %v", err)
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	reads := filepath.Join(t.TempDir(), "s.fq")
	touch(t, reads, "@r\nA\n+\nI\n")

	logs := &bytes.Buffer{}
	logger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(logs), zapcore.InfoLevel))

	asm := NewAssembly(runner.New(runner.Options{}), AssemblyOptions{
		Forward:   reads,
		OutputDir: filepath.Join(t.TempDir(), "asm"),
		Heartbeat: 50 * time.Millisecond,
		Timeout:   10 * time.Second,
	}, logger)
	res := asm.Run(context.Background())
	if !res.Success() {
		t.Fatalf("expected success, got %+v", res)
	}
	if v, _ := res.Metrics.Get("n50"); v != 8 {
		t.Fatalf("n50 = %v", v)
	}
	if !strings.Contains(logs.String(), "still running") {
		t.Fatalf("expected heartbeat log, got %q", logs.String())
	}
	if len(res.Commands) != 1 || !res.Commands[0].Success {
		t.Fatalf("expected one successful command, got %+v", res.Commands)
	}
}
