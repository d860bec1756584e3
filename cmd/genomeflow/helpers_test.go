package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	fakeFastQC = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "FastQC v0.12.1"; exit 0; fi
out=""
files=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    -t) shift 2 ;;
    *) files="$files $1"; shift ;;
  esac
done
for f in $files; do
  name=$(basename "$f")
  name=${name%.gz}
  name=${name%.fastq}
  name=${name%.fq}
  mkdir -p "$out/${name}_fastqc"
  printf 'PASS\tBasic Statistics\t%s\n' "$f" > "$out/${name}_fastqc/summary.txt"
  printf '>>Basic Statistics\tpass\nTotal Sequences\t4\n%%GC\t50\n>>END_MODULE\n' > "$out/${name}_fastqc/fastqc_data.txt"
done
`
	fakeSpades = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "SPAdes genome assembler v3.15.5"; exit 0; fi
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
mkdir -p "$out"
printf '>c1\nAAAAAAAAAA\n>c2\nCCCCCGGGGG\n>c3\nATATAT\n' > "$out/contigs.fasta"
`
	failingSpades = `#!/bin/sh
echo "== Error ==  out of memory" >&2
exit 1
`
)

// installTools puts shell scripts named after the tools first on PATH.
func installTools(t *testing.T, tools map[string]string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are POSIX shell scripts")
	}
	bin := t.TempDir()
	for name, script := range tools {
		if err := os.WriteFile(filepath.Join(bin, name), []byte(script), 0o755); err != nil {
			t.Fatalf("write fake %s: %v", name, err)
		}
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// workspace creates paired reads in a fresh directory and makes it the
// working directory.
func workspace(t *testing.T) (dir, r1, r2 string) {
	t.Helper()
	dir = t.TempDir()
	r1 = filepath.Join(dir, "ecoli_R1.fastq")
	r2 = filepath.Join(dir, "ecoli_R2.fastq")
	writeFile(t, r1, "@r1\nACGT\n+\nIIII\n")
	writeFile(t, r2, "@r1\nTGCA\n+\nIIII\n")
	chdir(t, dir)
	return dir, r1, r2
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := execute(context.Background(), args, stdout, stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %q: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore dir: %v", err)
		}
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %q: %v", path, err)
	}
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
