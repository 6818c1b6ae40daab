package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiosk404/jarvish/internal/shell/parser"
)

func mustParse(t *testing.T, line string) *parser.Pipeline {
	t.Helper()
	p, err := parser.ParseEnv(line, os.Environ())
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return p
}

func baseOpts(t *testing.T) Options {
	t.Helper()
	return Options{Cwd: t.TempDir(), Env: os.Environ()}
}

func TestRunSingleCommandCapturesStdout(t *testing.T) {
	pl := mustParse(t, "echo hello")
	out, err := Run(context.Background(), pl, baseOpts(t))
	if err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 0 {
		t.Fatalf("exit code = %d", out.ExitCode)
	}
	if strings.TrimSpace(string(out.Stdout)) != "hello" {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestRunPipelineChainsStages(t *testing.T) {
	pl := mustParse(t, "echo hello | wc -c")
	out, err := Run(context.Background(), pl, baseOpts(t))
	if err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 0 {
		t.Fatalf("exit code = %d, stderr=%s", out.ExitCode, out.Stderr)
	}
	if strings.TrimSpace(string(out.Stdout)) != "6" {
		t.Errorf("stdout = %q, want 6", out.Stdout)
	}
}

func TestRunNonzeroExitCodePropagates(t *testing.T) {
	pl := mustParse(t, "false")
	out, err := Run(context.Background(), pl, baseOpts(t))
	if err != nil {
		t.Fatal(err)
	}
	if out.ExitCode == 0 {
		t.Error("expected nonzero exit code")
	}
}

func TestRunStdoutRedirectionWritesFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")
	pl := mustParse(t, "echo redirected > "+target)
	opts := Options{Cwd: dir, Env: os.Environ()}
	out, err := Run(context.Background(), pl, opts)
	if err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 0 {
		t.Fatalf("exit code = %d", out.ExitCode)
	}
	contents, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(contents)) != "redirected" {
		t.Errorf("file contents = %q", contents)
	}
}

func TestRunEmptyPipelineIsError(t *testing.T) {
	if _, err := Run(context.Background(), &parser.Pipeline{}, baseOpts(t)); err == nil {
		t.Error("expected error for empty pipeline")
	}
}

func TestRunPTYRejectsMultiCommandPipeline(t *testing.T) {
	pl := mustParse(t, "echo hello | cat")
	opts := baseOpts(t)
	opts.PTY = true
	if _, err := Run(context.Background(), pl, opts); err == nil {
		t.Error("expected error: PTY mode only supports a single command")
	}
}
