package shell

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiosk404/jarvish/internal/blobstore"
	"github.com/kiosk404/jarvish/internal/history"
	"github.com/kiosk404/jarvish/internal/shell/shelltypes"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	blobs, err := blobstore.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := history.Open(filepath.Join(dir, "history.db"), blobs)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	e, err := New(idx, map[string]string{"ll": "ls -la"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestGateAcceptsBuiltinsAndPathPrograms(t *testing.T) {
	e := newTestEngine(t)
	if !e.Gate("cd /tmp") {
		t.Error("cd should be gated in")
	}
	if !e.Gate("true") {
		t.Error("true should be gated in (builtin)")
	}
	if !e.Gate("echo hi") {
		t.Error("echo should be gated in (on PATH)")
	}
}

func TestGateDeclinesProse(t *testing.T) {
	e := newTestEngine(t)
	if e.Gate("what's the weather like today") {
		t.Error("prose with an apostrophe should be declined to the AI")
	}
	if e.Gate("why did that fail") {
		t.Error("plain prose should be declined to the AI")
	}
}

func TestGateAcceptsUnresolvedProgramWithShellSyntax(t *testing.T) {
	e := newTestEngine(t)
	if !e.Gate("nope | grep x") {
		t.Error("a pipeline referencing a missing program should still be gated in, not routed to the AI")
	}
}

func TestRunCdAndCwdSequence(t *testing.T) {
	e := newTestEngine(t)
	sub := filepath.Join(e.Cwd(), "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res := e.Run(context.Background(), "cd "+sub, false)
	if res.ExitCode != 0 {
		t.Fatalf("cd failed: %+v", res)
	}

	res = e.Run(context.Background(), "cwd", false)
	if res.ExitCode != 0 || res.Stdout != sub+"\n" {
		t.Fatalf("cwd = %+v, want %q", res, sub+"\n")
	}
}

func TestRunPipelineChainsCommands(t *testing.T) {
	e := newTestEngine(t)
	res := e.Run(context.Background(), "echo hello | cat", false)
	if res.ExitCode != 0 {
		t.Fatalf("pipeline failed: %+v", res)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello\n")
	}
}

func TestRunRedirectionRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	target := filepath.Join(e.Cwd(), "out.txt")

	res := e.Run(context.Background(), "echo round-trip > "+target, false)
	if res.ExitCode != 0 {
		t.Fatalf("redirect write failed: %+v", res)
	}

	res = e.Run(context.Background(), "cat "+target, false)
	if res.ExitCode != 0 || res.Stdout != "round-trip\n" {
		t.Fatalf("redirect read = %+v, want %q", res, "round-trip\n")
	}
}

func TestRunUnresolvedProgramReportsSpawnError(t *testing.T) {
	e := newTestEngine(t)
	res := e.Run(context.Background(), "nope-definitely-not-a-real-binary", false)
	if res.ExitCode != 127 {
		t.Errorf("exit code = %d, want 127", res.ExitCode)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	e := newTestEngine(t)
	e.Run(context.Background(), "echo recorded", false)

	recs, err := e.hist.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Command != "echo recorded" {
		t.Errorf("recent history = %+v", recs)
	}
}

func TestRunAICommandTagsHistoryAsAIOrigin(t *testing.T) {
	e := newTestEngine(t)
	stdout, _, exitCode := e.RunAICommand(context.Background(), "echo from-ai")
	if exitCode != 0 || stdout != "from-ai\n" {
		t.Fatalf("RunAICommand = %q, %d", stdout, exitCode)
	}

	recs, err := e.hist.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Command != aiCommandPrefix+"echo from-ai" {
		t.Errorf("expected AI-tagged history row, got %+v", recs)
	}
}

func TestWantsPTYDetectsInteractivePrograms(t *testing.T) {
	e := newTestEngine(t)
	if !e.WantsPTY("vim file.txt") {
		t.Error("vim should be PTY-eligible")
	}
	if !e.WantsPTY("less /etc/hosts") {
		t.Error("less should be PTY-eligible")
	}
	if !e.WantsPTY("/usr/bin/vim") {
		t.Error("an absolute path to an interactive program should still match on its base name")
	}
}

func TestWantsPTYDeclinesOrdinaryCommandsAndPipelines(t *testing.T) {
	e := newTestEngine(t)
	if e.WantsPTY("echo hello") {
		t.Error("echo should not be PTY-eligible")
	}
	if e.WantsPTY("cat out.txt") {
		t.Error("cat should not be PTY-eligible")
	}
	if e.WantsPTY("vim file.txt | cat") {
		t.Error("a pipeline should never be PTY-eligible even if it contains an interactive program")
	}
}

func TestBuiltinDispatchSetsLoopTerminate(t *testing.T) {
	e := newTestEngine(t)
	res := e.Run(context.Background(), "exit 5", false)
	if res.ExitCode != 5 || res.LoopAction != shelltypes.LoopTerminate {
		t.Errorf("exit result = %+v", res)
	}
}
