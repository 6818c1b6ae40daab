package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kiosk404/jarvish/internal/blobstore"
	"github.com/kiosk404/jarvish/internal/history"
	"github.com/kiosk404/jarvish/internal/shell/alias"
	"github.com/kiosk404/jarvish/internal/shell/shelltypes"
)

// fakeState is a minimal State implementation for exercising built-ins
// without a real REPL around them.
type fakeState struct {
	cwd      string
	env      map[string]string
	aliases  *alias.Table
	hist     *history.Index
	reloaded bool
}

func newFakeState(t *testing.T) *fakeState {
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
	return &fakeState{
		cwd:     dir,
		env:     map[string]string{"HOME": dir},
		aliases: alias.New(nil),
		hist:    idx,
	}
}

func (f *fakeState) Cwd() string { return f.cwd }
func (f *fakeState) Chdir(path string) error {
	f.cwd = path
	return nil
}
func (f *fakeState) Getenv(key string) string { return f.env[key] }
func (f *fakeState) Setenv(key, value string) { f.env[key] = value }
func (f *fakeState) Unsetenv(key string)      { delete(f.env, key) }
func (f *fakeState) Environ() []string {
	out := make([]string, 0, len(f.env))
	for k, v := range f.env {
		out = append(out, k+"="+v)
	}
	return out
}
func (f *fakeState) Aliases() *alias.Table   { return f.aliases }
func (f *fakeState) History() *history.Index { return f.hist }
func (f *fakeState) ReloadConfig() error     { f.reloaded = true; return nil }

func TestCdBuiltinChangesDirectory(t *testing.T) {
	st := newFakeState(t)
	sub := filepath.Join(st.cwd, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry()
	res, ok := r.Dispatch(st, "cd", []string{sub})
	if !ok {
		t.Fatal("cd not found in registry")
	}
	if res.ExitCode != 0 {
		t.Fatalf("cd failed: %+v", res)
	}
	if st.cwd != sub {
		t.Errorf("cwd = %q, want %q", st.cwd, sub)
	}
}

func TestCdBuiltinMissingDirectory(t *testing.T) {
	st := newFakeState(t)
	r := NewRegistry()
	res, _ := r.Dispatch(st, "cd", []string{filepath.Join(st.cwd, "nope")})
	if res.ExitCode == 0 {
		t.Error("expected nonzero exit for missing directory")
	}
}

func TestExitBuiltinSetsLoopTerminate(t *testing.T) {
	st := newFakeState(t)
	r := NewRegistry()
	res, _ := r.Dispatch(st, "exit", []string{"3"})
	if res.ExitCode != 3 || res.LoopAction != shelltypes.LoopTerminate {
		t.Errorf("exit result = %+v", res)
	}
}

func TestExportAndUnset(t *testing.T) {
	st := newFakeState(t)
	r := NewRegistry()
	if res, _ := r.Dispatch(st, "export", []string{"FOO=bar"}); res.ExitCode != 0 {
		t.Fatalf("export failed: %+v", res)
	}
	if st.env["FOO"] != "bar" {
		t.Errorf("FOO = %q, want bar", st.env["FOO"])
	}
	if res, _ := r.Dispatch(st, "unset", []string{"FOO"}); res.ExitCode != 0 {
		t.Fatalf("unset failed: %+v", res)
	}
	if _, ok := st.env["FOO"]; ok {
		t.Error("FOO should be unset")
	}
}

func TestAliasAndUnalias(t *testing.T) {
	st := newFakeState(t)
	r := NewRegistry()
	if res, _ := r.Dispatch(st, "alias", []string{"g=git status"}); res.ExitCode != 0 {
		t.Fatalf("alias failed: %+v", res)
	}
	if v, ok := st.aliases.Get("g"); !ok || v != "git status" {
		t.Errorf("alias g = %q, %v", v, ok)
	}
	if res, _ := r.Dispatch(st, "unalias", []string{"g"}); res.ExitCode != 0 {
		t.Fatalf("unalias failed: %+v", res)
	}
	if _, ok := st.aliases.Get("g"); ok {
		t.Error("alias g should be gone")
	}
}

func TestWhichFindsBuiltinBeforePath(t *testing.T) {
	st := newFakeState(t)
	r := NewRegistry()
	res, _ := r.Dispatch(st, "which", []string{"cd"})
	if res.ExitCode != 0 || res.Stdout != "cd: shell built-in\n" {
		t.Errorf("which cd = %+v", res)
	}
}

func TestTrueFalseExitCodes(t *testing.T) {
	st := newFakeState(t)
	r := NewRegistry()
	if res, _ := r.Dispatch(st, "true", nil); res.ExitCode != 0 {
		t.Errorf("true exit = %d", res.ExitCode)
	}
	if res, _ := r.Dispatch(st, "false", nil); res.ExitCode != 1 {
		t.Errorf("false exit = %d", res.ExitCode)
	}
}

func TestSourceReloadsConfig(t *testing.T) {
	st := newFakeState(t)
	r := NewRegistry()
	if res, _ := r.Dispatch(st, "source", nil); res.ExitCode != 0 {
		t.Fatalf("source failed: %+v", res)
	}
	if !st.reloaded {
		t.Error("expected ReloadConfig to be called")
	}
}

func TestHistoryBuiltinListsRecentRecords(t *testing.T) {
	st := newFakeState(t)
	if _, err := st.hist.Record("echo hi", st.cwd, 0, []byte("hi\n"), nil); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry()
	res, _ := r.Dispatch(st, "history", nil)
	if res.ExitCode != 0 {
		t.Fatalf("history failed: %+v", res)
	}
	if res.Stdout == "" {
		t.Error("expected nonempty history output")
	}
}

func TestIsBuiltinAndNames(t *testing.T) {
	r := NewRegistry()
	if !r.IsBuiltin("cd") {
		t.Error("cd should be a builtin")
	}
	if r.IsBuiltin("frobnicate") {
		t.Error("frobnicate should not be a builtin")
	}
	names := r.Names()
	if len(names) == 0 {
		t.Error("expected nonempty builtin name list")
	}
}
