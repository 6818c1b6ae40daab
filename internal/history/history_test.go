package history

import (
	"path/filepath"
	"testing"

	"github.com/kiosk404/jarvish/internal/blobstore"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	dir := t.TempDir()
	blobs, err := blobstore.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := Open(filepath.Join(dir, "history.db"), blobs)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestRecordAndByID(t *testing.T) {
	idx := newTestIndex(t)

	id, err := idx.Record("echo hello", "/tmp", 0, []byte("hello\n"), nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec, err := idx.ByID(id)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if rec.Command != "echo hello" || rec.ExitCode != 0 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.StdoutHash == "" {
		t.Errorf("expected stdout hash to be set")
	}
	if rec.StderrHash != "" {
		t.Errorf("expected empty stderr hash, got %q", rec.StderrHash)
	}

	out, err := idx.LoadOutput(rec.StdoutHash)
	if err != nil {
		t.Fatalf("LoadOutput: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("LoadOutput = %q, want %q", out, "hello\n")
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	idx := newTestIndex(t)

	for _, cmd := range []string{"a", "b", "c"} {
		if _, err := idx.Record(cmd, "/tmp", 0, nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := idx.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].Command != "c" || recs[1].Command != "b" {
		t.Errorf("unexpected order: %+v", recs)
	}
}

func TestRecordWithNonZeroExitNoOutputs(t *testing.T) {
	idx := newTestIndex(t)

	id, err := idx.Record("false", "/tmp", 1, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := idx.ByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.StdoutHash != "" || rec.StderrHash != "" {
		t.Errorf("expected empty hashes for empty output, got %+v", rec)
	}
	if rec.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", rec.ExitCode)
	}
}
