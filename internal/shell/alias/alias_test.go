package alias

import "testing"

func TestExpandReplacesLeadingWordOnce(t *testing.T) {
	tbl := New(map[string]string{
		"g":  "git",
		"ll": "ls -la",
	})

	if got := tbl.Expand("g status"); got != "git status" {
		t.Errorf("Expand = %q, want %q", got, "git status")
	}
	if got := tbl.Expand("ll"); got != "ls -la" {
		t.Errorf("Expand = %q, want %q", got, "ls -la")
	}
}

func TestExpandNoOpWhenNotAnAlias(t *testing.T) {
	tbl := New(map[string]string{"g": "git"})
	if got := tbl.Expand("status -s"); got != "status -s" {
		t.Errorf("Expand = %q, want unchanged", got)
	}
}

func TestExpandDoesNotRecurse(t *testing.T) {
	tbl := New(map[string]string{
		"ll": "ls -la",
		"ls": "ls --color",
	})
	// Expanding "ll" yields "ls -la"; the resulting leading word "ls" must
	// NOT be expanded again (single-pass, per spec.md open question).
	if got := tbl.Expand("ll"); got != "ls -la" {
		t.Errorf("Expand = %q, want %q (no recursive expansion)", got, "ls -la")
	}
}

func TestSetUnsetGet(t *testing.T) {
	tbl := New(nil)
	tbl.Set("x", "echo x")
	if v, ok := tbl.Get("x"); !ok || v != "echo x" {
		t.Errorf("Get(x) = %q, %v", v, ok)
	}
	if !tbl.Unset("x") {
		t.Error("Unset(x) = false, want true")
	}
	if tbl.Unset("x") {
		t.Error("second Unset(x) = true, want false")
	}
}
