package parser

import "testing"

func testEnv(extra ...string) []string {
	env := []string{"HOME=/home/jarvish", "FOO=bar"}
	return append(env, extra...)
}

func TestTildeExpansionAtTokenStart(t *testing.T) {
	p, err := ParseEnv("ls ~", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].Args[0] != "/home/jarvish" {
		t.Errorf("args[0] = %q, want /home/jarvish", p.Commands[0].Args[0])
	}
}

func TestTildeDoesNotExpandMidToken(t *testing.T) {
	p, err := ParseEnv("echo a~b", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].Args[0] != "a~b" {
		t.Errorf("args[0] = %q, want a~b", p.Commands[0].Args[0])
	}
}

func TestTildeSlashExpansion(t *testing.T) {
	p, err := ParseEnv("cat ~/file.txt", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].Args[0] != "/home/jarvish/file.txt" {
		t.Errorf("args[0] = %q", p.Commands[0].Args[0])
	}
}

func TestVariableExpansionBraced(t *testing.T) {
	p, err := ParseEnv("echo ${FOO}", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].Args[0] != "bar" {
		t.Errorf("args[0] = %q, want bar", p.Commands[0].Args[0])
	}
}

func TestVariableExpansionUnbracedAndUndefined(t *testing.T) {
	p, err := ParseEnv("echo $FOO $MISSING", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].Args[0] != "bar" {
		t.Errorf("args[0] = %q, want bar", p.Commands[0].Args[0])
	}
	if p.Commands[0].Args[1] != "" {
		t.Errorf("args[1] = %q, want empty", p.Commands[0].Args[1])
	}
}

func TestSingleQuotedNeverExpanded(t *testing.T) {
	p, err := ParseEnv(`echo '$FOO ~'`, testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].Args[0] != "$FOO ~" {
		t.Errorf("args[0] = %q, want literal", p.Commands[0].Args[0])
	}
}

func TestDoubleQuotedAllowsExpansionPreservesSpaces(t *testing.T) {
	p, err := ParseEnv(`echo "hello $FOO world"`, testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].Args[0] != "hello bar world" {
		t.Errorf("args[0] = %q", p.Commands[0].Args[0])
	}
}

func TestUnterminatedQuoteIsParseError(t *testing.T) {
	if _, err := ParseEnv(`echo "unterminated`, testEnv()); err == nil {
		t.Error("expected parse error for unterminated quote")
	}
	if _, err := ParseEnv(`echo 'unterminated`, testEnv()); err == nil {
		t.Error("expected parse error for unterminated quote")
	}
}

func TestPipelineAssembly(t *testing.T) {
	p, err := ParseEnv("echo hello | cat | wc -l", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Commands) != 3 {
		t.Fatalf("len(commands) = %d, want 3", len(p.Commands))
	}
	if p.Commands[0].Program != "echo" || p.Commands[1].Program != "cat" || p.Commands[2].Program != "wc" {
		t.Errorf("unexpected programs: %+v", p.Commands)
	}
}

func TestRedirections(t *testing.T) {
	p, err := ParseEnv("echo hi > out.txt", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	redirs := p.Commands[0].Redirs
	if len(redirs) != 1 || redirs[0].Kind != RedirStdoutTruncate || redirs[0].Target != "out.txt" {
		t.Errorf("unexpected redirs: %+v", redirs)
	}

	p, err = ParseEnv("cat < in.txt >> out.txt", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	redirs = p.Commands[0].Redirs
	if len(redirs) != 2 {
		t.Fatalf("len(redirs) = %d, want 2", len(redirs))
	}
	if redirs[0].Kind != RedirStdinFrom || redirs[1].Kind != RedirStdoutAppend {
		t.Errorf("unexpected redir kinds: %+v", redirs)
	}
}

func TestTrailingOperatorIsParseError(t *testing.T) {
	if _, err := ParseEnv("echo hi >", testEnv()); err == nil {
		t.Error("expected parse error for trailing operator")
	}
}

func TestConsecutiveOperatorsIsParseError(t *testing.T) {
	if _, err := ParseEnv("echo hi >> > out", testEnv()); err == nil {
		t.Error("expected parse error for consecutive operators")
	}
}

func TestEmptyPipelineSegmentsAreParseErrors(t *testing.T) {
	cases := []string{"| cat", "echo hi |", "echo hi || cat"}
	for _, c := range cases {
		if _, err := ParseEnv(c, testEnv()); err == nil {
			t.Errorf("Parse(%q): expected error", c)
		}
	}
}
