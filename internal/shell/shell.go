// Package shell wires the parser, alias table, built-in dispatch table, and
// pipeline executor together into the single Execution Engine described in
// spec.md §2 and §4, and records every completed turn in the History Index.
package shell

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kiosk404/jarvish/internal/history"
	"github.com/kiosk404/jarvish/internal/logging"
	"github.com/kiosk404/jarvish/internal/shell/alias"
	"github.com/kiosk404/jarvish/internal/shell/builtin"
	execpkg "github.com/kiosk404/jarvish/internal/shell/exec"
	"github.com/kiosk404/jarvish/internal/shell/parser"
	"github.com/kiosk404/jarvish/internal/shell/shelltypes"
)

const component = "shell"

// interactivePrograms is the configured list of interactive programs
// spec.md §4.3 "PTY mode" names (editors, pagers, TUIs): a single command
// whose program matches one of these always runs under a pseudo-terminal
// rather than the plain tee-capture path, since these programs draw their
// own screen and expect a real terminal device.
var interactivePrograms = map[string]bool{
	"vim": true, "vi": true, "nvim": true, "emacs": true, "nano": true,
	"less": true, "more": true, "most": true, "man": true,
	"top": true, "htop": true, "btop": true,
	"tmux": true, "screen": true,
}

// aiCommandPrefix tags History Index rows for commands the AI agent loop
// invoked on the model's behalf (spec.md §4.6 "Recording of AI-initiated
// commands": "prefixed or tagged to indicate AI origin").
const aiCommandPrefix = "[ai] "

// Engine is the shell-global execution state: current working directory,
// environment, alias table, built-in registry, and history handle. It is
// confined to the REPL task, per spec.md §5.
type Engine struct {
	mu      sync.Mutex
	cwd     string
	env     map[string]string
	aliases *alias.Table
	hist    *history.Index
	reload  func() error

	builtins *builtin.Registry
}

// New constructs an Engine rooted at the process's current working
// directory and environment, seeded with the given aliases.
func New(hist *history.Index, initialAliases map[string]string, reload func() error) (*Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	env := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	if reload == nil {
		reload = func() error { return nil }
	}
	return &Engine{
		cwd:      cwd,
		env:      env,
		aliases:  alias.New(initialAliases),
		hist:     hist,
		reload:   reload,
		builtins: builtin.NewRegistry(),
	}, nil
}

// --- builtin.State ---

func (e *Engine) Cwd() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cwd
}

func (e *Engine) Chdir(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	abs, err := resolvePath(e.cwd, path)
	if err != nil {
		return err
	}
	e.cwd = abs
	return nil
}

func (e *Engine) Getenv(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env[key]
}

func (e *Engine) Setenv(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env[key] = value
}

func (e *Engine) Unsetenv(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.env, key)
}

func (e *Engine) Environ() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.env))
	for k, v := range e.env {
		out = append(out, k+"="+v)
	}
	return out
}

func (e *Engine) Aliases() *alias.Table    { return e.aliases }
func (e *Engine) History() *history.Index  { return e.hist }
func (e *Engine) ReloadConfig() error      { return e.reload() }

func resolvePath(cwd, path string) (string, error) {
	if path == "" {
		return cwd, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = cwd + "/" + path
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", os.ErrInvalid
	}
	return path, nil
}

// Gate reports whether line should go to the Execution Engine rather than
// the AI agent loop, the fast-path check spec.md §4.2/§9 mandates be applied
// *before* tokenization. A line whose leading word resolves to a built-in or
// a program on PATH always goes to the engine. An unresolvable leading word
// still goes to the engine when the line contains real shell syntax (a pipe
// or redirection) — e.g. `nope | grep x` should produce the ordinary
// "command not found" spawn error, not be swallowed into prose routing.
// It is declined to the AI when it is prose-like (an apostrophe is the
// telltale sign, as in "don't do that") or when it has no shell
// metacharacters at all.
func (e *Engine) Gate(line string) bool {
	trimmed := strings.TrimSpace(e.Aliases().Expand(line))
	if trimmed == "" {
		return true
	}
	word := trimmed
	if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		word = trimmed[:idx]
	}
	if e.builtins.IsBuiltin(word) {
		return true
	}
	if strings.Contains(word, "/") {
		if info, err := os.Stat(word); err == nil && !info.IsDir() {
			return true
		}
		return hasShellSyntax(trimmed)
	}
	if _, err := exec.LookPath(word); err == nil {
		return true
	}
	return hasShellSyntax(trimmed)
}

// hasShellSyntax reports whether line reads as real shell syntax (a pipe or
// redirection) rather than prose. An apostrophe is treated as a prose signal
// even though it is technically a quote character, since it overwhelmingly
// shows up in contractions ("don't", "it's") rather than quoting.
func hasShellSyntax(line string) bool {
	if strings.Contains(line, "'") {
		return false
	}
	return strings.ContainsAny(line, "|<>")
}

// WantsPTY reports whether line, once alias-expanded and parsed, should run
// under a pseudo-terminal: spec.md §4.3 "PTY mode" triggers for a single
// command whose program is in the configured interactive-program list. A
// pipeline or multi-command line never qualifies, even if one of its stages
// names an interactive program, since the pipe stages already expect to talk
// to each other over plain pipes rather than a pty.
func (e *Engine) WantsPTY(line string) bool {
	expanded := e.Aliases().Expand(line)
	pl, err := parser.Parse(expanded)
	if err != nil || len(pl.Commands) != 1 {
		return false
	}
	name := filepath.Base(pl.Commands[0].Program)
	return interactivePrograms[name]
}

// Run executes one line: alias-expand, parse, dispatch to a built-in or the
// pipeline executor, and record the outcome. aiOrigin tags the recorded
// command as AI-initiated (spec.md §4.6).
func (e *Engine) Run(ctx context.Context, line string, aiOrigin bool) shelltypes.Result {
	expanded := e.Aliases().Expand(line)

	pl, err := parser.Parse(expanded)
	if err != nil {
		return shelltypes.Result{Stderr: "jarvish: " + err.Error() + "\n", ExitCode: 2}
	}

	if len(pl.Commands) == 1 && e.builtins.IsBuiltin(pl.Commands[0].Program) {
		res, _ := e.builtins.Dispatch(e, pl.Commands[0].Program, pl.Commands[0].Args)
		e.record(line, res.ExitCode, []byte(res.Stdout), []byte(res.Stderr), aiOrigin)
		return res
	}

	// spec.md §4.3: "For the first command, stdin is either inherited from
	// the terminal or redirected from a file." os.Stdin is the terminal
	// fallback; applyStdin in the exec package prefers a '<' redirection
	// target over this when the pipeline has one.
	outcome, err := execpkg.Run(ctx, pl, execpkg.Options{
		Cwd:   e.Cwd(),
		Env:   e.Environ(),
		Stdin: os.Stdin,
	})
	if err != nil {
		res := spawnErrorResult(pl, err)
		e.record(line, res.ExitCode, nil, []byte(res.Stderr), aiOrigin)
		return res
	}

	res := shelltypes.Result{Stdout: string(outcome.Stdout), Stderr: string(outcome.Stderr), ExitCode: outcome.ExitCode}
	e.record(line, res.ExitCode, outcome.Stdout, outcome.Stderr, aiOrigin)
	return res
}

// RunAICommand executes a command line on behalf of the AI agent loop's
// execute_shell_command tool: same parser, same capture, same recording
// path as a typed command, tagged as AI-initiated in the History Index.
func (e *Engine) RunAICommand(ctx context.Context, command string) (stdout, stderr string, exitCode int) {
	res := e.Run(ctx, command, true)
	return res.Stdout, res.Stderr, res.ExitCode
}

// RunPTY executes a single interactive command with a pseudo-terminal
// attached, per spec.md §4.3 "PTY mode".
func (e *Engine) RunPTY(ctx context.Context, line string) shelltypes.Result {
	expanded := e.Aliases().Expand(line)
	pl, err := parser.Parse(expanded)
	if err != nil {
		return shelltypes.Result{Stderr: "jarvish: " + err.Error() + "\n", ExitCode: 2}
	}
	outcome, err := execpkg.Run(ctx, pl, execpkg.Options{Cwd: e.Cwd(), Env: e.Environ(), PTY: true})
	if err != nil {
		res := spawnErrorResult(pl, err)
		e.record(line, res.ExitCode, nil, []byte(res.Stderr), false)
		return res
	}
	// PTY-mode executions are not captured into the History Index: a
	// full-screen program's redraws make captured bytes meaningless.
	res := shelltypes.Result{ExitCode: outcome.ExitCode}
	e.record(line, res.ExitCode, nil, nil, false)
	return res
}

func (e *Engine) record(line string, exitCode int, stdout, stderr []byte, aiOrigin bool) {
	if e.hist == nil {
		return
	}
	command := line
	if aiOrigin {
		command = aiCommandPrefix + line
	}
	e.hist.RecordSafely(command, e.Cwd(), exitCode, stdout, stderr)
}

// LastStderr returns the most recently recorded command's decompressed
// stderr and its exit code, used by the AI router to decide whether to
// inject failure context (spec.md §4.6). ok is false when nothing has been
// recorded yet.
func (e *Engine) LastStderr() (text string, exitCode int, ok bool) {
	if e.hist == nil {
		return "", 0, false
	}
	recs, err := e.hist.Recent(1)
	if err != nil || len(recs) == 0 {
		return "", 0, false
	}
	rec := recs[0]
	if rec.StderrHash == "" {
		return "", rec.ExitCode, true
	}
	text, err = e.hist.LoadOutput(rec.StderrHash)
	if err != nil {
		logging.WarnX(component, "failed to load last stderr blob: %v", err)
		return "", rec.ExitCode, true
	}
	return text, rec.ExitCode, true
}

func spawnErrorResult(pl *parser.Pipeline, err error) shelltypes.Result {
	program := ""
	if len(pl.Commands) > 0 {
		program = pl.Commands[0].Program
	}
	code := 127
	if os.IsPermission(err) {
		code = 126
	}
	return shelltypes.Result{
		Stderr:   "jarvish: " + program + ": " + err.Error() + "\n",
		ExitCode: code,
	}
}
