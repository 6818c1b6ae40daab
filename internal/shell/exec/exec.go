// Package exec implements jarvish's pipeline executor (spec.md §4.3):
// wiring external commands together with anonymous pipes, capturing the
// final stage's stdout and stderr (each in its own buffer) for the History
// Index while still streaming them to the real terminal, and optionally attaching a pseudo-terminal for commands
// that need one.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/kiosk404/jarvish/internal/logging"
	"github.com/kiosk404/jarvish/internal/shell/parser"
)

const component = "exec"

// Options configures one pipeline invocation.
type Options struct {
	// Cwd is the working directory every stage is started in.
	Cwd string
	// Env is the process environment every stage inherits.
	Env []string
	// Stdin feeds the first stage when it has no "<" redirection. A nil
	// Stdin means the first stage reads nothing (os.DevNull-like).
	Stdin io.Reader
	// PTY requests a pseudo-terminal for interactive, single-command
	// pipelines (spec.md §4.3 "PTY mode").
	PTY bool
}

// Outcome is the result of running a Pipeline: the captured bytes (for the
// History Index) plus the terminating exit code. An error that prevented the
// pipeline from completing at all (as opposed to a command merely exiting
// nonzero) is returned separately by Run.
type Outcome struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run executes pl to completion, streaming output live to os.Stdout/Stderr
// (or a PTY) while also capturing it for the caller. ctx cancellation kills
// each stage's own process (exec.CommandContext's default); stages are not
// put in a separate process group, and processes a stage spawned itself are
// not signalled.
func Run(ctx context.Context, pl *parser.Pipeline, opts Options) (Outcome, error) {
	if len(pl.Commands) == 0 {
		return Outcome{}, fmt.Errorf("exec: empty pipeline")
	}
	if opts.PTY {
		if len(pl.Commands) != 1 {
			return Outcome{}, fmt.Errorf("exec: PTY mode supports only a single command, got %d", len(pl.Commands))
		}
		return runPTY(ctx, pl.Commands[0], opts)
	}
	return runPiped(ctx, pl, opts)
}

// runPiped wires pl.Commands together with N-1 anonymous pipes, applies
// redirections on the first and last stage, and tees the final stage's
// stdout/stderr to both the terminal and an in-memory capture buffer via
// dedicated reader goroutines — avoiding the pipe-buffer deadlock that a
// synchronous io.Copy chain would hit once any stage's output exceeds the
// kernel pipe size.
func runPiped(ctx context.Context, pl *parser.Pipeline, opts Options) (Outcome, error) {
	cmds := make([]*exec.Cmd, len(pl.Commands))
	for i, sc := range pl.Commands {
		c := exec.CommandContext(ctx, sc.Program, sc.Args...)
		c.Dir = opts.Cwd
		c.Env = opts.Env
		cmds[i] = c
	}

	for i := 0; i < len(cmds)-1; i++ {
		pipeR, pipeW := io.Pipe()
		cmds[i].Stdout = pipeW
		cmds[i+1].Stdin = pipeR
	}

	if err := applyStdin(cmds[0], pl.Commands[0], opts); err != nil {
		return Outcome{}, err
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	lastIdx := len(cmds) - 1
	stdoutTarget, closeStdout, err := applyStdout(pl.Commands[lastIdx], opts)
	if err != nil {
		return Outcome{}, err
	}
	if closeStdout != nil {
		defer closeStdout()
	}

	lastStdout, err := cmds[lastIdx].StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("exec: wire final stdout: %w", err)
	}
	lastStderr, err := cmds[lastIdx].StderrPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("exec: wire final stderr: %w", err)
	}

	for i := 0; i < lastIdx; i++ {
		var stderrBuf2 bytes.Buffer
		stderrPipe, err := cmds[i].StderrPipe()
		if err != nil {
			return Outcome{}, fmt.Errorf("exec: wire stage %d stderr: %w", i, err)
		}
		go drain(stderrPipe, io.MultiWriter(os.Stderr, &stderrBuf2), fmt.Sprintf("stage-%d-stderr", i))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		drain(lastStdout, io.MultiWriter(stdoutTarget, &stdoutBuf), "final-stdout")
	}()
	go func() {
		defer wg.Done()
		drain(lastStderr, io.MultiWriter(os.Stderr, &stderrBuf), "final-stderr")
	}()

	for i, c := range cmds {
		if err := c.Start(); err != nil {
			return Outcome{}, fmt.Errorf("exec: start %s: %w", pl.Commands[i].Program, err)
		}
	}

	// Each stage's stdout pipe-writer must close once that stage exits, so
	// the next stage (and the drain goroutines) see EOF instead of hanging.
	for i := 0; i < lastIdx; i++ {
		i := i
		if pw, ok := cmds[i].Stdout.(*io.PipeWriter); ok {
			go func() {
				pw.CloseWithError(cmds[i].Wait())
			}()
		}
	}

	wg.Wait()

	exitCode := 0
	if err := cmds[lastIdx].Wait(); err != nil {
		exitCode = exitCodeOf(err)
	}

	return Outcome{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes(), ExitCode: exitCode}, nil
}

func drain(r io.Reader, w io.Writer, label string) {
	if _, err := io.Copy(w, r); err != nil {
		logging.DebugX(component, "%s: copy ended: %v", label, err)
	}
}

func applyStdin(cmd *exec.Cmd, sc parser.SimpleCommand, opts Options) error {
	for _, rd := range sc.Redirs {
		if rd.Kind == parser.RedirStdinFrom {
			f, err := os.Open(rd.Target)
			if err != nil {
				return fmt.Errorf("exec: open %s for input: %w", rd.Target, err)
			}
			cmd.Stdin = f
			return nil
		}
	}
	if cmd.Stdin == nil {
		cmd.Stdin = opts.Stdin
	}
	return nil
}

// applyStdout resolves the final stage's stdout target: a redirection file
// if one is present, or os.Stdout otherwise. The returned closer (if
// non-nil) must be called once the command has finished writing.
func applyStdout(sc parser.SimpleCommand, opts Options) (io.Writer, func(), error) {
	for _, rd := range sc.Redirs {
		switch rd.Kind {
		case parser.RedirStdoutTruncate:
			f, err := os.Create(rd.Target)
			if err != nil {
				return nil, nil, fmt.Errorf("exec: create %s: %w", rd.Target, err)
			}
			return f, func() { f.Close() }, nil
		case parser.RedirStdoutAppend:
			f, err := os.OpenFile(rd.Target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("exec: open %s for append: %w", rd.Target, err)
			}
			return f, func() { f.Close() }, nil
		}
	}
	return os.Stdout, nil, nil
}

// exitCodeOf reports the exit code an ExitError represents, mapping a
// signal-terminated child to 128+signal per spec's "Child signal death"
// convention (e.g. SIGKILL -> 137) rather than ExitCode()'s bare -1.
func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if !asExitError(err, &exitErr) {
		return 1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// runPTY attaches a pseudo-terminal to a single command, forwarding raw
// terminal mode, window-resize signals, and stdin/stdout byte streams.
// PTY-mode executions do not capture output: a full-screen program's redraws
// make captured bytes meaningless for the History Index.
func runPTY(ctx context.Context, sc parser.SimpleCommand, opts Options) (Outcome, error) {
	cmd := exec.CommandContext(ctx, sc.Program, sc.Args...)
	cmd.Dir = opts.Cwd
	cmd.Env = opts.Env

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return Outcome{}, fmt.Errorf("exec: start pty: %w", err)
	}
	defer ptmx.Close()

	winchCh := make(chan os.Signal, 1)
	signal.Notify(winchCh, syscall.SIGWINCH)
	defer signal.Stop(winchCh)
	go func() {
		for range winchCh {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	winchCh <- syscall.SIGWINCH // nudge to pick up the initial size

	var raw *term.State
	if stdinFd := int(os.Stdin.Fd()); term.IsTerminal(stdinFd) {
		raw, err = term.MakeRaw(stdinFd)
		if err != nil {
			logging.WarnX(component, "pty: failed to set raw mode: %v", err)
		} else {
			defer term.Restore(stdinFd, raw)
		}
	}

	copyDone := make(chan struct{})
	go func() {
		io.Copy(ptmx, os.Stdin) //nolint:errcheck // stdin forwarding ends when the pty closes
	}()
	go func() {
		io.Copy(os.Stdout, ptmx) //nolint:errcheck
		close(copyDone)
	}()

	err = cmd.Wait()
	<-copyDone

	exitCode := 0
	if err != nil {
		exitCode = exitCodeOf(err)
	}
	return Outcome{ExitCode: exitCode}, nil
}
