// Package repl implements jarvish's top-level read-eval-print loop: reading
// a line, routing it to the Execution Engine or the AI agent loop via the
// built-in/PATH fast-path gate, and rendering results to the terminal
// (spec.md §2, §4.6, §9 "Parser vs. AI gate"). Grounded on the teacher's
// RunTUI main loop (chat/tui.go), stripped of its bubbletea-less
// alt-screen-free rendering style and generalized to a full shell.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/kiosk404/jarvish/internal/ai/agent"
	"github.com/kiosk404/jarvish/internal/ai/router"
	"github.com/kiosk404/jarvish/internal/ai/wire"
	"github.com/kiosk404/jarvish/internal/config"
	"github.com/kiosk404/jarvish/internal/logging"
	"github.com/kiosk404/jarvish/internal/shell"
	"github.com/kiosk404/jarvish/internal/shell/shelltypes"
	"github.com/kiosk404/jarvish/pkg/version"
)

const component = "repl"

var (
	promptColor = color.New(color.FgYellow, color.Bold)
	aiLabel     = color.New(color.FgMagenta, color.Bold)
	errorColor  = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.Faint)
)

// REPL is the interactive loop's state: the Execution Engine, the optional
// AI backend, and the streams it reads from/writes to.
type REPL struct {
	cfg    *config.Config
	engine *shell.Engine

	streamer Streamer
	catalog  *agent.Catalog
	aiReady  bool

	in  *bufio.Scanner
	out io.Writer
}

// Streamer is the transport the agent loop drives; satisfied directly by
// *wire.Client and, through anthropicAdapter, by *wire.AnthropicClient.
type Streamer = agent.Streamer

// New builds a REPL. If the OPENAI_API_KEY (or ANTHROPIC_API_KEY, when
// AI_BACKEND=anthropic) environment variable is unset, the AI path is
// disabled and lines the gate declines get a friendly message instead
// (spec.md §6 "absence disables the AI path with a friendly message").
func New(cfg *config.Config, engine *shell.Engine) *REPL {
	r := &REPL{
		cfg:    cfg,
		engine: engine,
		in:     bufio.NewScanner(os.Stdin),
		out:    os.Stdout,
	}
	r.in.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	r.streamer, r.aiReady = buildStreamer(cfg)
	if r.aiReady {
		r.catalog = agent.NewCatalogFunc(engine.Cwd, adaptEngine(engine))
	}
	return r
}

func adaptEngine(e *shell.Engine) agent.ShellRunner { return e }

func buildStreamer(cfg *config.Config) (Streamer, bool) {
	backend := strings.ToLower(os.Getenv("AI_BACKEND"))
	if backend == "anthropic" {
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, false
		}
		return anthropicAdapter{wire.NewAnthropicClient(key, cfg.AI.Model)}, true
	}
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, false
	}
	return wire.NewClient(os.Getenv("OPENAI_BASE_URL"), key, cfg.AI.Model), true
}

// anthropicAdapter drops the tools argument, since AnthropicClient only
// implements the textual-delta path (see wire.AnthropicClient's doc
// comment).
type anthropicAdapter struct{ client *wire.AnthropicClient }

func (a anthropicAdapter) StreamChat(ctx context.Context, messages []wire.Message, _ []wire.ToolDefinition, onDelta wire.OnDelta) (wire.Message, error) {
	return a.client.StreamChat(ctx, messages, onDelta)
}

// Run is the main loop. It returns the process exit code.
func (r *REPL) Run(ctx context.Context) int {
	fmt.Fprintf(r.out, "jarvish %s\n", version.String())
	if !r.aiReady {
		dimColor.Fprintln(r.out, "(AI features disabled: set OPENAI_API_KEY to enable)")
	}

	for {
		promptColor.Fprint(r.out, "jarvish> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return 0
		}
		line := r.in.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		code, terminate := r.dispatch(ctx, line)
		if terminate {
			return code
		}
	}
}

// dispatch routes one line to the Execution Engine or the AI agent loop and
// returns the exit code to use if this turn should end the REPL.
func (r *REPL) dispatch(ctx context.Context, line string) (code int, terminate bool) {
	if r.engine.Gate(line) {
		var res shelltypes.Result
		if r.engine.WantsPTY(line) {
			// A PTY-attached child receives SIGINT directly through the
			// terminal, so it is run on ctx rather than runShellLine's
			// SIGINT-to-cancel wiring.
			res = r.engine.RunPTY(ctx, line)
		} else {
			res = r.runShellLine(ctx, line)
		}
		if res.LoopAction == shelltypes.LoopTerminate {
			return res.ExitCode, true
		}
		r.printResult(res)
		return 0, false
	}

	if !r.aiReady {
		dimColor.Fprintln(r.out, "jarvish: AI features are disabled (set OPENAI_API_KEY).")
		return 0, false
	}

	r.runAITurn(ctx, line)
	return 0, false
}

func (r *REPL) runShellLine(ctx context.Context, line string) shelltypes.Result {
	shellCtx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer func() {
		signal.Stop(sigCh)
		cancel()
	}()
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-shellCtx.Done():
		}
	}()

	return r.engine.Run(shellCtx, line, false)
}

func (r *REPL) printResult(res shelltypes.Result) {
	if res.Stdout != "" {
		fmt.Fprint(r.out, res.Stdout)
	}
	if res.Stderr != "" {
		errorColor.Fprint(os.Stderr, res.Stderr)
	}
}

// runAITurn builds a conversation, runs the round-bounded agent loop with a
// spinner and cancellation, and renders the final answer as markdown.
func (r *REPL) runAITurn(ctx context.Context, line string) {
	aiCtx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-aiCtx.Done():
		}
	}()
	defer cancel()

	conv := router.Build(line, r.engine)

	sp := newSpinner(r.out)
	hooks := agent.Hooks{
		OnRoundStart: func(int) { sp.start() },
		OnTextDelta: func(delta string) {
			sp.stop()
			aiLabel.Fprint(r.out, delta)
		},
		OnToolCall: func(name, _ string) {
			sp.stop()
			dimColor.Fprintf(r.out, "\n[running %s]\n", name)
		},
	}

	answer, err := agent.Run(aiCtx, r.streamer, conv, r.catalog, r.cfg.AI.MaxRounds, hooks)
	sp.stop()

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(r.out)
		dimColor.Fprintln(r.out, "jarvish: AI turn cancelled.")
		return
	case errors.Is(err, agent.ErrRoundCeiling):
		fmt.Fprintln(r.out)
		errorColor.Fprintln(os.Stderr, "jarvish: AI reached its round limit without a final answer.")
		return
	case err != nil:
		fmt.Fprintln(r.out)
		errorColor.Fprintf(os.Stderr, "jarvish: AI error: %v\n", err)
		logging.WarnX(component, "ai turn failed: %v", err)
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, renderMarkdown(answer, termWidth()))
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithColorProfile(termenv.ANSI256),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func init() { aiLabel.EnableColor() }
