package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kiosk404/jarvish/internal/ai/wire"
)

// Tool is one callable the agent loop may invoke on the model's behalf
// (spec.md §4.6 "Tool catalog").
type Tool interface {
	Name() string
	Definition() wire.ToolDefinition
	// MCPTool exposes the same schema as an mcp-go Tool value, reusing the
	// ecosystem's JSON-Schema tool shape rather than hand-rolling one.
	MCPTool() mcp.Tool
	Execute(ctx context.Context, argumentsJSON string) (string, error)
}

// ShellRunner is the subset of the Execution Engine the execute_shell_command
// tool needs; satisfied by *shell.Engine.
type ShellRunner interface {
	RunAICommand(ctx context.Context, command string) (stdout, stderr string, exitCode int)
}

// Catalog is the fixed set of tools exposed to the model for one session.
type Catalog struct {
	tools map[string]Tool
	order []string
}

// NewCatalog builds the standard jarvish tool catalog: read_file, write_file,
// and execute_shell_command, the last backed by the given Execution Engine.
// Relative file paths are resolved against the fixed directory cwd.
func NewCatalog(cwd string, runner ShellRunner) *Catalog {
	return NewCatalogFunc(func() string { return cwd }, runner)
}

// NewCatalogFunc is NewCatalog with a dynamic working-directory lookup:
// cwdFn is consulted on every call so file paths stay relative to whatever
// directory a preceding `cd` left the shell in.
func NewCatalogFunc(cwdFn func() string, runner ShellRunner) *Catalog {
	c := &Catalog{tools: map[string]Tool{}}
	c.add(&readFileTool{cwdFn: cwdFn})
	c.add(&writeFileTool{cwdFn: cwdFn})
	c.add(&executeShellTool{runner: runner})
	return c
}

func (c *Catalog) add(t Tool) {
	c.tools[t.Name()] = t
	c.order = append(c.order, t.Name())
}

// Definitions returns every tool's wire.ToolDefinition, in registration
// order, for inclusion in a StreamChat request.
func (c *Catalog) Definitions() []wire.ToolDefinition {
	out := make([]wire.ToolDefinition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tools[name].Definition())
	}
	return out
}

// Execute dispatches one tool call by name, returning a result string
// suitable for a tool-result message even on failure (spec.md §7: "Tool
// execution error ... encoded as the tool result's text").
func (c *Catalog) Execute(ctx context.Context, name, argumentsJSON string) string {
	t, ok := c.tools[name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", name)
	}
	result, err := t.Execute(ctx, argumentsJSON)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

// --- read_file ---

type readFileTool struct{ cwdFn func() string }

func (t *readFileTool) Name() string { return "read_file" }

// Definition derives the chat-completions tool schema from MCPTool, so the
// mcp-go JSON-Schema types are the one place each tool's shape is written.
func (t *readFileTool) Definition() wire.ToolDefinition { return definitionFromMCP(t.MCPTool()) }

func (t *readFileTool) MCPTool() mcp.Tool {
	return mcp.Tool{
		Name:        t.Name(),
		Description: "Read the UTF-8 text contents of a file under the shell's working directory.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{"type": "string", "description": "path relative to the working directory"},
			},
			Required: []string{"path"},
		},
	}
}

type readFileArgs struct {
	Path string `json:"path"`
}

func (t *readFileTool) Execute(_ context.Context, argumentsJSON string) (string, error) {
	var args readFileArgs
	if err := sonic.UnmarshalString(argumentsJSON, &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	path := resolveUnderCwd(t.cwdFn(), args.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args.Path, err)
	}
	return string(data), nil
}

// --- write_file ---

type writeFileTool struct{ cwdFn func() string }

func (t *writeFileTool) Name() string { return "write_file" }

func (t *writeFileTool) Definition() wire.ToolDefinition { return definitionFromMCP(t.MCPTool()) }

func (t *writeFileTool) MCPTool() mcp.Tool {
	return mcp.Tool{
		Name:        t.Name(),
		Description: "Overwrite or create a file under the shell's working directory with the given text.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path":    map[string]any{"type": "string", "description": "path relative to the working directory"},
				"content": map[string]any{"type": "string", "description": "full new contents of the file"},
			},
			Required: []string{"path", "content"},
		},
	}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *writeFileTool) Execute(_ context.Context, argumentsJSON string) (string, error) {
	var args writeFileArgs
	if err := sonic.UnmarshalString(argumentsJSON, &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	path := resolveUnderCwd(t.cwdFn(), args.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", args.Path, err)
	}
	return "ok", nil
}

// --- execute_shell_command ---

type executeShellTool struct{ runner ShellRunner }

func (t *executeShellTool) Name() string { return "execute_shell_command" }

func (t *executeShellTool) Definition() wire.ToolDefinition { return definitionFromMCP(t.MCPTool()) }

func (t *executeShellTool) MCPTool() mcp.Tool {
	return mcp.Tool{
		Name:        t.Name(),
		Description: "Run a shell command line through the same parser, capture, and recording path as interactively typed commands.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"command": map[string]any{"type": "string", "description": "the full command line to run"},
			},
			Required: []string{"command"},
		},
	}
}

type executeShellArgs struct {
	Command string `json:"command"`
}

type shellToolResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

func (t *executeShellTool) Execute(ctx context.Context, argumentsJSON string) (string, error) {
	var args executeShellArgs
	if err := sonic.UnmarshalString(argumentsJSON, &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	stdout, stderr, exitCode := t.runner.RunAICommand(ctx, args.Command)
	encoded, err := sonic.MarshalString(shellToolResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr})
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return encoded, nil
}

func resolveUnderCwd(cwd, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cwd, path)
}

// definitionFromMCP converts an mcp-go Tool's JSON-Schema shape into the
// chat-completions wire.ToolDefinition the agent loop sends to the model, so
// the mcp.ToolInputSchema values built by each Tool's MCPTool() are the one
// definition of that tool's schema rather than a second hand-written copy.
func definitionFromMCP(t mcp.Tool) wire.ToolDefinition {
	return wire.ToolDefinition{
		Type: "function",
		Function: wire.FunctionSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters: map[string]any{
				"type":       t.InputSchema.Type,
				"properties": t.InputSchema.Properties,
				"required":   t.InputSchema.Required,
			},
		},
	}
}
