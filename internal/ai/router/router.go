// Package router builds the conversation the agent loop runs for a line the
// Execution Engine's fast-path gate declined (spec.md §4.6 "Classification").
package router

import (
	"fmt"
	"strings"

	"github.com/kiosk404/jarvish/internal/ai/agent"
)

// systemPrompt describes Jarvish's role and tool catalog to the model.
// Classification and response happen in the same turn: the model decides
// whether to call execute_shell_command or reply conversationally.
const systemPrompt = `You are Jarvish, an AI assistant embedded in a command-line shell.
You share a working directory and environment with the user's shell session.
When the user's message is best satisfied by running a command, call the
execute_shell_command tool; otherwise reply directly. You also have
read_file and write_file tools for inspecting or editing local files.
Keep responses concise and terminal-friendly.`

// priorFailureWords are substrings that, when present in a line, indicate
// it likely refers to a previous command's failure (spec.md §4.6: "the line
// appears to reference a prior execution").
var priorFailureWords = []string{
	"previous", "that error", "went wrong", "it failed", "why did", "last command", "last error",
}

// ShellState supplies the previous command's recorded outcome; satisfied by
// *shell.Engine.
type ShellState interface {
	LastStderr() (text string, exitCode int, ok bool)
}

// Build constructs a fresh Conversation for one user turn: a system
// message, an optional synthesized context message drawn from the History
// Index, and the user's line.
func Build(line string, state ShellState) *agent.Conversation {
	conv := agent.NewConversation(systemPrompt)

	if ctxMsg, ok := buildContextMessage(line, state); ok {
		conv.Append(agent.NewUserMessage(ctxMsg))
	}

	conv.Append(agent.NewUserMessage(line))
	return conv
}

func buildContextMessage(line string, state ShellState) (string, bool) {
	if state == nil {
		return "", false
	}
	stderr, exitCode, ok := state.LastStderr()
	if !ok {
		return "", false
	}
	if exitCode == 0 && !referencesPriorExecution(line) {
		return "", false
	}
	if strings.TrimSpace(stderr) == "" {
		return "", false
	}
	return fmt.Sprintf(
		"Context: the previous command exited with code %d and produced this stderr output:\n%s",
		exitCode, stderr,
	), true
}

func referencesPriorExecution(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range priorFailureWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
