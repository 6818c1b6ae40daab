package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiosk404/jarvish/internal/ai/wire"
	"github.com/kiosk404/jarvish/internal/logging"
)

const component = "ai.agent"

// ErrRoundCeiling is returned when the loop reaches max_rounds without the
// model producing a final textual answer (spec.md §4.6, §9 "Agent loop
// termination").
var ErrRoundCeiling = errors.New("agent: reached round ceiling without a final answer")

// Streamer is the transport the loop drives each round; satisfied by
// wire.Client.
type Streamer interface {
	StreamChat(ctx context.Context, messages []wire.Message, tools []wire.ToolDefinition, onDelta wire.OnDelta) (wire.Message, error)
}

// Hooks lets the caller (the REPL) observe the loop without the agent
// package depending on terminal-rendering details.
type Hooks struct {
	// OnTextDelta is called for every streamed text fragment.
	OnTextDelta func(text string)
	// OnRoundStart is called before each round's request is sent, so the
	// caller can render the "thinking" spinner described in spec.md §4.6.
	OnRoundStart func(round int)
	// OnToolCall is called once per tool invocation, before it executes.
	OnToolCall func(name, argumentsJSON string)
}

// Run drives the streaming, round-bounded agent loop over conv until the
// model produces a final textual answer, a tool error aborts nothing (tool
// errors are folded into the tool-result message per spec.md §7), the
// context is cancelled, or maxRounds is exhausted.
func Run(ctx context.Context, streamer Streamer, conv *Conversation, catalog *Catalog, maxRounds int, hooks Hooks) (string, error) {
	if maxRounds <= 0 {
		maxRounds = 10
	}

	for round := 1; round <= maxRounds; round++ {
		if hooks.OnRoundStart != nil {
			hooks.OnRoundStart(round)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		assistant, err := streamer.StreamChat(ctx, conv.WireMessages(), catalog.Definitions(), hooks.OnTextDelta)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "", err
			}
			return "", fmt.Errorf("agent: round %d: %w", round, err)
		}

		if len(assistant.ToolCalls) == 0 {
			return assistant.Content, nil
		}

		conv.Append(NewAssistantMessage(assistant.Content, assistant.ToolCalls))

		for _, call := range assistant.ToolCalls {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
			if hooks.OnToolCall != nil {
				hooks.OnToolCall(call.Name, call.Arguments)
			}
			logging.DebugX(component, "round %d: executing tool %s", round, call.Name)
			result := catalog.Execute(ctx, call.Name, call.Arguments)
			conv.Append(NewToolMessage(call.ID, result))
		}
	}

	logging.WarnX(component, "reached round ceiling (%d) without a final answer", maxRounds)
	return "", ErrRoundCeiling
}
