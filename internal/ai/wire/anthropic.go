package wire

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is an alternate backend speaking the Anthropic Messages
// API directly via the vendor SDK, selected when AI_BACKEND=anthropic.
// It covers the textual-delta path only: jarvish's tool catalog still flows
// through the OpenAI-compatible Client for providers that want tool use.
type AnthropicClient struct {
	messages sdk.MessageService
	Model    string
}

// NewAnthropicClient builds a client from an API key and default model
// identifier (e.g. "claude-sonnet-4-5").
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{messages: c.Messages, Model: model}
}

// StreamChat mirrors Client.StreamChat without its tools parameter and
// speaks the Messages API: system messages are merged into the request's top-level system
// field, and every content-block text delta is forwarded to onDelta as it
// arrives.
func (a *AnthropicClient) StreamChat(ctx context.Context, messages []Message, onDelta OnDelta) (Message, error) {
	var turns []sdk.MessageParam
	var system strings.Builder

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system.WriteString(m.Content)
		case RoleUser:
			turns = append(turns, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case RoleAssistant:
			turns = append(turns, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		case RoleTool:
			// Tool-result turns are not translated for the Anthropic path;
			// the OpenAI-compatible Client is used whenever the agent loop
			// needs tool calls.
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.Model),
		MaxTokens: 4096,
		Messages:  turns,
	}
	if system.Len() > 0 {
		params.System = []sdk.TextBlockParam{{Text: system.String()}}
	}

	stream := a.messages.NewStreaming(ctx, params)
	defer stream.Close()

	var content strings.Builder
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(sdk.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text, ok := delta.Delta.AsAny().(sdk.TextDelta)
		if !ok {
			continue
		}
		content.WriteString(text.Text)
		if onDelta != nil {
			onDelta(text.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return Message{}, fmt.Errorf("wire: anthropic stream: %w", err)
	}

	return Message{Role: RoleAssistant, Content: content.String()}, nil
}
