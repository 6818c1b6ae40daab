// Package wire implements jarvish's AI transport: a streaming HTTPS
// chat-completions client (spec.md §4.6, §6 "Wire protocol"), grounded on
// the teacher's bufio.Scanner-based SSE reader, extended to accumulate
// tool-call deltas the teacher's plain chat endpoint never had to handle.
package wire

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kiosk404/jarvish/internal/logging"
)

const component = "ai.wire"

// Role names follow the chat-completions convention used throughout the
// agent loop's Conversation/Message model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function invocation requested by the model, either fully
// assembled (as appended to a Message after a round) or being accumulated
// incrementally as streaming deltas arrive.
type ToolCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is one chat-completions message. ToolCalls is set on assistant
// messages that invoked tools; ToolCallID is set on tool-result messages
// replying to a specific call.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes one callable tool using the chat-completions
// "function" tool schema.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the JSON-Schema-shaped function descriptor inside a
// ToolDefinition.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireMessage struct {
	Role       Role            `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	Index    int    `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []wireMessage    `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Role      string         `json:"role,omitempty"`
			Content   string         `json:"content,omitempty"`
			ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Client speaks the OpenAI-compatible /v1/chat/completions streaming
// protocol.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// NewClient builds a Client with sensible defaults, grounded on the
// teacher's NewHivemindClient constructor.
func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// OnDelta is called once per textual content delta as it streams in.
type OnDelta func(text string)

// StreamChat sends one round's messages and tool catalog, invoking onDelta
// for every textual fragment as it arrives. It returns the fully assembled
// assistant message (content plus any tool calls the model requested).
func (c *Client) StreamChat(ctx context.Context, messages []Message, tools []ToolDefinition, onDelta OnDelta) (Message, error) {
	req := chatRequest{Model: c.Model, Stream: true, Tools: tools}
	for _, m := range messages {
		req.Messages = append(req.Messages, toWireMessage(m))
	}

	body, err := sonic.Marshal(req)
	if err != nil {
		return Message{}, fmt.Errorf("wire: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Message{}, fmt.Errorf("wire: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return Message{}, fmt.Errorf("wire: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Message{}, fmt.Errorf("wire: server returned %d: %s", resp.StatusCode, string(raw))
	}

	return consumeStream(resp.Body, onDelta)
}

func consumeStream(body io.Reader, onDelta OnDelta) (Message, error) {
	var content strings.Builder
	calls := map[int]*ToolCall{}
	var order []int

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := sonic.Unmarshal([]byte(data), &chunk); err != nil {
			logging.DebugX(component, "skipping malformed chunk: %v", err)
			continue
		}
		if chunk.Error != nil {
			return Message{}, fmt.Errorf("wire: server error: %s", chunk.Error.Message)
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				if onDelta != nil {
					onDelta(choice.Delta.Content)
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				existing, ok := calls[tc.Index]
				if !ok {
					existing = &ToolCall{Index: tc.Index}
					calls[tc.Index] = existing
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					existing.ID += tc.ID
				}
				if tc.Function.Name != "" {
					existing.Name += tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					existing.Arguments += tc.Function.Arguments
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return Message{}, fmt.Errorf("wire: read stream: %w", err)
	}

	msg := Message{Role: RoleAssistant, Content: content.String()}
	for _, idx := range order {
		msg.ToolCalls = append(msg.ToolCalls, *calls[idx])
	}
	return msg, nil
}

func toWireMessage(m Message) wireMessage {
	w := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		wtc := wireToolCall{ID: tc.ID, Type: "function"}
		wtc.Function.Name = tc.Name
		wtc.Function.Arguments = tc.Arguments
		w.ToolCalls = append(w.ToolCalls, wtc)
	}
	return w
}
