// Package agent implements jarvish's Conversation/Message data model and
// the round-bounded streaming agent loop described in spec.md §4.6,
// grounded on the teacher's domain entity.Message (role-tagged conversation
// turns) and its chat/tui.go spinner-and-cancellation TUI loop.
package agent

import (
	"time"

	"github.com/kiosk404/jarvish/internal/ai/wire"
)

// Role is an alias of wire.Role, so conversation turns convert to wire
// messages without any role translation.
type Role = wire.Role

const (
	RoleSystem    = wire.RoleSystem
	RoleUser      = wire.RoleUser
	RoleAssistant = wire.RoleAssistant
	RoleTool      = wire.RoleTool
)

// Message is one turn of a Conversation.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []wire.ToolCall
	ToolCallID string
	CreatedAt  time.Time
}

// NewSystemMessage builds the system turn describing Jarvish's role and
// tool catalog.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content, CreatedAt: time.Now()}
}

// NewUserMessage builds a user turn from the raw input line.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

// NewAssistantMessage builds an assistant turn, optionally carrying tool
// calls the model requested.
func NewAssistantMessage(content string, calls []wire.ToolCall) *Message {
	return &Message{Role: RoleAssistant, Content: content, ToolCalls: calls, CreatedAt: time.Now()}
}

// NewToolMessage builds a tool-result turn replying to one call.
func NewToolMessage(toolCallID, content string) *Message {
	return &Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, CreatedAt: time.Now()}
}

// Conversation is an ordered list of Messages, built fresh for every user
// turn (spec.md §4.6: "Cancellation ... discard the conversation").
type Conversation struct {
	Messages []*Message
}

// NewConversation starts a conversation seeded with a system message.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{Messages: []*Message{NewSystemMessage(systemPrompt)}}
}

// Append adds a turn to the conversation.
func (c *Conversation) Append(m *Message) {
	c.Messages = append(c.Messages, m)
}

// WireMessages converts the conversation to the transport package's wire
// shape for a StreamChat call.
func (c *Conversation) WireMessages() []wire.Message {
	out := make([]wire.Message, len(c.Messages))
	for i, m := range c.Messages {
		out[i] = wire.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		}
	}
	return out
}
