// Package protocol defines the turn-level wire types shared by the agent
// loop, the hook pipeline, and the learning subsystem.
package protocol

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	ArgsJSON string `json:"args_json"`
}

// Message is one entry in the turn conversation.
type Message struct {
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	ToolCalls []*ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// NewUserMessage returns a user message with the given text.
func NewUserMessage(text string) *Message {
	return &Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage returns an assistant message with the given text.
func NewAssistantMessage(text string) *Message {
	return &Message{Role: RoleAssistant, Content: text}
}

// NewSystemMessage returns a system message with the given text.
func NewSystemMessage(text string) *Message {
	return &Message{Role: RoleSystem, Content: text}
}

// NewToolMessage returns a tool-result message for the given call ID.
func NewToolMessage(callID, content string) *Message {
	return &Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ExecutionRecord captures the outcome of one executed code snippet.
// Failed executions carry the error text and stack so the next model call
// can see what went wrong.
type ExecutionRecord struct {
	Code         string        `json:"code"`
	FunctionName string        `json:"function_name,omitempty"`
	Language     string        `json:"language"`
	Success      bool          `json:"success"`
	Result       string        `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
	Stack        string        `json:"stack,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}
