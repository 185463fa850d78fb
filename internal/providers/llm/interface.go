package llm

import (
    "context"
    "encoding/json"
)

// Client is the one call the agent loop needs from a model backend: send the
// conversation plus tool declarations, get back the next assistant turn.
// Any provider implementation should satisfy this.
type Client interface {
    Name() string
    Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type Role string

const (
    RoleSystem    Role = "system"
    RoleUser      Role = "user"
    RoleAssistant Role = "assistant"
    RoleTool      Role = "tool"
)

// Message is one conversation turn. Assistant turns may carry tool calls;
// tool turns carry the ID (and name) of the call they answer.
type Message struct {
    Role       Role       `json:"role"`
    Content    string     `json:"content"`
    ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
    ToolCallID string     `json:"tool_call_id,omitempty"`
    Name       string     `json:"name,omitempty"`
}

// ToolCall is a model request to invoke a declared tool. Arguments is the raw
// JSON object the model produced.
type ToolCall struct {
    ID        string          `json:"id"`
    Name      string          `json:"name"`
    Arguments json.RawMessage `json:"arguments"`
}

// Property describes one named tool parameter.
type Property struct {
    Type        string   `json:"type"`
    Description string   `json:"description,omitempty"`
    Enum        []string `json:"enum,omitempty"`
}

// Schema is the JSON-schema-like object declaring a tool's parameters.
type Schema struct {
    Type       string              `json:"type"`
    Properties map[string]Property `json:"properties"`
    Required   []string            `json:"required"`
}

type ToolSpec struct {
    Name        string `json:"name"`
    Description string `json:"description"`
    Parameters  Schema `json:"parameters"`
}

type ChatRequest struct {
    Messages []Message
    Tools    []ToolSpec
}

type ChatResponse struct {
    Message Message
    Model   string
}

func SystemMessage(text string) Message    { return Message{Role: RoleSystem, Content: text} }
func UserMessage(text string) Message      { return Message{Role: RoleUser, Content: text} }
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

func ToolMessage(callID, name, content string) Message {
    return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: content}
}

// arguments returns the call arguments as a JSON object, "{}" when empty.
func (c ToolCall) arguments() json.RawMessage {
    if len(c.Arguments) == 0 { return json.RawMessage("{}") }
    return c.Arguments
}
