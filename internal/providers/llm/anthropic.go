package llm

import (
    "context"
    "encoding/json"
    "net/http"
    "strings"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

type AnthropicClient struct {
    APIKey string
    Model  string
    // URL overrides the Messages endpoint.
    URL       string
    MaxTokens int
    HTTP      *http.Client
}

type anBlock struct {
    Type      string          `json:"type"`
    Text      string          `json:"text,omitempty"`
    ID        string          `json:"id,omitempty"`
    Name      string          `json:"name,omitempty"`
    Input     json.RawMessage `json:"input,omitempty"`
    ToolUseID string          `json:"tool_use_id,omitempty"`
    Content   string          `json:"content,omitempty"`
}

type anMessage struct {
    Role    string    `json:"role"`
    Content []anBlock `json:"content"`
}

type anTool struct {
    Name        string `json:"name"`
    Description string `json:"description"`
    InputSchema Schema `json:"input_schema"`
}

type anRequest struct {
    Model     string      `json:"model"`
    MaxTokens int         `json:"max_tokens"`
    System    string      `json:"system,omitempty"`
    Messages  []anMessage `json:"messages"`
    Tools     []anTool    `json:"tools,omitempty"`
}

type anResponse struct {
    Model   string    `json:"model"`
    Content []anBlock `json:"content"`
}

func (c *AnthropicClient) Name() string { return "anthropic:" + c.Model }

func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
    body := anRequest{Model: c.Model, MaxTokens: c.MaxTokens}
    if body.MaxTokens <= 0 { body.MaxTokens = 1024 }
    var system []string
    for _, m := range req.Messages {
        if m.Role == RoleSystem {
            system = append(system, m.Content)
            continue
        }
        body.Messages = appendAnthropic(body.Messages, m)
    }
    body.System = strings.Join(system, "\n\n")
    for _, t := range req.Tools {
        body.Tools = append(body.Tools, anTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
    }

    url := c.URL
    if url == "" { url = anthropicURL }
    headers := map[string]string{"x-api-key": c.APIKey, "anthropic-version": "2023-06-01"}
    var resp anResponse
    if err := postJSON(ctx, c.HTTP, "anthropic", url, headers, body, &resp); err != nil { return nil, err }

    out := Message{Role: RoleAssistant}
    var text []string
    for _, b := range resp.Content {
        switch b.Type {
        case "text":
            text = append(text, b.Text)
        case "tool_use":
            out.ToolCalls = append(out.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: b.Input})
        }
    }
    out.Content = strings.Join(text, "")
    return &ChatResponse{Message: out, Model: resp.Model}, nil
}

// anthropicInput returns the call's arguments, or {} when another provider
// produced something that is not a JSON object.
func anthropicInput(tc ToolCall) json.RawMessage {
    raw := tc.arguments()
    if !json.Valid(raw) || !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
        return json.RawMessage("{}")
    }
    return raw
}

// appendAnthropic converts m into content blocks. Tool results travel as user
// turns, and consecutive turns of the same role are merged since the API
// requires alternation.
func appendAnthropic(msgs []anMessage, m Message) []anMessage {
    role := "user"
    var blocks []anBlock
    switch m.Role {
    case RoleAssistant:
        role = "assistant"
        if m.Content != "" { blocks = append(blocks, anBlock{Type: "text", Text: m.Content}) }
        for _, tc := range m.ToolCalls {
            blocks = append(blocks, anBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: anthropicInput(tc)})
        }
    case RoleTool:
        blocks = append(blocks, anBlock{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content})
    default:
        blocks = append(blocks, anBlock{Type: "text", Text: m.Content})
    }
    if len(blocks) == 0 { return msgs }
    if n := len(msgs); n > 0 && msgs[n-1].Role == role {
        msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
        return msgs
    }
    return append(msgs, anMessage{Role: role, Content: blocks})
}
